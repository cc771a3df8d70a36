package store

import (
	"context"
	"time"

	"github.com/zym9863/Dream-s-Exit/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (supabase, postgres, sqlite).
//
// Drivers report a missing row as model.ErrNotFound and every other failure
// as model.ErrTransport. They do not validate input.
type Store interface {
	Memories() Memories
	Echoes() Echoes
}

// Memories persists memory entries. Timestamps are assigned by the driver.
type Memories interface {
	// List returns all entries, newest first. Never nil.
	List(ctx context.Context) ([]*model.MemoryEntry, error)
	Get(ctx context.Context, id string) (*model.MemoryEntry, error)
	// Create inserts a row with a generated id; created_at equals updated_at.
	Create(ctx context.Context, owner string, f model.MemoryFields) (*model.MemoryEntry, error)
	// Update rewrites the editable fields and advances updated_at.
	Update(ctx context.Context, id string, f model.MemoryFields) (*model.MemoryEntry, error)
	// Delete removes the row and reports the affected row count.
	Delete(ctx context.Context, id string) (int64, error)
}

// Echoes persists echo entries. Expiry is assigned by the driver at insert.
type Echoes interface {
	// ListActive returns up to limit entries with expires_at > now, newest first.
	// A limit <= 0 means no limit. Never nil.
	ListActive(ctx context.Context, now time.Time, limit int) ([]*model.EchoEntry, error)
	Create(ctx context.Context, content string) (*model.EchoEntry, error)
	// PurgeExpired physically deletes rows with expires_at < before.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}
