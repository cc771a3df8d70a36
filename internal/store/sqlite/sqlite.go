// Package sqlite is the local single-file store used for development and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/zym9863/Dream-s-Exit/internal/model"
	"github.com/zym9863/Dream-s-Exit/internal/store"
)

// Timestamps are stored as unix microseconds so ordering is numeric.
const schema = `
CREATE TABLE IF NOT EXISTS chronoscroll_entries (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    content     TEXT NOT NULL,
    image_url   TEXT NOT NULL DEFAULT '',
    music_url   TEXT NOT NULL DEFAULT '',
    music_title TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL,
    user_id     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_chronoscroll_created ON chronoscroll_entries(created_at DESC);
CREATE TABLE IF NOT EXISTS echo_entries (
    id         TEXT PRIMARY KEY,
    content    TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_echo_expires ON echo_entries(expires_at);
`

// Open opens (or creates) a SQLite database at the given path and enables WAL journal mode.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// single writer; keeps concurrent handlers from tripping SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces the time source used for created_at, updated_at and expires_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is a store.Store backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewWithDB applies the schema and returns the store.
func NewWithDB(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// OpenStore opens path and returns a ready store.
func OpenStore(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	s, err := NewWithDB(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Memories() store.Memories { return &memories{s} }
func (s *Store) Echoes() store.Echoes     { return &echoes{s} }

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) clock() time.Time { return s.now().UTC().Truncate(time.Microsecond) }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }

// --- Memories ---
type memories struct{ s *Store }

const memoryColumns = `id, title, content, image_url, music_url, music_title, created_at, updated_at, user_id`

type scanner interface{ Scan(dest ...any) error }

func scanMemory(row scanner) (*model.MemoryEntry, error) {
	var m model.MemoryEntry
	var created, updated int64
	if err := row.Scan(&m.ID, &m.Title, &m.Content, &m.ImageURL, &m.MusicURL, &m.MusicTitle, &created, &updated, &m.UserID); err != nil {
		return nil, err
	}
	m.CreatedAt = fromMicros(created)
	m.UpdatedAt = fromMicros(updated)
	return &m, nil
}

func (r *memories) List(ctx context.Context) ([]*model.MemoryEntry, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT `+memoryColumns+` FROM chronoscroll_entries ORDER BY created_at DESC`)
	if err != nil {
		return nil, model.Transport("list memories", err)
	}
	defer func() { _ = rows.Close() }()
	res := []*model.MemoryEntry{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, model.Transport("list memories", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Transport("list memories", err)
	}
	return res, nil
}

func (r *memories) Get(ctx context.Context, id string) (*model.MemoryEntry, error) {
	m, err := scanMemory(r.s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM chronoscroll_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("memory", id)
	}
	if err != nil {
		return nil, model.Transport("get memory", err)
	}
	return m, nil
}

func (r *memories) Create(ctx context.Context, owner string, f model.MemoryFields) (*model.MemoryEntry, error) {
	now := r.s.clock()
	m := &model.MemoryEntry{
		ID:         uuid.NewString(),
		Title:      f.Title,
		Content:    f.Content,
		ImageURL:   f.ImageURL,
		MusicURL:   f.MusicURL,
		MusicTitle: f.MusicTitle,
		CreatedAt:  now,
		UpdatedAt:  now,
		UserID:     owner,
	}
	_, err := r.s.db.ExecContext(ctx, `
        INSERT INTO chronoscroll_entries (`+memoryColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Title, m.Content, m.ImageURL, m.MusicURL, m.MusicTitle, now.UnixMicro(), now.UnixMicro(), m.UserID)
	if err != nil {
		return nil, model.Transport("create memory", err)
	}
	return m, nil
}

func (r *memories) Update(ctx context.Context, id string, f model.MemoryFields) (*model.MemoryEntry, error) {
	// MAX keeps updated_at strictly increasing even when the clock has not moved.
	row := r.s.db.QueryRowContext(ctx, `
        UPDATE chronoscroll_entries
        SET title = ?, content = ?, image_url = ?, music_url = ?, music_title = ?,
            updated_at = MAX(?, updated_at + 1)
        WHERE id = ?
        RETURNING `+memoryColumns,
		f.Title, f.Content, f.ImageURL, f.MusicURL, f.MusicTitle, r.s.clock().UnixMicro(), id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("memory", id)
	}
	if err != nil {
		return nil, model.Transport("update memory", err)
	}
	return m, nil
}

func (r *memories) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM chronoscroll_entries WHERE id = ?`, id)
	if err != nil {
		return 0, model.Transport("delete memory", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, model.Transport("delete memory", err)
	}
	return n, nil
}

// --- Echoes ---
type echoes struct{ s *Store }

func (r *echoes) ListActive(ctx context.Context, now time.Time, limit int) ([]*model.EchoEntry, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := r.s.db.QueryContext(ctx, `
        SELECT id, content, created_at, expires_at
        FROM echo_entries
        WHERE expires_at > ?
        ORDER BY created_at DESC
        LIMIT ?`, now.UTC().UnixMicro(), limit)
	if err != nil {
		return nil, model.Transport("list echoes", err)
	}
	defer func() { _ = rows.Close() }()
	res := []*model.EchoEntry{}
	for rows.Next() {
		var e model.EchoEntry
		var created, expires int64
		if err := rows.Scan(&e.ID, &e.Content, &created, &expires); err != nil {
			return nil, model.Transport("list echoes", err)
		}
		e.CreatedAt = fromMicros(created)
		e.ExpiresAt = fromMicros(expires)
		res = append(res, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Transport("list echoes", err)
	}
	return res, nil
}

func (r *echoes) Create(ctx context.Context, content string) (*model.EchoEntry, error) {
	now := r.s.clock()
	e := &model.EchoEntry{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: now,
		ExpiresAt: now.Add(model.EchoTTL),
	}
	_, err := r.s.db.ExecContext(ctx, `INSERT INTO echo_entries (id, content, created_at, expires_at) VALUES (?,?,?,?)`,
		e.ID, e.Content, e.CreatedAt.UnixMicro(), e.ExpiresAt.UnixMicro())
	if err != nil {
		return nil, model.Transport("create echo", err)
	}
	return e, nil
}

func (r *echoes) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM echo_entries WHERE expires_at < ?`, before.UTC().UnixMicro())
	if err != nil {
		return 0, model.Transport("purge echoes", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, model.Transport("purge echoes", err)
	}
	return n, nil
}
