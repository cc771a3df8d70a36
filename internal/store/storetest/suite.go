package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zym9863/Dream-s-Exit/internal/model"
	"github.com/zym9863/Dream-s-Exit/internal/store"
)

// Run exercises a minimal compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store and return it from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()
	owner := "u-" + uuid.New().String()

	// Memories: create / get
	f1 := model.MemoryFields{Title: "first snow", Content: "落雪无声", ImageURL: "https://example.test/a.jpg"}
	m1, err := s.Memories().Create(ctx, owner, f1)
	if err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	if m1.ID == "" {
		t.Fatalf("CreateMemory: empty id")
	}
	got, err := s.Memories().Get(ctx, m1.ID)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got.Title != f1.Title || got.Content != f1.Content || got.ImageURL != f1.ImageURL || got.MusicURL != "" || got.MusicTitle != "" {
		t.Fatalf("GetMemory fields: got=%+v want=%+v", got, f1)
	}
	if got.UserID != owner {
		t.Fatalf("GetMemory owner: got=%q want=%q", got.UserID, owner)
	}
	if !got.CreatedAt.Equal(got.UpdatedAt) {
		t.Fatalf("GetMemory timestamps differ: created=%v updated=%v", got.CreatedAt, got.UpdatedAt)
	}

	time.Sleep(5 * time.Millisecond) // ensure monotonic creation time ordering
	m2, err := s.Memories().Create(ctx, owner, model.MemoryFields{Title: "second", Content: "body"})
	if err != nil {
		t.Fatalf("CreateMemory m2: %v", err)
	}

	// List is newest first
	lst, err := s.Memories().List(ctx)
	if err != nil {
		t.Fatalf("ListMemories: %v", err)
	}
	pos := map[string]int{}
	for i, m := range lst {
		pos[m.ID] = i
		if i > 0 && lst[i-1].CreatedAt.Before(m.CreatedAt) {
			t.Fatalf("ListMemories not newest first at %d: %v < %v", i, lst[i-1].CreatedAt, m.CreatedAt)
		}
	}
	i1, ok1 := pos[m1.ID]
	i2, ok2 := pos[m2.ID]
	if !ok1 || !ok2 || i2 > i1 {
		t.Fatalf("ListMemories order: m1=%d(%v) m2=%d(%v)", i1, ok1, i2, ok2)
	}

	// Update advances updated_at only
	upd := model.MemoryFields{Title: "first snow, revised", Content: "new body", MusicURL: "https://example.test/a.mp3", MusicTitle: "song"}
	u, err := s.Memories().Update(ctx, m1.ID, upd)
	if err != nil {
		t.Fatalf("UpdateMemory: %v", err)
	}
	if u.Title != upd.Title || u.Content != upd.Content || u.MusicURL != upd.MusicURL || u.MusicTitle != upd.MusicTitle || u.ImageURL != "" {
		t.Fatalf("UpdateMemory fields: got=%+v", u)
	}
	if !u.UpdatedAt.After(got.UpdatedAt) {
		t.Fatalf("UpdateMemory did not advance updated_at: before=%v after=%v", got.UpdatedAt, u.UpdatedAt)
	}
	if !u.CreatedAt.Equal(got.CreatedAt) || u.UserID != owner {
		t.Fatalf("UpdateMemory changed immutable fields: %+v", u)
	}
	if _, err := s.Memories().Update(ctx, uuid.New().String(), upd); !model.IsNotFound(err) {
		t.Fatalf("UpdateMemory missing id: want ErrNotFound, got %v", err)
	}

	// Delete is idempotent
	n, err := s.Memories().Delete(ctx, m1.ID)
	if err != nil || n != 1 {
		t.Fatalf("DeleteMemory: n=%d err=%v", n, err)
	}
	if _, err := s.Memories().Get(ctx, m1.ID); !model.IsNotFound(err) {
		t.Fatalf("GetMemory after delete: want ErrNotFound, got %v", err)
	}
	n, err = s.Memories().Delete(ctx, m1.ID)
	if err != nil || n != 0 {
		t.Fatalf("DeleteMemory again: n=%d err=%v", n, err)
	}
	if _, err := s.Memories().Get(ctx, uuid.New().String()); !model.IsNotFound(err) {
		t.Fatalf("GetMemory unknown id: want ErrNotFound, got %v", err)
	}
	if _, err := s.Memories().Delete(ctx, m2.ID); err != nil {
		t.Fatalf("DeleteMemory m2: %v", err)
	}

	// Echoes: expiry assigned by the store
	e, err := s.Echoes().Create(ctx, "回音 "+owner)
	if err != nil {
		t.Fatalf("CreateEcho: %v", err)
	}
	if e.ID == "" {
		t.Fatalf("CreateEcho: empty id")
	}
	if d := e.ExpiresAt.Sub(e.CreatedAt); d != model.EchoTTL {
		t.Fatalf("CreateEcho: expiry offset %v, want %v", d, model.EchoTTL)
	}

	if !containsEcho(t, s, e.ExpiresAt.Add(-time.Second), e.ID) {
		t.Fatalf("ListActive: echo missing one second before expiry")
	}
	if containsEcho(t, s, e.ExpiresAt, e.ID) {
		t.Fatalf("ListActive: echo visible at its expiry instant")
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := s.Echoes().Create(ctx, "second "+owner); err != nil {
		t.Fatalf("CreateEcho 2: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := s.Echoes().Create(ctx, "third "+owner); err != nil {
		t.Fatalf("CreateEcho 3: %v", err)
	}
	lim, err := s.Echoes().ListActive(ctx, e.CreatedAt, 2)
	if err != nil || len(lim) != 2 {
		t.Fatalf("ListActive limit: n=%d err=%v", len(lim), err)
	}
	if lim[0].CreatedAt.Before(lim[1].CreatedAt) {
		t.Fatalf("ListActive not newest first: %v < %v", lim[0].CreatedAt, lim[1].CreatedAt)
	}

	// Purge only removes rows expired before the cutoff
	purged, err := s.Echoes().PurgeExpired(ctx, e.CreatedAt.Add(-time.Hour))
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if !containsEcho(t, s, e.CreatedAt, e.ID) {
		t.Fatalf("PurgeExpired removed a live echo (purged=%d)", purged)
	}
	purged, err = s.Echoes().PurgeExpired(ctx, e.ExpiresAt.Add(time.Second))
	if err != nil || purged < 1 {
		t.Fatalf("PurgeExpired: n=%d err=%v", purged, err)
	}
	if containsEcho(t, s, e.CreatedAt, e.ID) {
		t.Fatalf("PurgeExpired left the echo behind")
	}
}

func containsEcho(t *testing.T, s store.Store, now time.Time, id string) bool {
	t.Helper()
	lst, err := s.Echoes().ListActive(context.Background(), now, 0)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	for _, e := range lst {
		if e.ID == id {
			return true
		}
	}
	return false
}
