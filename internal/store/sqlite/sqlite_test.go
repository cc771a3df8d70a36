package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zym9863/Dream-s-Exit/internal/model"
	"github.com/zym9863/Dream-s-Exit/internal/store"
	"github.com/zym9863/Dream-s-Exit/internal/store/storetest"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := OpenStore(context.Background(), filepath.Join(t.TempDir(), "dreams.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

// frozenClock returns the same instant until advanced.
type frozenClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *frozenClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *frozenClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func TestUpdate_AdvancesWithFrozenClock(t *testing.T) {
	clk := &frozenClock{now: time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)}
	s := newTestStore(t, WithClock(clk.Now))
	ctx := context.Background()

	m, err := s.Memories().Create(ctx, "owner", model.MemoryFields{Title: "t", Content: "c"})
	require.NoError(t, err)
	assert.Equal(t, clk.Now(), m.CreatedAt)

	u1, err := s.Memories().Update(ctx, m.ID, model.MemoryFields{Title: "t2", Content: "c2"})
	require.NoError(t, err)
	u2, err := s.Memories().Update(ctx, m.ID, model.MemoryFields{Title: "t3", Content: "c3"})
	require.NoError(t, err)

	assert.True(t, u1.UpdatedAt.After(m.UpdatedAt))
	assert.True(t, u2.UpdatedAt.After(u1.UpdatedAt))
	assert.Equal(t, m.CreatedAt, u2.CreatedAt)
	assert.Equal(t, "owner", u2.UserID)

	// a clock that moved forward wins over the +1µs bump
	later := clk.Now().Add(time.Hour)
	clk.Set(later)
	u3, err := s.Memories().Update(ctx, m.ID, model.MemoryFields{Title: "t4", Content: "c4"})
	require.NoError(t, err)
	assert.Equal(t, later, u3.UpdatedAt)
}

func TestEchoes_ExpiryWindowAndLimit(t *testing.T) {
	clk := &frozenClock{}
	s := newTestStore(t, WithClock(clk.Now))
	ctx := context.Background()
	now := time.Date(2025, 7, 2, 12, 0, 0, 0, time.UTC)

	// expired one second ago
	clk.Set(now.Add(-model.EchoTTL - time.Second))
	old, err := s.Echoes().Create(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, now.Add(-time.Second), old.ExpiresAt)

	// expires in one hour
	clk.Set(now.Add(-model.EchoTTL + time.Hour))
	live, err := s.Echoes().Create(ctx, "still here")
	require.NoError(t, err)

	lst, err := s.Echoes().ListActive(ctx, now, model.EchoListLimit)
	require.NoError(t, err)
	require.Len(t, lst, 1)
	assert.Equal(t, live.ID, lst[0].ID)

	// the expired row is filtered, not deleted
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(1) FROM echo_entries`).Scan(&n))
	assert.Equal(t, 2, n)

	for i := 0; i < 60; i++ {
		clk.Set(now.Add(time.Duration(i) * time.Second))
		_, err := s.Echoes().Create(ctx, "bulk")
		require.NoError(t, err)
	}
	lst, err = s.Echoes().ListActive(ctx, now.Add(time.Minute), model.EchoListLimit)
	require.NoError(t, err)
	assert.Len(t, lst, model.EchoListLimit)
	for i := 1; i < len(lst); i++ {
		assert.False(t, lst[i-1].CreatedAt.Before(lst[i].CreatedAt))
	}
}

func TestMemories_EmptyListIsNotNil(t *testing.T) {
	s := newTestStore(t)
	lst, err := s.Memories().List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, lst)
	assert.Empty(t, lst)

	echoes, err := s.Echoes().ListActive(context.Background(), time.Now(), 10)
	require.NoError(t, err)
	assert.NotNil(t, echoes)
}

func TestClosedStore_ReportsTransport(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Memories().List(context.Background())
	assert.True(t, model.IsTransport(err), "got %v", err)
	_, err = s.Memories().Get(context.Background(), "x")
	assert.True(t, model.IsTransport(err), "got %v", err)
	assert.False(t, model.IsNotFound(err))
	assert.Error(t, s.HealthPing(context.Background()))
}
