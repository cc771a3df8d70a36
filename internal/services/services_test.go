package services

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zym9863/Dream-s-Exit/internal/model"
	"github.com/zym9863/Dream-s-Exit/internal/store"
	"github.com/zym9863/Dream-s-Exit/internal/store/sqlite"
)

// testClock is a settable clock shared by the store and the services.
type testClock struct{ t atomic.Int64 }

func newTestClock(start time.Time) *testClock {
	c := &testClock{}
	c.Set(start)
	return c
}

func (c *testClock) Now() time.Time      { return time.UnixMicro(c.t.Load()).UTC() }
func (c *testClock) Set(t time.Time)     { c.t.Store(t.UnixMicro()) }
func (c *testClock) Add(d time.Duration) { c.t.Add(d.Microseconds()) }

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T, clock *testClock) *sqlite.Store {
	t.Helper()
	s, err := sqlite.OpenStore(context.Background(), filepath.Join(t.TempDir(), "dreams.db"), sqlite.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMemoryService_CreateThenGet(t *testing.T) {
	clock := newTestClock(t0)
	svc := NewMemoryService(newSQLiteStore(t, clock), zerolog.Nop())
	ctx := context.Background()

	f := model.MemoryFields{
		Title:      "Lantern festival",
		Content:    "we walked by the river",
		ImageURL:   "https://example.test/lantern.jpg",
		MusicURL:   "https://example.test/song.mp3",
		MusicTitle: "River Song",
	}
	created, err := svc.Create(ctx, "owner-a", f)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Title, got.Title)
	assert.Equal(t, f.Content, got.Content)
	assert.Equal(t, f.ImageURL, got.ImageURL)
	assert.Equal(t, f.MusicURL, got.MusicURL)
	assert.Equal(t, f.MusicTitle, got.MusicTitle)
	assert.Equal(t, "owner-a", got.UserID)
	assert.True(t, got.CreatedAt.Equal(got.UpdatedAt))
	assert.True(t, got.CreatedAt.Equal(t0))
}

func TestMemoryService_OptionalFieldsDefaultEmpty(t *testing.T) {
	svc := NewMemoryService(newSQLiteStore(t, newTestClock(t0)), zerolog.Nop())

	created, err := svc.Create(context.Background(), "", model.MemoryFields{Title: "t", Content: "c"})
	require.NoError(t, err)
	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ImageURL)
	assert.Empty(t, got.MusicURL)
	assert.Empty(t, got.MusicTitle)
	assert.Empty(t, got.UserID)
}

func TestMemoryService_UpdateAdvancesTimestamp(t *testing.T) {
	clock := newTestClock(t0)
	svc := NewMemoryService(newSQLiteStore(t, clock), zerolog.Nop())
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-a", model.MemoryFields{Title: "draft", Content: "v1"})
	require.NoError(t, err)

	clock.Add(90 * time.Second)
	updated, err := svc.Update(ctx, created.ID, model.MemoryFields{Title: "final", Content: "v2", MusicTitle: "Nocturne"})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, "v2", updated.Content)
	assert.Equal(t, "Nocturne", updated.MusicTitle)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
	assert.Equal(t, "owner-a", updated.UserID)

	// frozen clock still moves updated_at forward
	again, err := svc.Update(ctx, created.ID, model.MemoryFields{Title: "final", Content: "v3"})
	require.NoError(t, err)
	assert.True(t, again.UpdatedAt.After(updated.UpdatedAt))
}

func TestMemoryService_ValidationPreventsWrites(t *testing.T) {
	svc := NewMemoryService(newSQLiteStore(t, newTestClock(t0)), zerolog.Nop())
	ctx := context.Background()

	existing, err := svc.Create(ctx, "owner-a", model.MemoryFields{Title: "keep", Content: "original"})
	require.NoError(t, err)

	cases := []struct {
		name  string
		field string
		f     model.MemoryFields
	}{
		{"empty title", "title", model.MemoryFields{Title: "", Content: "body"}},
		{"whitespace title", "title", model.MemoryFields{Title: "  \t", Content: "body"}},
		{"empty content", "content", model.MemoryFields{Title: "t", Content: ""}},
		{"whitespace content", "content", model.MemoryFields{Title: "t", Content: "\n  "}},
		{"long title", "title", model.MemoryFields{Title: strings.Repeat("梦", model.MaxTitleLength+1), Content: "body"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "owner-a", tc.f)
			require.Error(t, err)
			assert.True(t, model.IsValidationError(err))
			var ve model.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)

			_, err = svc.Update(ctx, existing.ID, tc.f)
			assert.True(t, model.IsValidationError(err))
		})
	}

	lst, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, lst, 1)
	assert.Equal(t, "original", lst[0].Content)
}

func TestMemoryService_TitleAtCeiling(t *testing.T) {
	svc := NewMemoryService(newSQLiteStore(t, newTestClock(t0)), zerolog.Nop())

	_, err := svc.Create(context.Background(), "", model.MemoryFields{Title: strings.Repeat("梦", model.MaxTitleLength), Content: "c"})
	assert.NoError(t, err)
}

func TestMemoryService_ListNewestFirst(t *testing.T) {
	clock := newTestClock(t0)
	svc := NewMemoryService(newSQLiteStore(t, clock), zerolog.Nop())
	ctx := context.Background()

	empty, err := svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, title := range []string{"one", "two", "three"} {
		_, err := svc.Create(ctx, "", model.MemoryFields{Title: title, Content: "c"})
		require.NoError(t, err)
		clock.Add(time.Minute)
	}

	lst, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, lst, 3)
	assert.Equal(t, "three", lst[0].Title)
	assert.Equal(t, "one", lst[2].Title)
	for i := 1; i < len(lst); i++ {
		assert.False(t, lst[i-1].CreatedAt.Before(lst[i].CreatedAt))
	}
}

func TestMemoryService_DeleteIsIdempotent(t *testing.T) {
	svc := NewMemoryService(newSQLiteStore(t, newTestClock(t0)), zerolog.Nop())
	ctx := context.Background()

	m, err := svc.Create(ctx, "", model.MemoryFields{Title: "t", Content: "c"})
	require.NoError(t, err)

	n, err := svc.Delete(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.Get(ctx, m.ID)
	assert.True(t, model.IsNotFound(err))

	n, err = svc.Delete(ctx, m.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.Update(ctx, m.ID, model.MemoryFields{Title: "t", Content: "c"})
	assert.True(t, model.IsNotFound(err))
}

func TestMemoryService_BlankIDIsValidationError(t *testing.T) {
	svc := NewMemoryService(newSQLiteStore(t, newTestClock(t0)), zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Get(ctx, " ")
	assert.True(t, model.IsValidationError(err))
	_, err = svc.Delete(ctx, "")
	assert.True(t, model.IsValidationError(err))
}

func TestMemoryService_TransportErrorsPropagate(t *testing.T) {
	s := newSQLiteStore(t, newTestClock(t0))
	svc := NewMemoryService(s, zerolog.Nop())
	require.NoError(t, s.Close())

	_, err := svc.List(context.Background())
	assert.True(t, model.IsTransport(err))
	_, err = svc.Get(context.Background(), "5f0c1a3e-0000-4000-8000-000000000000")
	assert.True(t, model.IsTransport(err))
	assert.False(t, model.IsNotFound(err))
}

func TestEchoService_ExpiryWindow(t *testing.T) {
	clock := newTestClock(t0)
	st := newSQLiteStore(t, clock)
	svcClock := newTestClock(t0)
	svc := NewEchoService(st, zerolog.Nop()).WithClock(svcClock.Now)
	ctx := context.Background()

	e, err := svc.Create(ctx, "see you tomorrow")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(model.EchoTTL), e.ExpiresAt)

	// expiry is one hour ahead
	svcClock.Set(e.ExpiresAt.Add(-time.Hour))
	lst, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, lst, 1)

	// expiry was one second ago
	svcClock.Set(e.ExpiresAt.Add(time.Second))
	lst, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, lst)
	assert.NotNil(t, lst)
}

func TestEchoService_ListCap(t *testing.T) {
	clock := newTestClock(t0)
	st := newSQLiteStore(t, clock)
	svc := NewEchoService(st, zerolog.Nop()).WithClock(clock.Now)
	ctx := context.Background()

	for i := 0; i < model.EchoListLimit+10; i++ {
		_, err := svc.Create(ctx, "echo")
		require.NoError(t, err)
		clock.Add(time.Second)
	}

	lst, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, lst, model.EchoListLimit)
	for i := 1; i < len(lst); i++ {
		assert.True(t, lst[i-1].CreatedAt.After(lst[i].CreatedAt))
	}
}

func TestEchoService_ContentCeiling(t *testing.T) {
	svc := NewEchoService(newSQLiteStore(t, newTestClock(t0)), zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Create(ctx, strings.Repeat("a", model.MaxEchoLength))
	assert.NoError(t, err)

	_, err = svc.Create(ctx, strings.Repeat("a", model.MaxEchoLength+1))
	assert.True(t, model.IsValidationError(err))

	// characters, not bytes
	_, err = svc.Create(ctx, strings.Repeat("回", model.MaxEchoLength))
	assert.NoError(t, err)
}

func TestEchoService_TrimsAndRejectsBlank(t *testing.T) {
	svc := NewEchoService(newSQLiteStore(t, newTestClock(t0)), zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Create(ctx, "   \n ")
	assert.True(t, model.IsValidationError(err))

	e, err := svc.Create(ctx, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", e.Content)

	// trailing whitespace does not count toward the ceiling
	_, err = svc.Create(ctx, strings.Repeat("a", model.MaxEchoLength)+"   ")
	assert.NoError(t, err)
}

// failingStore fails every call with a transport error.
type failingStore struct{}

func (failingStore) Memories() store.Memories { return nil }
func (failingStore) Echoes() store.Echoes     { return failingEchoes{} }

type failingEchoes struct{}

func (failingEchoes) ListActive(context.Context, time.Time, int) ([]*model.EchoEntry, error) {
	return nil, model.Transport("list echoes", assert.AnError)
}
func (failingEchoes) Create(context.Context, string) (*model.EchoEntry, error) {
	return nil, model.Transport("create echo", assert.AnError)
}
func (failingEchoes) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, model.Transport("purge echoes", assert.AnError)
}

func TestEchoService_TransportErrorsPropagate(t *testing.T) {
	svc := NewEchoService(failingStore{}, zerolog.Nop())

	_, err := svc.List(context.Background())
	assert.True(t, model.IsTransport(err))
	_, err = svc.Create(context.Background(), "hello")
	assert.True(t, model.IsTransport(err))
	assert.ErrorIs(t, err, assert.AnError)
}

// fixedEchoes returns its rows regardless of the requested instant, like a
// backend whose clock disagrees with ours.
type fixedEchoes struct {
	failingEchoes
	rows []*model.EchoEntry
}

func (f fixedEchoes) ListActive(context.Context, time.Time, int) ([]*model.EchoEntry, error) {
	return f.rows, nil
}

type fixedStore struct{ echoes fixedEchoes }

func (fixedStore) Memories() store.Memories { return nil }
func (s fixedStore) Echoes() store.Echoes   { return s.echoes }

func TestEchoService_ListDropsRowsAlreadyExpired(t *testing.T) {
	clock := newTestClock(t0)
	rows := []*model.EchoEntry{
		{ID: "fresh", Content: "still here", CreatedAt: t0.Add(-time.Hour), ExpiresAt: t0.Add(23 * time.Hour)},
		{ID: "edge", Content: "expires now", CreatedAt: t0.Add(-model.EchoTTL), ExpiresAt: t0},
		{ID: "stale", Content: "gone", CreatedAt: t0.Add(-25 * time.Hour), ExpiresAt: t0.Add(-time.Hour)},
	}
	svc := NewEchoService(fixedStore{fixedEchoes{rows: rows}}, zerolog.Nop()).WithClock(clock.Now)

	lst, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, lst, 1)
	assert.Equal(t, "fresh", lst[0].ID)
}
