package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zym9863/Dream-s-Exit/internal/model"
	"github.com/zym9863/Dream-s-Exit/internal/store"
	"github.com/zym9863/Dream-s-Exit/internal/store/storetest"
)

// fakeREST is an in-memory PostgREST covering the operators the adapter sends.
// It applies the column defaults and the updated_at trigger from schema.sql.
type fakeREST struct {
	mu       sync.Mutex
	tables   map[string][]map[string]any
	hits     atomic.Int64
	headers  http.Header
	inserted []map[string]any
	fail     bool
	now      time.Time // zero means wall clock
}

func newFakeREST() *fakeREST {
	return &fakeREST{tables: map[string][]map[string]any{}}
}

func (f *fakeREST) setNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// clock returns the database time; callers hold f.mu.
func (f *fakeREST) clock() time.Time {
	if f.now.IsZero() {
		return time.Now().UTC().Truncate(time.Microsecond)
	}
	return f.now
}

// applyDefaults fills the columns the database assigns on insert.
func (f *fakeREST) applyDefaults(table string, row map[string]any) {
	ts := f.clock()
	row["id"] = uuid.NewString()
	row["created_at"] = ts.Format(time.RFC3339Nano)
	switch table {
	case memoriesTable:
		row["updated_at"] = ts.Format(time.RFC3339Nano)
	case echoesTable:
		row["expires_at"] = ts.Add(24 * time.Hour).Format(time.RFC3339Nano)
	}
}

// touch mirrors the BEFORE UPDATE trigger on chronoscroll_entries.
func (f *fakeREST) touch(old, row map[string]any) {
	prev, _ := time.Parse(time.RFC3339Nano, fmt.Sprint(old["updated_at"]))
	next := f.clock()
	if floor := prev.Add(time.Microsecond); next.Before(floor) {
		next = floor
	}
	row["created_at"] = old["created_at"]
	row["updated_at"] = next.Format(time.RFC3339Nano)
}

func (f *fakeREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers = r.Header.Clone()

	if f.fail {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"code": "PGRST000", "message": "database unavailable"})
		return
	}
	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	q := r.URL.Query()
	prefer := r.Header.Get("Prefer")

	switch r.Method {
	case http.MethodGet:
		rows := f.filter(table, q)
		if order := q.Get("order"); order != "" {
			col := strings.SplitN(order, ".", 2)[0]
			desc := strings.Contains(order, ".desc")
			sort.SliceStable(rows, func(i, j int) bool {
				c := compare(rows[i][col], rows[j][col])
				if desc {
					return c > 0
				}
				return c < 0
			})
		}
		if lim := q.Get("limit"); lim != "" {
			n, _ := strconv.Atoi(lim)
			if n < len(rows) {
				rows = rows[:n]
			}
		}
		writeJSON(w, http.StatusOK, rows)
	case http.MethodPost:
		var row map[string]any
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "PGRST102", "message": err.Error()})
			return
		}
		sent := map[string]any{}
		for k, v := range row {
			sent[k] = v
		}
		f.inserted = append(f.inserted, sent)
		f.applyDefaults(table, row)
		f.tables[table] = append(f.tables[table], row)
		writeJSON(w, http.StatusCreated, []map[string]any{row})
	case http.MethodPatch:
		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "PGRST102", "message": err.Error()})
			return
		}
		rows := f.filter(table, q)
		for _, row := range rows {
			old := map[string]any{"created_at": row["created_at"], "updated_at": row["updated_at"]}
			for k, v := range patch {
				row[k] = v
			}
			if table == memoriesTable {
				f.touch(old, row)
			}
		}
		writeJSON(w, http.StatusOK, rows)
	case http.MethodDelete:
		doomed := f.filter(table, q)
		kept := f.tables[table][:0]
		for _, row := range f.tables[table] {
			if !containsRow(doomed, row) {
				kept = append(kept, row)
			}
		}
		f.tables[table] = kept
		if strings.Contains(prefer, "count=exact") {
			w.Header().Set("Content-Range", fmt.Sprintf("*/%d", len(doomed)))
		}
		if strings.Contains(prefer, "return=minimal") {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, doomed)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// filter applies eq/gt/lt filters from the query string.
func (f *fakeREST) filter(table string, q map[string][]string) []map[string]any {
	out := []map[string]any{}
	for _, row := range f.tables[table] {
		ok := true
		for col, vals := range q {
			if col == "select" || col == "order" || col == "limit" {
				continue
			}
			op, want, _ := strings.Cut(vals[0], ".")
			c := compare(row[col], want)
			switch op {
			case "eq":
				ok = ok && c == 0
			case "gt":
				ok = ok && c > 0
			case "lt":
				ok = ok && c < 0
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out
}

func compare(a, b any) int {
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	at, aerr := time.Parse(time.RFC3339Nano, as)
	bt, berr := time.Parse(time.RFC3339Nano, bs)
	if aerr == nil && berr == nil {
		return at.Compare(bt)
	}
	return strings.Compare(as, bs)
}

func containsRow(rows []map[string]any, row map[string]any) bool {
	for _, r := range rows {
		if r["id"] == row["id"] {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestStore(t *testing.T) (*Store, *fakeREST) {
	t.Helper()
	fake := newFakeREST()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	s, err := New(Config{URL: srv.URL, Key: "anon-key", Schema: "public"})
	require.NoError(t, err)
	return s, fake
}

func TestSupabaseStore_Compliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, _ := newTestStore(t)
		return s
	})
}

func TestNew_RequiresURLAndKey(t *testing.T) {
	_, err := New(Config{URL: "", Key: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "https://x.supabase.co", Key: ""})
	assert.Error(t, err)
}

func TestSupabaseStore_SendsProjectHeaders(t *testing.T) {
	s, fake := newTestStore(t)
	require.NoError(t, s.HealthPing(context.Background()))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "anon-key", fake.headers.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", fake.headers.Get("Authorization"))
	assert.Equal(t, "public", fake.headers.Get("Accept-Profile"))
}

func TestSupabaseStore_UpdateAdvancesWithFrozenClock(t *testing.T) {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	s, fake := newTestStore(t)
	fake.setNow(base)
	ctx := context.Background()

	m, err := s.Memories().Create(ctx, "owner-1", model.MemoryFields{Title: "t", Content: "c"})
	require.NoError(t, err)
	assert.Equal(t, base, m.CreatedAt)
	assert.Equal(t, base, m.UpdatedAt)

	u1, err := s.Memories().Update(ctx, m.ID, model.MemoryFields{Title: "t2", Content: "c2"})
	require.NoError(t, err)
	assert.True(t, u1.UpdatedAt.After(m.UpdatedAt), "before=%v after=%v", m.UpdatedAt, u1.UpdatedAt)

	// database clock stepped back
	fake.setNow(base.Add(-time.Minute))
	u2, err := s.Memories().Update(ctx, m.ID, model.MemoryFields{Title: "t3", Content: "c3"})
	require.NoError(t, err)
	assert.True(t, u2.UpdatedAt.After(u1.UpdatedAt), "before=%v after=%v", u1.UpdatedAt, u2.UpdatedAt)
	assert.Equal(t, base, u2.CreatedAt)
	assert.Equal(t, "owner-1", u2.UserID)

	fake.setNow(base.Add(time.Hour))
	u3, err := s.Memories().Update(ctx, m.ID, model.MemoryFields{Title: "t4", Content: "c4"})
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), u3.UpdatedAt)
}

func TestSupabaseStore_InsertLeavesIDsAndTimestampsToDatabase(t *testing.T) {
	s, fake := newTestStore(t)
	ctx := context.Background()

	m, err := s.Memories().Create(ctx, "owner-1", model.MemoryFields{Title: "t", Content: "c", MusicTitle: "m"})
	require.NoError(t, err)
	_, err = uuid.Parse(m.ID)
	assert.NoError(t, err)
	e, err := s.Echoes().Create(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, model.EchoTTL, e.ExpiresAt.Sub(e.CreatedAt))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.inserted, 2)
	for _, body := range fake.inserted {
		for _, col := range []string{"id", "created_at", "updated_at", "expires_at"} {
			assert.NotContains(t, body, col)
		}
	}
	assert.Equal(t, "owner-1", fake.inserted[0]["user_id"])
	assert.Equal(t, map[string]any{"content": "hello"}, fake.inserted[1])
}

func TestSupabaseStore_EchoListCapAndExpiry(t *testing.T) {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	s, fake := newTestStore(t)
	ctx := context.Background()

	now := base
	for i := 0; i < model.EchoListLimit+5; i++ {
		now = base.Add(time.Duration(i) * time.Second)
		fake.setNow(now)
		_, err := s.Echoes().Create(ctx, fmt.Sprintf("echo %d", i))
		require.NoError(t, err)
	}

	lst, err := s.Echoes().ListActive(ctx, now, model.EchoListLimit)
	require.NoError(t, err)
	require.Len(t, lst, model.EchoListLimit)
	assert.Equal(t, fmt.Sprintf("echo %d", model.EchoListLimit+4), lst[0].Content)

	// the first echo expires at base+24h
	lst, err = s.Echoes().ListActive(ctx, base.Add(model.EchoTTL), 0)
	require.NoError(t, err)
	assert.Len(t, lst, model.EchoListLimit+4)
}

func TestSupabaseStore_MalformedIDsSkipNetwork(t *testing.T) {
	s, fake := newTestStore(t)
	ctx := context.Background()

	_, err := s.Memories().Get(ctx, "nope")
	assert.True(t, model.IsNotFound(err))
	_, err = s.Memories().Update(ctx, "nope", model.MemoryFields{Title: "t", Content: "c"})
	assert.True(t, model.IsNotFound(err))
	n, err := s.Memories().Delete(ctx, "nope")
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, fake.hits.Load())
}

func TestSupabaseStore_ServerErrorsAreTransport(t *testing.T) {
	s, fake := newTestStore(t)
	fake.mu.Lock()
	fake.fail = true
	fake.mu.Unlock()
	ctx := context.Background()

	_, err := s.Memories().List(ctx)
	assert.True(t, model.IsTransport(err), "got %v", err)
	assert.Contains(t, err.Error(), "database unavailable")

	_, err = s.Echoes().Create(ctx, "hello")
	assert.True(t, model.IsTransport(err))
	assert.False(t, model.IsNotFound(err))

	assert.Error(t, s.HealthPing(ctx))
}

func TestSupabaseStore_CancelledContext(t *testing.T) {
	s, fake := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Echoes().ListActive(ctx, time.Now(), model.EchoListLimit)
	assert.True(t, model.IsTransport(err))
	assert.Zero(t, fake.hits.Load())
}
