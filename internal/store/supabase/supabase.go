// Package supabase stores memories and echoes in a hosted Supabase project
// through its PostgREST endpoint.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"github.com/zym9863/Dream-s-Exit/internal/model"
	"github.com/zym9863/Dream-s-Exit/internal/store"
)

const (
	memoriesTable = "chronoscroll_entries"
	echoesTable   = "echo_entries"

	memoryColumns = "id,title,content,image_url,music_url,music_title,created_at,updated_at,user_id"
	echoColumns   = "id,content,created_at,expires_at"
)

// Config describes how to reach the project.
type Config struct {
	URL    string
	Key    string
	Schema string
}

// Store is a store.Store backed by Supabase.
//
// Ids and timestamps come from the column defaults and the updated_at trigger
// in schema.sql. The PostgREST client has no request context, so cancellation
// is only observed between calls.
type Store struct {
	client *supa.Client
}

// New builds the client. No network traffic happens until the first call.
func New(cfg Config) (*Store, error) {
	client, err := supa.NewClient(cfg.URL, cfg.Key, &supa.ClientOptions{Schema: cfg.Schema})
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Memories() store.Memories { return &memories{s} }
func (s *Store) Echoes() store.Echoes     { return &echoes{s} }

// HealthPing implements health.HealthPinger with a one-row read.
func (s *Store) HealthPing(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var rows []echoRow
	_, err := s.client.From(echoesTable).Select("id", "", false).Limit(1, "").ExecuteTo(&rows)
	return err
}

var errNoRepresentation = errors.New("insert returned no row")

func (s *Store) from(table string) *postgrest.QueryBuilder { return s.client.From(table) }

// rows exchanged with PostgREST
type memoryRow struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	ImageURL   string    `json:"image_url"`
	MusicURL   string    `json:"music_url"`
	MusicTitle string    `json:"music_title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	UserID     string    `json:"user_id"`
}

// memoryPatch carries the editable columns; the trigger owns updated_at.
type memoryPatch struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	ImageURL   string `json:"image_url"`
	MusicURL   string `json:"music_url"`
	MusicTitle string `json:"music_title"`
}

type memoryInsert struct {
	memoryPatch
	UserID string `json:"user_id"`
}

type echoInsert struct {
	Content string `json:"content"`
}

func (r memoryRow) entry() *model.MemoryEntry {
	return &model.MemoryEntry{
		ID:         r.ID,
		Title:      r.Title,
		Content:    r.Content,
		ImageURL:   r.ImageURL,
		MusicURL:   r.MusicURL,
		MusicTitle: r.MusicTitle,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
		UserID:     r.UserID,
	}
}

type echoRow struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r echoRow) entry() *model.EchoEntry {
	return &model.EchoEntry{
		ID:        r.ID,
		Content:   r.Content,
		CreatedAt: r.CreatedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
	}
}

// validID reports whether id can match a uuid column; anything else would be
// rejected by PostgREST as a malformed filter.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func patchOf(f model.MemoryFields) memoryPatch {
	return memoryPatch{
		Title:      f.Title,
		Content:    f.Content,
		ImageURL:   f.ImageURL,
		MusicURL:   f.MusicURL,
		MusicTitle: f.MusicTitle,
	}
}

// --- Memories ---
type memories struct{ s *Store }

func (r *memories) List(ctx context.Context) ([]*model.MemoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Transport("list memories", err)
	}
	var rows []memoryRow
	_, err := r.s.from(memoriesTable).
		Select(memoryColumns, "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, model.Transport("list memories", err)
	}
	res := make([]*model.MemoryEntry, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.entry())
	}
	return res, nil
}

func (r *memories) Get(ctx context.Context, id string) (*model.MemoryEntry, error) {
	if !validID(id) {
		return nil, model.NotFound("memory", id)
	}
	if err := ctx.Err(); err != nil {
		return nil, model.Transport("get memory", err)
	}
	var rows []memoryRow
	_, err := r.s.from(memoriesTable).
		Select(memoryColumns, "", false).
		Eq("id", id).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, model.Transport("get memory", err)
	}
	if len(rows) == 0 {
		return nil, model.NotFound("memory", id)
	}
	return rows[0].entry(), nil
}

func (r *memories) Create(ctx context.Context, owner string, f model.MemoryFields) (*model.MemoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Transport("create memory", err)
	}
	in := memoryInsert{memoryPatch: patchOf(f), UserID: owner}
	var rows []memoryRow
	_, err := r.s.from(memoriesTable).Insert(in, false, "", "representation", "").ExecuteTo(&rows)
	if err != nil {
		return nil, model.Transport("create memory", err)
	}
	if len(rows) == 0 {
		return nil, model.Transport("create memory", errNoRepresentation)
	}
	return rows[0].entry(), nil
}

func (r *memories) Update(ctx context.Context, id string, f model.MemoryFields) (*model.MemoryEntry, error) {
	if !validID(id) {
		return nil, model.NotFound("memory", id)
	}
	if err := ctx.Err(); err != nil {
		return nil, model.Transport("update memory", err)
	}
	var rows []memoryRow
	_, err := r.s.from(memoriesTable).Update(patchOf(f), "representation", "").Eq("id", id).ExecuteTo(&rows)
	if err != nil {
		return nil, model.Transport("update memory", err)
	}
	if len(rows) == 0 {
		return nil, model.NotFound("memory", id)
	}
	return rows[0].entry(), nil
}

func (r *memories) Delete(ctx context.Context, id string) (int64, error) {
	if !validID(id) {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, model.Transport("delete memory", err)
	}
	var rows []memoryRow
	_, err := r.s.from(memoriesTable).Delete("representation", "").Eq("id", id).ExecuteTo(&rows)
	if err != nil {
		return 0, model.Transport("delete memory", err)
	}
	return int64(len(rows)), nil
}

// --- Echoes ---
type echoes struct{ s *Store }

func (r *echoes) ListActive(ctx context.Context, now time.Time, limit int) ([]*model.EchoEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Transport("list echoes", err)
	}
	q := r.s.from(echoesTable).
		Select(echoColumns, "", false).
		Gt("expires_at", timestamp(now)).
		Order("created_at", &postgrest.OrderOpts{Ascending: false})
	if limit > 0 {
		q = q.Limit(limit, "")
	}
	var rows []echoRow
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, model.Transport("list echoes", err)
	}
	res := make([]*model.EchoEntry, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.entry())
	}
	return res, nil
}

func (r *echoes) Create(ctx context.Context, content string) (*model.EchoEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Transport("create echo", err)
	}
	var rows []echoRow
	_, err := r.s.from(echoesTable).Insert(echoInsert{Content: content}, false, "", "representation", "").ExecuteTo(&rows)
	if err != nil {
		return nil, model.Transport("create echo", err)
	}
	if len(rows) == 0 {
		return nil, model.Transport("create echo", errNoRepresentation)
	}
	return rows[0].entry(), nil
}

func (r *echoes) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, model.Transport("purge echoes", err)
	}
	_, count, err := r.s.from(echoesTable).
		Delete("minimal", "exact").
		Lt("expires_at", timestamp(before)).
		Execute()
	if err != nil {
		return 0, model.Transport("purge echoes", err)
	}
	return count, nil
}
