package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/zym9863/Dream-s-Exit/internal/model"
	"github.com/zym9863/Dream-s-Exit/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema applies the embedded DDL; it is idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

// Store is a store.Store on PostgreSQL. All timestamps come from now() in the database.
type Store struct{ db *sql.DB }

func (s *Store) Memories() store.Memories { return &memories{db: s.db} }
func (s *Store) Echoes() store.Echoes     { return &echoes{db: s.db} }

// HealthPing implements health.HealthPinger for Postgres-backed store.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// validID reports whether id can match a uuid column; anything else can never match.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// --- Memories ---
type memories struct{ db *sql.DB }

const memoryColumns = `id::text, title, content, image_url, music_url, music_title, created_at, updated_at, user_id`

type scanner interface{ Scan(dest ...any) error }

func scanMemory(row scanner) (*model.MemoryEntry, error) {
	var m model.MemoryEntry
	if err := row.Scan(&m.ID, &m.Title, &m.Content, &m.ImageURL, &m.MusicURL, &m.MusicTitle, &m.CreatedAt, &m.UpdatedAt, &m.UserID); err != nil {
		return nil, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}

func (r *memories) List(ctx context.Context) ([]*model.MemoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+memoryColumns+` FROM chronoscroll_entries ORDER BY created_at DESC`)
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
	if !validID(id) {
		return nil, model.NotFound("memory", id)
	}
	m, err := scanMemory(r.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM chronoscroll_entries WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("memory", id)
	}
	if err != nil {
		return nil, model.Transport("get memory", err)
	}
	return m, nil
}

func (r *memories) Create(ctx context.Context, owner string, f model.MemoryFields) (*model.MemoryEntry, error) {
	row := r.db.QueryRowContext(ctx, `
        INSERT INTO chronoscroll_entries (title, content, image_url, music_url, music_title, user_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING `+memoryColumns,
		f.Title, f.Content, f.ImageURL, f.MusicURL, f.MusicTitle, owner)
	m, err := scanMemory(row)
	if err != nil {
		return nil, model.Transport("create memory", err)
	}
	return m, nil
}

func (r *memories) Update(ctx context.Context, id string, f model.MemoryFields) (*model.MemoryEntry, error) {
	if !validID(id) {
		return nil, model.NotFound("memory", id)
	}
	// updated_at is advanced by the chronoscroll_entries_touch trigger.
	row := r.db.QueryRowContext(ctx, `
        UPDATE chronoscroll_entries
        SET title=$2, content=$3, image_url=$4, music_url=$5, music_title=$6
        WHERE id=$1
        RETURNING `+memoryColumns,
		id, f.Title, f.Content, f.ImageURL, f.MusicURL, f.MusicTitle)
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
	if !validID(id) {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM chronoscroll_entries WHERE id=$1`, id)
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
type echoes struct{ db *sql.DB }

func (r *echoes) ListActive(ctx context.Context, now time.Time, limit int) ([]*model.EchoEntry, error) {
	var lim any // NULL means LIMIT ALL
	if limit > 0 {
		lim = limit
	}
	rows, err := r.db.QueryContext(ctx, `
        SELECT id::text, content, created_at, expires_at
        FROM echo_entries
        WHERE expires_at > $1
        ORDER BY created_at DESC
        LIMIT $2`, now, lim)
	if err != nil {
		return nil, model.Transport("list echoes", err)
	}
	defer func() { _ = rows.Close() }()
	res := []*model.EchoEntry{}
	for rows.Next() {
		var e model.EchoEntry
		if err := rows.Scan(&e.ID, &e.Content, &e.CreatedAt, &e.ExpiresAt); err != nil {
			return nil, model.Transport("list echoes", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		e.ExpiresAt = e.ExpiresAt.UTC()
		res = append(res, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Transport("list echoes", err)
	}
	return res, nil
}

func (r *echoes) Create(ctx context.Context, content string) (*model.EchoEntry, error) {
	var e model.EchoEntry
	err := r.db.QueryRowContext(ctx, `
        INSERT INTO echo_entries (content) VALUES ($1)
        RETURNING id::text, content, created_at, expires_at`, content).
		Scan(&e.ID, &e.Content, &e.CreatedAt, &e.ExpiresAt)
	if err != nil {
		return nil, model.Transport("create echo", err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.ExpiresAt = e.ExpiresAt.UTC()
	return &e, nil
}

func (r *echoes) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM echo_entries WHERE expires_at < $1`, before)
	if err != nil {
		return 0, model.Transport("purge echoes", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, model.Transport("purge echoes", err)
	}
	return n, nil
}
