// Package postgres is a [store.Store] backed by PostgreSQL with the pgvector
// extension. Mistake profiles live in a vector column with an HNSW cosine
// index so that [Store.Similar] runs as an indexed nearest-neighbour query.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/phonoscope/internal/store"
)

// Schema is the DDL for the assessments table. The profile column width is
// [store.ProfileDims].
var Schema = strings.ReplaceAll(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS assessments (
    id          UUID PRIMARY KEY,
    speaker     TEXT NOT NULL DEFAULT '',
    reference   TEXT NOT NULL DEFAULT '',
    audio_path  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    error_rate  DOUBLE PRECISION NOT NULL DEFAULT 0,
    report      JSONB NOT NULL DEFAULT '{}',
    profile     vector(DIMS) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessments_speaker ON assessments(speaker, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_assessments_profile
    ON assessments USING hnsw (profile vector_cosine_ops);
`, "DIMS", strconv.Itoa(store.ProfileDims))

const columns = `id, speaker, reference, audio_path, created_at, error_rate, report, profile`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it. Connections must have the pgvector types registered.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ store.Store = (*Store)(nil)

// Store is a PostgreSQL [store.Store].
type Store struct {
	db   DB
	pool *pgxpool.Pool
}

// New returns a Store using db. The caller owns db and must run
// [Store.Migrate] before the first query.
func New(db DB) *Store {
	return &Store{db: db}
}

// Open connects to the database at dsn, registers the pgvector types on
// every pooled connection and migrates the schema. [Store.Close] closes the
// pool.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	s := &Store{db: pool, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate executes [Schema].
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres store: migrate: %w", err)
	}
	return nil
}

// Save implements [store.Store.Save]. Saving an existing ID replaces it.
func (s *Store) Save(ctx context.Context, rec *store.Record) error {
	if len(rec.Profile) != store.ProfileDims {
		return fmt.Errorf("postgres store: profile has %d dimensions, want %d", len(rec.Profile), store.ProfileDims)
	}
	store.Prepare(rec, time.Now())

	report := rec.Report
	if len(report) == 0 {
		report = json.RawMessage("{}")
	}

	const query = `
		INSERT INTO assessments (` + columns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			speaker    = EXCLUDED.speaker,
			reference  = EXCLUDED.reference,
			audio_path = EXCLUDED.audio_path,
			created_at = EXCLUDED.created_at,
			error_rate = EXCLUDED.error_rate,
			report     = EXCLUDED.report,
			profile    = EXCLUDED.profile`

	_, err := s.db.Exec(ctx, query,
		rec.ID, rec.Speaker, rec.Reference, rec.AudioPath, rec.CreatedAt,
		rec.ErrorRate, []byte(report), pgvector.NewVector(rec.Profile),
	)
	if err != nil {
		return fmt.Errorf("postgres store: save %s: %w", rec.ID, err)
	}
	return nil
}

// Get implements [store.Store.Get].
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*store.Record, error) {
	const query = `SELECT ` + columns + ` FROM assessments WHERE id = $1`

	var rec store.Record
	var report []byte
	var vec pgvector.Vector
	err := s.db.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.Speaker, &rec.Reference, &rec.AudioPath, &rec.CreatedAt,
		&rec.ErrorRate, &report, &vec,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres store: get %s: %w", id, err)
	}
	rec.Report = report
	rec.Profile = vec.Slice()
	return &rec, nil
}

// ListBySpeaker implements [store.Store.ListBySpeaker].
func (s *Store) ListBySpeaker(ctx context.Context, speaker string, limit int) ([]store.Record, error) {
	query := `SELECT ` + columns + ` FROM assessments WHERE speaker = $1 ORDER BY created_at DESC`
	args := []any{speaker}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list %q: %w", speaker, err)
	}
	defer rows.Close()

	out := make([]store.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres store: list %q: %w", speaker, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: list %q: %w", speaker, err)
	}
	return out, nil
}

// Similar implements [store.Store.Similar] with the pgvector cosine
// distance operator. pgvector reports NaN for all-zero vectors; those rows
// sort last and are returned with distance 1.
func (s *Store) Similar(ctx context.Context, profile []float32, k int) ([]store.Match, error) {
	query := `SELECT ` + columns + `, profile <=> $1 AS distance
		FROM assessments
		ORDER BY profile <=> $1, created_at DESC`
	args := []any{pgvector.NewVector(profile)}
	if k > 0 {
		query += ` LIMIT $2`
		args = append(args, k)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: similar: %w", err)
	}
	defer rows.Close()

	out := make([]store.Match, 0)
	for rows.Next() {
		var (
			m      store.Match
			report []byte
			vec    pgvector.Vector
		)
		err := rows.Scan(
			&m.Record.ID, &m.Record.Speaker, &m.Record.Reference, &m.Record.AudioPath, &m.Record.CreatedAt,
			&m.Record.ErrorRate, &report, &vec, &m.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres store: similar: scan: %w", err)
		}
		m.Record.Report = report
		m.Record.Profile = vec.Slice()
		if math.IsNaN(m.Distance) {
			m.Distance = 1
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: similar: %w", err)
	}
	return out, nil
}

// Close implements [store.Store.Close]. It closes the pool created by
// [Open] and is a no-op for stores built with [New].
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func scanRecord(rows pgx.Rows) (store.Record, error) {
	var (
		rec    store.Record
		report []byte
		vec    pgvector.Vector
	)
	err := rows.Scan(
		&rec.ID, &rec.Speaker, &rec.Reference, &rec.AudioPath, &rec.CreatedAt,
		&rec.ErrorRate, &report, &vec,
	)
	if err != nil {
		return store.Record{}, fmt.Errorf("scan: %w", err)
	}
	rec.Report = report
	rec.Profile = vec.Slice()
	return rec, nil
}
