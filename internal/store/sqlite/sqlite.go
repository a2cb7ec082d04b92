// Package sqlite is a single-file [store.Store] for local use. Profiles are
// stored as little-endian float32 blobs and similarity search ranks every
// row in process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/MrWong99/phonoscope/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS assessments (
    id          TEXT PRIMARY KEY,
    speaker     TEXT NOT NULL DEFAULT '',
    reference   TEXT NOT NULL DEFAULT '',
    audio_path  TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    error_rate  REAL NOT NULL DEFAULT 0,
    report      TEXT NOT NULL DEFAULT '{}',
    profile     BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessments_speaker ON assessments(speaker, created_at DESC);
`

const columns = `id, speaker, reference, audio_path, created_at, error_rate, report, profile`

var _ store.Store = (*Store)(nil)

// Store is a SQLite [store.Store].
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema. The
// special path ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite store: create directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", path, err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Save implements [store.Store.Save]. Saving an existing ID replaces it.
func (s *Store) Save(ctx context.Context, rec *store.Record) error {
	store.Prepare(rec, time.Now())
	report := string(rec.Report)
	if report == "" {
		report = "{}"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO assessments (`+columns+`) VALUES (?,?,?,?,?,?,?,?)`,
		rec.ID.String(), rec.Speaker, rec.Reference, rec.AudioPath, rec.CreatedAt.UnixNano(),
		rec.ErrorRate, report, encodeProfile(rec.Profile),
	)
	if err != nil {
		return fmt.Errorf("sqlite store: save %s: %w", rec.ID, err)
	}
	return nil
}

// Get implements [store.Store.Get].
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*store.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM assessments WHERE id = ?`, id.String())
	rec, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite store: get %s: %w", id, err)
	}
	return &rec, nil
}

// ListBySpeaker implements [store.Store.ListBySpeaker].
func (s *Store) ListBySpeaker(ctx context.Context, speaker string, limit int) ([]store.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	out, err := s.query(ctx,
		`SELECT `+columns+` FROM assessments WHERE speaker = ? ORDER BY created_at DESC LIMIT ?`,
		speaker, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list %q: %w", speaker, err)
	}
	return out, nil
}

// Similar implements [store.Store.Similar].
func (s *Store) Similar(ctx context.Context, profile []float32, k int) ([]store.Match, error) {
	all, err := s.query(ctx, `SELECT `+columns+` FROM assessments`)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: similar: %w", err)
	}
	return store.Rank(all, profile, k), nil
}

// Close implements [store.Store.Close].
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]store.Record, 0)
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (store.Record, error) {
	var (
		rec     store.Record
		id      string
		created int64
		report  string
		profile []byte
	)
	if err := r.Scan(&id, &rec.Speaker, &rec.Reference, &rec.AudioPath, &created, &rec.ErrorRate, &report, &profile); err != nil {
		return store.Record{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return store.Record{}, fmt.Errorf("parse id %q: %w", id, err)
	}
	rec.ID = parsed
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.Report = []byte(report)
	rec.Profile = decodeProfile(profile)
	return rec, nil
}

func encodeProfile(p []float32) []byte {
	buf := make([]byte, 4*len(p))
	for i, f := range p {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeProfile(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}
