// Package store keeps a history of assessments so that a speaker's progress
// can be tracked and recurring error patterns found across speakers.
//
// Each saved [Record] carries a mistake profile (see [Profile]): a fixed
// length vector of per-class error rates. [Store.Similar] returns the
// records whose profiles are closest by cosine distance.
//
// Implementations: memstore (in-process), postgres (pgx + pgvector) and
// sqlite (database/sql + go-sqlite3).
package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by [Store.Get] when no record has the given ID.
var ErrNotFound = errors.New("store: record not found")

// Record is one stored assessment.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Speaker   string    `json:"speaker"`
	Reference string    `json:"reference"`
	AudioPath string    `json:"audio_path"`
	CreatedAt time.Time `json:"created_at"`
	ErrorRate float64   `json:"error_rate"`

	// Report is the JSON assessment report.
	Report json.RawMessage `json:"report"`

	// Profile is the mistake profile, [ProfileDims] long.
	Profile []float32 `json:"profile"`
}

// Match is a record returned by a similarity search.
type Match struct {
	Record   Record  `json:"record"`
	Distance float64 `json:"distance"`
}

// Store persists assessment records. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save stores rec. A zero ID is replaced with a new random UUID and a
	// zero CreatedAt with the current time; both are written back into rec.
	Save(ctx context.Context, rec *Record) error

	// Get returns the record with the given ID, or [ErrNotFound].
	Get(ctx context.Context, id uuid.UUID) (*Record, error)

	// ListBySpeaker returns up to limit records for speaker, newest first.
	// A limit <= 0 returns all of them.
	ListBySpeaker(ctx context.Context, speaker string, limit int) ([]Record, error)

	// Similar returns up to k records ordered by ascending cosine distance
	// between their profile and profile.
	Similar(ctx context.Context, profile []float32, k int) ([]Match, error)

	// Close releases the store's resources.
	Close() error
}

// Prepare fills in a missing ID and creation time.
func Prepare(rec *Record, now time.Time) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now.UTC()
	}
}

// CosineDistance returns 1 - cos(a, b). A zero-length or all-zero vector
// has distance 1 from everything. Vectors of different length are compared
// over their common prefix.
func CosineDistance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := range n {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// Rank orders recs by ascending cosine distance to profile and returns the
// first k, or all of them when k <= 0. Ties keep newest records first.
func Rank(recs []Record, profile []float32, k int) []Match {
	out := make([]Match, 0, len(recs))
	for _, r := range recs {
		out = append(out, Match{Record: r, Distance: CosineDistance(r.Profile, profile)})
	}
	slices.SortStableFunc(out, func(a, b Match) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return b.Record.CreatedAt.Compare(a.Record.CreatedAt)
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
