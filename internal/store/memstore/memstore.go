// Package memstore is an in-process [store.Store] backed by a map.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/phonoscope/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is a thread-safe, in-memory [store.Store]. Records are lost when the
// process exits. The zero value is ready to use.
type Store struct {
	mu      sync.RWMutex
	records map[uuid.UUID]store.Record
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[uuid.UUID]store.Record)}
}

// Save implements [store.Store.Save]. Saving an existing ID replaces it.
func (s *Store) Save(ctx context.Context, rec *store.Record) error {
	store.Prepare(rec, time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = make(map[uuid.UUID]store.Record)
	}
	s.records[rec.ID] = clone(*rec)
	return nil
}

// Get implements [store.Store.Get].
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r = clone(r)
	return &r, nil
}

// ListBySpeaker implements [store.Store.ListBySpeaker].
func (s *Store) ListBySpeaker(ctx context.Context, speaker string, limit int) ([]store.Record, error) {
	s.mu.RLock()
	out := make([]store.Record, 0)
	for _, r := range s.records {
		if r.Speaker == speaker {
			out = append(out, clone(r))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b store.Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Similar implements [store.Store.Similar].
func (s *Store) Similar(ctx context.Context, profile []float32, k int) ([]store.Match, error) {
	s.mu.RLock()
	all := make([]store.Record, 0, len(s.records))
	for _, r := range s.records {
		all = append(all, clone(r))
	}
	s.mu.RUnlock()
	return store.Rank(all, profile, k), nil
}

// Close implements [store.Store.Close]. It is a no-op.
func (s *Store) Close() error { return nil }

func clone(r store.Record) store.Record {
	r.Report = slices.Clone(r.Report)
	r.Profile = slices.Clone(r.Profile)
	return r
}
