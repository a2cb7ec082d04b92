// Package storetest checks that a [store.Store] implementation honours the
// interface contract.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/phonoscope/internal/store"
)

// Profile returns a profile with value v at index hot and zero elsewhere.
func Profile(hot int, v float32) []float32 {
	p := make([]float32, store.ProfileDims)
	p[hot] = v
	return p
}

// Run exercises s. The store must be empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	first := &store.Record{
		Speaker:   "ana",
		Reference: "the cat",
		AudioPath: "ana-1.wav",
		CreatedAt: at,
		ErrorRate: 0.4,
		Report:    []byte(`{"words":[]}`),
		Profile:   Profile(0, 0.4),
	}
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first.ID == uuid.Nil {
		t.Fatal("Save did not assign an ID")
	}

	got, err := s.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != first.ID || got.Speaker != "ana" || got.Reference != "the cat" || got.AudioPath != "ana-1.wav" ||
		!got.CreatedAt.Equal(at) || got.ErrorRate != 0.4 || string(got.Report) != `{"words":[]}` {
		t.Errorf("Get = %+v, want %+v", got, first)
	}
	if len(got.Profile) != store.ProfileDims || got.Profile[0] != 0.4 {
		t.Errorf("Get profile = %v", got.Profile)
	}

	// Mutating the returned record must not affect the stored one.
	got.Profile[0] = 9
	again, err := s.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get again: %v", err)
	}
	if again.Profile[0] != 0.4 {
		t.Error("Get returned a record aliasing stored state")
	}

	if _, err := s.Get(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get unknown: err = %v, want ErrNotFound", err)
	}

	second := &store.Record{Speaker: "ana", CreatedAt: at.Add(time.Hour), ErrorRate: 0.1, Profile: Profile(1, 0.1)}
	other := &store.Record{Speaker: "ben", CreatedAt: at.Add(2 * time.Hour), ErrorRate: 0.2, Profile: Profile(0, 0.2)}
	for _, r := range []*store.Record{second, other} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	list, err := s.ListBySpeaker(ctx, "ana", 0)
	if err != nil {
		t.Fatalf("ListBySpeaker: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("ListBySpeaker = %v, want newest first", ids(list))
	}
	list, err = s.ListBySpeaker(ctx, "ana", 1)
	if err != nil {
		t.Fatalf("ListBySpeaker limit: %v", err)
	}
	if len(list) != 1 || list[0].ID != second.ID {
		t.Errorf("ListBySpeaker limit 1 = %v", ids(list))
	}
	list, err = s.ListBySpeaker(ctx, "nobody", 0)
	if err != nil || list == nil || len(list) != 0 {
		t.Errorf("ListBySpeaker unknown = %v, %v, want empty non-nil", list, err)
	}

	matches, err := s.Similar(ctx, Profile(0, 1), 2)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Similar returned %d matches, want 2", len(matches))
	}
	// first and other both point along axis 0; other is newer.
	if matches[0].Record.ID != other.ID || matches[1].Record.ID != first.ID {
		t.Errorf("Similar order = %s, %s", matches[0].Record.Speaker, matches[1].Record.Speaker)
	}
	if matches[0].Distance > 1e-6 || matches[1].Distance > 1e-6 {
		t.Errorf("distances = %v, %v, want 0", matches[0].Distance, matches[1].Distance)
	}

	// Saving an existing ID replaces the record.
	first.ErrorRate = 0.05
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("Save replace: %v", err)
	}
	got, err = s.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get replaced: %v", err)
	}
	if got.ErrorRate != 0.05 {
		t.Errorf("ErrorRate after replace = %v, want 0.05", got.ErrorRate)
	}
}

func ids(recs []store.Record) []uuid.UUID {
	out := make([]uuid.UUID, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
