package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MrWong99/phonoscope/internal/store"
	"github.com/MrWong99/phonoscope/internal/store/sqlite"
	"github.com/MrWong99/phonoscope/internal/store/storetest"
)

func TestContract(t *testing.T) {
	t.Parallel()

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "history", "phonoscope.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	storetest.Run(t, s)
}

func TestInMemory(t *testing.T) {
	t.Parallel()

	s, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	storetest.Run(t, s)
}

func TestReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "phonoscope.db")
	ctx := context.Background()

	s, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec := &store.Record{Speaker: "ana", Profile: storetest.Profile(3, 0.25)}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = sqlite.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Profile[3] != 0.25 || string(got.Report) != "{}" {
		t.Errorf("Get = %+v", got)
	}
}
