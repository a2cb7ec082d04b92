package phoneme_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/MrWong99/phonoscope/pkg/phoneme"
	"github.com/MrWong99/phonoscope/pkg/types"
)

func TestFromWords_ContiguousRuns(t *testing.T) {
	t.Parallel()

	seq := phoneme.FromWords([]types.WordPhonemes{
		{Word: "the", Phonemes: []string{"ð", "ə"}},
		{Word: "zebra", Phonemes: []string{"z", "i", "b", "r", "ə"}},
	})

	if seq.Len() != 7 {
		t.Fatalf("Len() = %d, want 7", seq.Len())
	}
	if seq.WordCount() != 2 {
		t.Fatalf("WordCount() = %d, want 2", seq.WordCount())
	}
	for i := range 2 {
		if got := seq.At(i).Word; got != 0 {
			t.Errorf("At(%d).Word = %d, want 0", i, got)
		}
	}
	for i := 2; i < 7; i++ {
		if got := seq.At(i).Word; got != 1 {
			t.Errorf("At(%d).Word = %d, want 1", i, got)
		}
	}
	if w := seq.WordAt(1); w.First != 2 || w.Count != 5 || w.Text != "zebra" {
		t.Errorf("WordAt(1) = %+v, want {zebra 2 5}", w)
	}
	if err := seq.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestFromWords_EmptyPhonemesDropped(t *testing.T) {
	t.Parallel()

	seq := phoneme.FromWords([]types.WordPhonemes{
		{Word: "a", Phonemes: []string{"ə"}},
		{Word: "xyzzy", Phonemes: nil},
		{Word: "cat", Phonemes: []string{"k", "", "æ", "t"}},
	})

	if seq.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", seq.Len())
	}
	if seq.WordCount() != 3 {
		t.Fatalf("WordCount() = %d, want 3 (empty words keep their slot)", seq.WordCount())
	}
	if w := seq.WordAt(1); w.Count != 0 {
		t.Errorf("WordAt(1).Count = %d, want 0", w.Count)
	}
	if got, want := seq.WordSymbols(2), []string{"k", "æ", "t"}; !reflect.DeepEqual(got, want) {
		t.Errorf("WordSymbols(2) = %v, want %v", got, want)
	}
}

func TestFromStream_KeepsTimestamps(t *testing.T) {
	t.Parallel()

	seq := phoneme.FromStream([]types.TimedSymbol{
		{Symbol: "h", Start: types.Float64(0.1), End: types.Float64(0.2)},
		{Symbol: "ə"},
	})
	if seq.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", seq.Len())
	}
	span, ok := seq.At(0).Span()
	if !ok || span.Start != 0.1 || span.End != 0.2 {
		t.Errorf("At(0).Span() = %+v, %v; want {0.1 0.2}, true", span, ok)
	}
	if _, ok := seq.At(1).Span(); ok {
		t.Error("At(1).Span() ok = true, want false for missing timestamps")
	}
	if seq.At(0).HasWord() {
		t.Error("hypothesis phoneme must not carry a word index")
	}
}

func TestValidate_Violations(t *testing.T) {
	t.Parallel()

	words := []phoneme.Word{{Text: "a", First: 0, Count: 1}, {Text: "b", First: 1, Count: 1}}

	tests := []struct {
		name     string
		phonemes []phoneme.Phoneme
		field    string
	}{
		{
			name:     "negative index",
			phonemes: []phoneme.Phoneme{{Symbol: "a", Word: -2}},
			field:    "word_index",
		},
		{
			name:     "out of range",
			phonemes: []phoneme.Phoneme{{Symbol: "a", Word: 2}},
			field:    "word_index",
		},
		{
			name: "non contiguous",
			phonemes: []phoneme.Phoneme{
				{Symbol: "a", Word: 0},
				{Symbol: "b", Word: 1},
				{Symbol: "c", Word: 0},
			},
			field: "word_index",
		},
		{
			name:     "empty symbol",
			phonemes: []phoneme.Phoneme{{Symbol: "", Word: 0}},
			field:    "symbol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := phoneme.New(tt.phonemes, words).Validate()
			if !errors.Is(err, phoneme.ErrInvalidInput) {
				t.Fatalf("Validate() = %v, want ErrInvalidInput", err)
			}
			var iie *phoneme.InvalidInputError
			if !errors.As(err, &iie) {
				t.Fatalf("Validate() error %T is not *InvalidInputError", err)
			}
			if iie.Field != tt.field {
				t.Errorf("Field = %q, want %q", iie.Field, tt.field)
			}
		})
	}
}

func TestValidate_WordArena(t *testing.T) {
	t.Parallel()

	ab := []phoneme.Phoneme{{Symbol: "a", Word: 0}, {Symbol: "b", Word: 1}}
	tests := []struct {
		name     string
		phonemes []phoneme.Phoneme
		words    []phoneme.Word
		wantErr  bool
	}{
		{"consistent", ab, []phoneme.Word{{Text: "a", First: 0, Count: 1}, {Text: "b", First: 1, Count: 1}}, false},
		{"empty word at end", ab, []phoneme.Word{{Text: "a", First: 0, Count: 1}, {Text: "b", First: 1, Count: 1}, {Text: "-", First: 2}}, false},
		{"count past end", []phoneme.Phoneme{{Symbol: "a", Word: 0}}, []phoneme.Word{{Text: "a", First: 0, Count: 5}}, true},
		{"negative first", []phoneme.Phoneme{{Symbol: "a", Word: 0}}, []phoneme.Word{{Text: "a", First: -1, Count: 1}}, true},
		{"span misses phonemes", ab, []phoneme.Word{{Text: "a", First: 0, Count: 0}, {Text: "b", First: 1, Count: 1}}, true},
		{"span on another word", ab, []phoneme.Word{{Text: "a", First: 1, Count: 1}, {Text: "b", First: 1, Count: 1}}, true},
		{"span over unattributed phoneme", []phoneme.Phoneme{{Symbol: "a", Word: 0}, {Symbol: "x", Word: phoneme.NoWord}}, []phoneme.Word{{Text: "a", First: 0, Count: 2}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := phoneme.New(tt.phonemes, tt.words).Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var iie *phoneme.InvalidInputError
			if !errors.As(err, &iie) || iie.Field != "word" {
				t.Fatalf("Validate() = %v, want InvalidInputError on field word", err)
			}
		})
	}
}

func TestValidate_EmptySequence(t *testing.T) {
	t.Parallel()
	var seq phoneme.Sequence
	if err := seq.Validate(); err != nil {
		t.Errorf("Validate() on empty sequence = %v, want nil", err)
	}
}
