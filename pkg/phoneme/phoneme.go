// Package phoneme provides the normalised phoneme sequences that the
// assessment core aligns.
//
// A reference [Sequence] is built word by word from G2P output with
// [FromWords]; every phoneme carries the index of the word it belongs to, and
// the words themselves live in an arena owned by the sequence. A hypothesis
// sequence is built from a flat transcription stream with [FromStream]; its
// phonemes carry optional time offsets but no word index.
//
// Symbols are opaque. Construction never folds case or strips stress marks;
// callers that want that must apply [Normalize], [Tokenize], or [StripStress]
// identically to both sides before building sequences.
package phoneme

import (
	"errors"
	"fmt"

	"github.com/MrWong99/phonoscope/pkg/types"
)

// NoWord is the word index of a phoneme that does not belong to any
// reference word (all hypothesis phonemes).
const NoWord = -1

// ErrInvalidInput is matched by every [*InvalidInputError] via [errors.Is].
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError reports a caller contract violation: malformed phoneme
// metadata or a cost model returning a negative cost. It is never returned
// for data conditions such as empty sequences or unseen symbols.
type InvalidInputError struct {
	// Field names the offending input ("word_index", "symbol", "cost", ...).
	Field string

	// Index is the position of the offending element, or -1.
	Index int

	// Reason is a human-readable description.
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid input: %s[%d]: %s", e.Field, e.Index, e.Reason)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// Is makes every InvalidInputError match [ErrInvalidInput].
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Phoneme is a single phonetic symbol plus its attribution metadata.
// Phoneme values are immutable once constructed.
type Phoneme struct {
	// Symbol is the phonetic symbol, compared byte-for-byte.
	Symbol string

	// Word is the index of the owning word in the reference word arena, or
	// [NoWord].
	Word int

	// Start and End are time offsets in seconds (hypothesis only), nil when
	// the transcription model reported no timestamps.
	Start *float64
	End   *float64
}

// HasWord reports whether p belongs to a reference word.
func (p Phoneme) HasWord() bool {
	return p.Word != NoWord
}

// Span returns the time span of p. ok is false unless both Start and End are
// set.
func (p Phoneme) Span() (span types.TimeSpan, ok bool) {
	if p.Start == nil || p.End == nil {
		return types.TimeSpan{}, false
	}
	return types.TimeSpan{Start: *p.Start, End: *p.End}, true
}

// Word is one entry of the reference word arena.
type Word struct {
	// Text is the word as written in the reference script.
	Text string

	// First is the index of the word's first phoneme in the sequence and
	// Count the number of phonemes it owns. Count is 0 for words whose G2P
	// output was empty.
	First int
	Count int
}

// Sequence is an ordered, immutable list of phonemes. The zero value is an
// empty sequence.
type Sequence struct {
	phonemes []Phoneme
	words    []Word
}

// FromWords builds a reference sequence from G2P output. Words are
// concatenated in input order so every word owns a contiguous run. Words
// whose phoneme list is empty contribute no symbols but still occupy a slot
// in the word arena; empty symbol strings inside a list are dropped.
func FromWords(words []types.WordPhonemes) Sequence {
	n := 0
	for _, w := range words {
		n += len(w.Phonemes)
	}
	s := Sequence{
		phonemes: make([]Phoneme, 0, n),
		words:    make([]Word, 0, len(words)),
	}
	for wi, w := range words {
		first := len(s.phonemes)
		for _, sym := range w.Phonemes {
			if sym == "" {
				continue
			}
			s.phonemes = append(s.phonemes, Phoneme{Symbol: sym, Word: wi})
		}
		s.words = append(s.words, Word{
			Text:  w.Word,
			First: first,
			Count: len(s.phonemes) - first,
		})
	}
	return s
}

// FromStream builds a hypothesis sequence from a transcription stream,
// preserving order and timestamps. Empty symbols are dropped.
func FromStream(stream []types.TimedSymbol) Sequence {
	s := Sequence{phonemes: make([]Phoneme, 0, len(stream))}
	for _, ts := range stream {
		if ts.Symbol == "" {
			continue
		}
		s.phonemes = append(s.phonemes, Phoneme{
			Symbol: ts.Symbol,
			Word:   NoWord,
			Start:  ts.Start,
			End:    ts.End,
		})
	}
	return s
}

// FromSymbols builds an unattributed sequence from bare symbols.
func FromSymbols(symbols []string) Sequence {
	stream := make([]types.TimedSymbol, len(symbols))
	for i, sym := range symbols {
		stream[i] = types.TimedSymbol{Symbol: sym}
	}
	return FromStream(stream)
}

// New builds a sequence from explicit phonemes and a word arena. It performs
// no checks; call [Sequence.Validate] before handing the result to the
// alignment engine. It exists for callers that assemble sequences themselves.
func New(phonemes []Phoneme, words []Word) Sequence {
	return Sequence{
		phonemes: append([]Phoneme(nil), phonemes...),
		words:    append([]Word(nil), words...),
	}
}

// Len returns the number of phonemes in s.
func (s Sequence) Len() int { return len(s.phonemes) }

// At returns the i-th phoneme.
func (s Sequence) At(i int) Phoneme { return s.phonemes[i] }

// Symbols returns a copy of the symbol strings in order.
func (s Sequence) Symbols() []string {
	out := make([]string, len(s.phonemes))
	for i, p := range s.phonemes {
		out[i] = p.Symbol
	}
	return out
}

// Words returns a copy of the word arena.
func (s Sequence) Words() []Word {
	return append([]Word(nil), s.words...)
}

// WordCount returns the number of words in the arena.
func (s Sequence) WordCount() int { return len(s.words) }

// WordAt returns the i-th arena word.
func (s Sequence) WordAt(i int) Word { return s.words[i] }

// WordSymbols returns the symbols owned by word wi.
func (s Sequence) WordSymbols(wi int) []string {
	w := s.words[wi]
	out := make([]string, w.Count)
	for i := range w.Count {
		out[i] = s.phonemes[w.First+i].Symbol
	}
	return out
}

// Validate checks the sequence invariants: word indices are either [NoWord]
// or within the arena, phonemes of the same word form one contiguous run,
// and each arena word's First and Count describe exactly that run.
// A violation is reported as an [*InvalidInputError].
func (s Sequence) Validate() error {
	last := NoWord
	seen := make(map[int]bool, len(s.words))
	owned := make([]int, len(s.words))
	for i, p := range s.phonemes {
		if p.Symbol == "" {
			return &InvalidInputError{Field: "symbol", Index: i, Reason: "empty symbol"}
		}
		if p.Word == NoWord {
			last = NoWord
			continue
		}
		if p.Word < 0 {
			return &InvalidInputError{Field: "word_index", Index: i, Reason: fmt.Sprintf("negative word index %d", p.Word)}
		}
		if p.Word >= len(s.words) {
			return &InvalidInputError{Field: "word_index", Index: i, Reason: fmt.Sprintf("word index %d out of range [0,%d)", p.Word, len(s.words))}
		}
		if p.Word != last {
			if seen[p.Word] {
				return &InvalidInputError{Field: "word_index", Index: i, Reason: fmt.Sprintf("word %d does not occupy a contiguous run", p.Word)}
			}
			seen[p.Word] = true
			last = p.Word
		}
		owned[p.Word]++
	}
	for wi, w := range s.words {
		if w.First < 0 || w.Count < 0 || w.First+w.Count > len(s.phonemes) {
			return &InvalidInputError{Field: "word", Index: wi, Reason: fmt.Sprintf("span [%d,%d) outside sequence of %d phonemes", w.First, w.First+w.Count, len(s.phonemes))}
		}
		if w.Count != owned[wi] {
			return &InvalidInputError{Field: "word", Index: wi, Reason: fmt.Sprintf("count %d but %d phonemes carry the word index", w.Count, owned[wi])}
		}
		for i := w.First; i < w.First+w.Count; i++ {
			if s.phonemes[i].Word != wi {
				return &InvalidInputError{Field: "word", Index: wi, Reason: fmt.Sprintf("phoneme %d inside the span belongs to word %d", i, s.phonemes[i].Word)}
			}
		}
	}
	return nil
}
