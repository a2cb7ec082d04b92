// Package g2p defines the Provider interface for grapheme-to-phoneme
// backends.
//
// A G2P provider turns the words of a reference script into phoneme symbols.
// The assessment core sees only the resulting [types.WordPhonemes]; backend
// choice (dictionary lookup, rule-based synthesis) and lexicon overrides are
// resolved before that boundary.
//
// Implementations must be safe for concurrent use.
package g2p

import (
	"context"
	"errors"

	"github.com/MrWong99/phonoscope/pkg/types"
)

// ErrUnavailable is returned (wrapped) when a backend cannot run at all, for
// example because its external binary or dictionary file is missing.
var ErrUnavailable = errors.New("g2p: backend unavailable")

// Provider is the abstraction over any G2P backend.
type Provider interface {
	// Phonemize returns one entry per input word, in input order. Words the
	// backend cannot pronounce get an empty (non-nil) Phonemes slice rather
	// than an error.
	//
	// Returns an error only when the backend itself fails (process crash,
	// ctx cancelled).
	Phonemize(ctx context.Context, words []string) ([]types.WordPhonemes, error)

	// Name identifies the backend in reports ("espeak", "cmudict", ...).
	Name() string
}
