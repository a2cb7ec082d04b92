// Package phonetic finds the dictionary headword that sounds most like an
// out-of-vocabulary word, so a pronunciation can be borrowed for it.
//
// The lookup proceeds in two stages:
//
//  1. Phonetic candidate filtering: the [Index] buckets every headword by its
//     Double Metaphone codes. Headwords sharing a code with the query are
//     phonetic candidates.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the headword with the
//     highest Jaro-Winkler similarity to the query is selected, provided its
//     score reaches the phonetic threshold.
//
//     When no phonetic candidate qualifies, a secondary pass ranks the
//     headwords sharing the query's first letter by pure Jaro-Winkler
//     similarity, using a higher fuzzy threshold (default 0.85).
//
// Ties are broken by the lexically smaller headword so results do not depend
// on map iteration order.
package phonetic

import (
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring an [Index].
type Option func(*Index)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched headword to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(ix *Index) {
		ix.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the index falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(ix *Index) {
		ix.fuzzyThreshold = threshold
	}
}

// Index is a phonetic lookup over a fixed set of lower-case headwords.
// It is read-only after construction and safe for concurrent use.
type Index struct {
	phoneticThreshold float64
	fuzzyThreshold    float64

	// byCode maps a Double Metaphone code to the headwords producing it.
	byCode map[string][]string
	// byInitial maps a first rune to the headwords starting with it.
	byInitial map[rune][]string
	size      int
}

// NewIndex builds an Index over words. Words are lower-cased and
// de-duplicated; empty words are ignored.
func NewIndex(words []string, opts ...Option) *Index {
	ix := &Index{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		byCode:            make(map[string][]string),
		byInitial:         make(map[rune][]string),
	}
	for _, o := range opts {
		o(ix)
	}

	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		ix.size++

		for code := range codes(w) {
			ix.byCode[code] = append(ix.byCode[code], w)
		}
		r := []rune(w)[0]
		ix.byInitial[r] = append(ix.byInitial[r], w)
	}
	return ix
}

// Len returns the number of distinct headwords.
func (ix *Index) Len() int { return ix.size }

// Match returns the indexed headword that sounds most like word.
//
// When matched is false, headword is empty and confidence is 0. An exact
// (case-insensitive) hit returns confidence 1.
func (ix *Index) Match(word string) (headword string, confidence float64, matched bool) {
	q := strings.ToLower(strings.TrimSpace(word))
	if q == "" || ix.size == 0 {
		return "", 0, false
	}

	var best string
	var bestScore float64
	consider := func(cand string, threshold float64) {
		s := matchr.JaroWinkler(q, cand, false)
		if s < threshold {
			return
		}
		if best == "" || s > bestScore || (s == bestScore && cand < best) {
			best, bestScore = cand, s
		}
	}

	// Stage 1: phonetic candidates.
	for code := range codes(q) {
		for _, cand := range ix.byCode[code] {
			consider(cand, ix.phoneticThreshold)
		}
	}
	if best != "" {
		return best, bestScore, true
	}

	// Stage 2: fuzzy fallback within the same initial.
	for _, cand := range ix.byInitial[[]rune(q)[0]] {
		consider(cand, ix.fuzzyThreshold)
	}
	if best != "" {
		return best, bestScore, true
	}
	return "", 0, false
}

// Candidates returns the headwords sharing a Double Metaphone code with
// word, sorted.
func (ix *Index) Candidates(word string) []string {
	q := strings.ToLower(strings.TrimSpace(word))
	set := make(map[string]struct{})
	for code := range codes(q) {
		for _, cand := range ix.byCode[code] {
			set[cand] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// codes returns the primary and secondary Double Metaphone codes of w.
// Empty codes (produced when the word contains no consonants) are excluded.
func codes(w string) map[string]struct{} {
	out := make(map[string]struct{}, 2)
	if w == "" {
		return out
	}
	p, s := matchr.DoubleMetaphone(w)
	if p != "" {
		out[p] = struct{}{}
	}
	if s != "" {
		out[s] = struct{}{}
	}
	return out
}
