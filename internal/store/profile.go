package store

import (
	"slices"

	"github.com/MrWong99/phonoscope/internal/assess"
	"github.com/MrWong99/phonoscope/internal/classify"
	"github.com/MrWong99/phonoscope/pkg/cost"
)

// ProfileClasses are the phoneme classes a mistake profile distinguishes,
// in vector order. Symbols outside every class count as "other".
var ProfileClasses = []string{
	"stop", "fricative", "affricate", "nasal", "liquid", "glide",
	"front_vowel", "central_vowel", "back_vowel", "diphthong", "other",
}

var profileKinds = []classify.Kind{classify.Substitution, classify.Insertion, classify.Deletion}

// ProfileDims is the length of a mistake profile.
var ProfileDims = len(ProfileClasses) * len(profileKinds)

var classifier = cost.NewArticulatory()

// Profile computes the mistake profile of s. Entry
// kind*len(ProfileClasses)+class is the number of mistakes of that kind on
// phonemes of that class, divided by max(1, s.RefPhonemes). Substitutions
// and deletions are classed by the expected phoneme, insertions by the
// produced one.
func Profile(s *assess.Summary) []float32 {
	out := make([]float32, ProfileDims)
	for _, m := range s.Mistakes() {
		sym := m.Expected()
		if m.Kind == classify.Insertion {
			sym = m.Produced()
		}
		k := slices.Index(profileKinds, m.Kind)
		if k < 0 {
			continue
		}
		out[k*len(ProfileClasses)+classOf(sym)]++
	}
	denom := float32(max(1, s.RefPhonemes))
	for i := range out {
		out[i] /= denom
	}
	return out
}

// classOf returns the index in ProfileClasses of the first class sym belongs
// to, or the index of "other".
func classOf(sym string) int {
	classes := classifier.Classes(sym)
	for i, c := range ProfileClasses[:len(ProfileClasses)-1] {
		if slices.Contains(classes, c) {
			return i
		}
	}
	return len(ProfileClasses) - 1
}
