package classify

import (
	"fmt"

	"github.com/MrWong99/phonoscope/internal/align"
	"github.com/MrWong99/phonoscope/pkg/phoneme"
	"github.com/MrWong99/phonoscope/pkg/types"
)

// Policy decides which word an insertion is attributed to.
type Policy uint8

const (
	// PrecedingWord folds an insertion into the word whose reference phoneme
	// was consumed most recently in alignment order. Insertions before the
	// first reference phoneme go to the leading bucket.
	PrecedingWord Policy = iota

	// NearestByTime attributes a timestamped insertion to the word whose
	// aligned hypothesis phonemes lie closest in time; ties go to the earlier
	// word. Insertions without timestamps, or alignments in which no word
	// has a timestamped counterpart, fall back to PrecedingWord.
	NearestByTime
)

// String returns the configuration name of p.
func (p Policy) String() string {
	switch p {
	case PrecedingWord:
		return "preceding_word"
	case NearestByTime:
		return "nearest_by_time"
	default:
		return fmt.Sprintf("Policy(%d)", uint8(p))
	}
}

// IsValid reports whether p is a known policy.
func (p Policy) IsValid() bool {
	return p == PrecedingWord || p == NearestByTime
}

// ParsePolicy parses the String form of a policy. The empty string means
// PrecedingWord.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "preceding_word":
		return PrecedingWord, nil
	case "nearest_by_time":
		return NearestByTime, nil
	default:
		return PrecedingWord, fmt.Errorf("classify: unknown attribution policy %q", s)
	}
}

type config struct {
	policy Policy
}

// Option configures [Classify].
type Option func(*config)

// WithPolicy selects the insertion attribution policy.
func WithPolicy(p Policy) Option {
	return func(c *config) { c.policy = p }
}

// anchor is the time span covered by the hypothesis phonemes aligned to one
// reference word.
type anchor struct {
	word int
	span types.TimeSpan
}

// wordAnchors collects, in word order, the spans of timestamped hypothesis
// phonemes matched or substituted against each word.
func wordAnchors(ops []align.EditOp, ref, hyp phoneme.Sequence) []anchor {
	var out []anchor
	for _, op := range ops {
		if op.Ref < 0 || op.Hyp < 0 {
			continue
		}
		w := ref.At(op.Ref).Word
		if w == phoneme.NoWord {
			continue
		}
		span, ok := hyp.At(op.Hyp).Span()
		if !ok {
			continue
		}
		if n := len(out); n > 0 && out[n-1].word == w {
			out[n-1].span = out[n-1].span.Union(span)
			continue
		}
		out = append(out, anchor{word: w, span: span})
	}
	return out
}

// nearest returns the word of the anchor closest to s. Overlapping spans
// are at distance zero. Anchors are in word order, so the first minimum is
// the earliest word.
func nearest(anchors []anchor, s types.TimeSpan) int {
	best, bestDist := anchors[0].word, gap(anchors[0].span, s)
	for _, a := range anchors[1:] {
		if d := gap(a.span, s); d < bestDist {
			best, bestDist = a.word, d
		}
	}
	return best
}

func gap(a, b types.TimeSpan) float64 {
	switch {
	case a.End < b.Start:
		return b.Start - a.End
	case b.End < a.Start:
		return a.Start - b.End
	default:
		return 0
	}
}
