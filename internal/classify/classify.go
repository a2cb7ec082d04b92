// Package classify turns an alignment into word-attributed pronunciation
// mistakes.
//
// Every non-match op becomes one [Mistake]. Substitutions and deletions
// belong to the word owning their reference phoneme. Insertions have no
// reference phoneme and are attributed by a configurable [Policy]; an
// insertion that cannot be attributed to any word lands in the leading
// bucket ([LeadingWord]) instead of being dropped.
package classify

import (
	"fmt"

	"github.com/MrWong99/phonoscope/internal/align"
	"github.com/MrWong99/phonoscope/pkg/phoneme"
	"github.com/MrWong99/phonoscope/pkg/types"
)

// LeadingWord is the word index of mistakes that precede every reference
// word, or whose reference phoneme has no word.
const LeadingWord = phoneme.NoWord

// Kind is the kind of a pronunciation mistake.
type Kind uint8

const (
	Substitution Kind = iota
	Insertion
	Deletion
)

// String returns the lower-case name of k.
func (k Kind) String() string {
	switch k {
	case Substitution:
		return "substitution"
	case Insertion:
		return "insertion"
	case Deletion:
		return "deletion"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "substitution":
		*k = Substitution
	case "insertion":
		*k = Insertion
	case "deletion":
		*k = Deletion
	default:
		return fmt.Errorf("classify: unknown mistake kind %q", b)
	}
	return nil
}

// Mistake is one classified, word-attributed non-match op.
type Mistake struct {
	Kind Kind

	// Ref is the expected phoneme, nil for insertions.
	Ref *phoneme.Phoneme

	// Hyp is the produced phoneme, nil for deletions.
	Hyp *phoneme.Phoneme

	// RefIndex and HypIndex locate the phonemes in their sequences, -1 when
	// absent.
	RefIndex int
	HypIndex int

	// Word is the index of the owning reference word, or [LeadingWord].
	Word int

	// Span is the time span of the produced phoneme. Nil for deletions and
	// for transcriptions without timestamps.
	Span *types.TimeSpan

	// Cost is the alignment cost of the op.
	Cost float64
}

// Expected returns the expected symbol, or "".
func (m Mistake) Expected() string {
	if m.Ref == nil {
		return ""
	}
	return m.Ref.Symbol
}

// Produced returns the produced symbol, or "".
func (m Mistake) Produced() string {
	if m.Hyp == nil {
		return ""
	}
	return m.Hyp.Symbol
}

// Classify produces one Mistake per non-match op, in op order.
//
// ops must come from aligning ref's symbols against hyp's symbols; an op
// indexing outside either sequence is reported as an
// [*phoneme.InvalidInputError].
func Classify(ops []align.EditOp, ref, hyp phoneme.Sequence, opts ...Option) ([]Mistake, error) {
	cfg := config{policy: PrecedingWord}
	for _, o := range opts {
		o(&cfg)
	}

	for i, op := range ops {
		if err := checkOp(i, op, ref, hyp); err != nil {
			return nil, err
		}
	}

	var anchors []anchor
	if cfg.policy == NearestByTime {
		anchors = wordAnchors(ops, ref, hyp)
	}

	var mistakes []Mistake
	last := LeadingWord
	for _, op := range ops {
		if op.Ref >= 0 {
			last = ref.At(op.Ref).Word
		}
		if op.Kind == align.Match {
			continue
		}

		m := Mistake{
			RefIndex: op.Ref,
			HypIndex: op.Hyp,
			Word:     last,
			Cost:     op.Cost,
		}
		if op.Ref >= 0 {
			p := ref.At(op.Ref)
			m.Ref = &p
		}
		if op.Hyp >= 0 {
			p := hyp.At(op.Hyp)
			m.Hyp = &p
			if span, ok := p.Span(); ok {
				m.Span = &span
			}
		}

		switch op.Kind {
		case align.Substitute:
			m.Kind = Substitution
		case align.Delete:
			m.Kind = Deletion
		case align.Insert:
			m.Kind = Insertion
			if m.Span != nil && len(anchors) > 0 {
				m.Word = nearest(anchors, *m.Span)
			}
		}
		mistakes = append(mistakes, m)
	}
	return mistakes, nil
}

func checkOp(i int, op align.EditOp, ref, hyp phoneme.Sequence) error {
	bad := func(reason string) error {
		return &phoneme.InvalidInputError{Field: "op", Index: i, Reason: reason}
	}
	switch op.Kind {
	case align.Match, align.Substitute:
		if op.Ref < 0 || op.Hyp < 0 {
			return bad(fmt.Sprintf("%s needs both indices", op.Kind))
		}
	case align.Delete:
		if op.Ref < 0 || op.Hyp >= 0 {
			return bad("delete needs only a reference index")
		}
	case align.Insert:
		if op.Hyp < 0 || op.Ref >= 0 {
			return bad("insert needs only a hypothesis index")
		}
	default:
		return bad(fmt.Sprintf("unknown op kind %d", op.Kind))
	}
	if op.Ref >= ref.Len() {
		return bad(fmt.Sprintf("reference index %d out of range [0,%d)", op.Ref, ref.Len()))
	}
	if op.Hyp >= hyp.Len() {
		return bad(fmt.Sprintf("hypothesis index %d out of range [0,%d)", op.Hyp, hyp.Len()))
	}
	return nil
}
