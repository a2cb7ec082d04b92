// Package assess turns a reference and a hypothesis phoneme sequence into an
// assessment summary: per-word mistake reports, mistake counts, and the
// phoneme error rate.
//
// [Aggregate] is the final, pure stage of the pipeline. [Assessor] runs the
// whole pipeline (sequence construction, alignment, classification,
// aggregation) with tracing and metrics around it.
package assess

import (
	"github.com/MrWong99/phonoscope/internal/align"
	"github.com/MrWong99/phonoscope/internal/classify"
	"github.com/MrWong99/phonoscope/pkg/phoneme"
	"github.com/MrWong99/phonoscope/pkg/types"
)

// WordReport lists the mistakes attributed to one reference word.
type WordReport struct {
	// Index is the word's position in the reference.
	Index int

	// Text is the word as written in the reference.
	Text string

	// Expected holds the word's reference phonemes. Empty (non-nil) when
	// G2P produced no pronunciation for the word.
	Expected []string

	// Produced holds the hypothesis phonemes aligned to the word, including
	// insertions attributed to it, in hypothesis order.
	Produced []string

	// Mistakes are in alignment order.
	Mistakes []classify.Mistake

	// Correct is true when no mistake is attributed to the word.
	Correct bool

	// Span covers the timestamped hypothesis phonemes aligned to the word.
	// Nil when none carry timestamps.
	Span *types.TimeSpan
}

// Summary is the result of one assessment.
type Summary struct {
	RefPhonemes   int
	HypPhonemes   int
	Substitutions int
	Insertions    int
	Deletions     int

	// ErrorRate is (Substitutions+Insertions+Deletions) / max(1, RefPhonemes).
	ErrorRate float64

	// Cost is the total alignment cost under the cost model used.
	Cost float64

	// Words has one entry per reference word, in reference order.
	Words []WordReport

	// Leading holds insertions that precede every reference word.
	Leading []classify.Mistake

	// Ops is the full alignment.
	Ops []align.EditOp

	// OpWords holds, for each entry of Ops, the index of the reference word
	// the step belongs to, or [classify.LeadingWord].
	OpWords []int

	// Reference and Hypothesis are the aligned symbol sequences.
	Reference  []string
	Hypothesis []string

	// Histogram counts substitutions as "expected→produced" keys.
	Histogram map[string]int

	// Rules lists named mistake patterns found among the substitutions.
	Rules []RuleHit
}

// Mistakes returns every mistake in the summary in alignment order,
// leading-bucket insertions first.
func (s *Summary) Mistakes() []classify.Mistake {
	out := append([]classify.Mistake(nil), s.Leading...)
	for _, w := range s.Words {
		out = append(out, w.Mistakes...)
	}
	return out
}

// Aggregate groups mistakes by reference word and computes the summary
// counts. res must be the alignment of ref against hyp, and mistakes its
// classification. Every word in ref's arena gets exactly one WordReport, in
// reference order.
func Aggregate(ref, hyp phoneme.Sequence, res *align.Result, mistakes []classify.Mistake) *Summary {
	s := &Summary{
		RefPhonemes: ref.Len(),
		HypPhonemes: hyp.Len(),
		Cost:        res.Cost,
		Words:       make([]WordReport, ref.WordCount()),
		Ops:         res.Ops,
		Reference:   ref.Symbols(),
		Hypothesis:  hyp.Symbols(),
		Histogram:   SubstitutionHistogram(mistakes),
	}
	for i := range s.Words {
		w := ref.WordAt(i)
		s.Words[i] = WordReport{
			Index:    i,
			Text:     w.Text,
			Expected: ref.WordSymbols(i),
			Produced: []string{},
		}
	}

	insertedInto := make(map[int]int)
	for _, m := range mistakes {
		switch m.Kind {
		case classify.Substitution:
			s.Substitutions++
		case classify.Insertion:
			s.Insertions++
			insertedInto[m.HypIndex] = m.Word
		case classify.Deletion:
			s.Deletions++
		}
		if m.Word == classify.LeadingWord {
			s.Leading = append(s.Leading, m)
			continue
		}
		s.Words[m.Word].Mistakes = append(s.Words[m.Word].Mistakes, m)
	}

	s.OpWords = make([]int, len(res.Ops))
	for i, op := range res.Ops {
		w := classify.LeadingWord
		if op.Ref >= 0 {
			w = ref.At(op.Ref).Word
		} else if iw, ok := insertedInto[op.Hyp]; ok {
			w = iw
		}
		s.OpWords[i] = w
		if w == classify.LeadingWord || op.Hyp < 0 {
			continue
		}
		p := hyp.At(op.Hyp)
		wr := &s.Words[w]
		wr.Produced = append(wr.Produced, p.Symbol)
		if span, ok := p.Span(); ok {
			if wr.Span == nil {
				wr.Span = &span
			} else {
				u := wr.Span.Union(span)
				wr.Span = &u
			}
		}
	}

	for i := range s.Words {
		s.Words[i].Correct = len(s.Words[i].Mistakes) == 0
	}
	s.ErrorRate = float64(s.Substitutions+s.Insertions+s.Deletions) / float64(max(1, s.RefPhonemes))
	return s
}
