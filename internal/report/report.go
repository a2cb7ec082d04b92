// Package report renders assessment summaries for people and machines.
//
// [Build] flattens an [assess.Summary] plus run metadata into a [Document]
// whose JSON form has stable field names: arrays follow reference word
// order, missing timestamps are JSON null, and nothing points back into the
// summary. [JSON] and [HTML] write a Document.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/MrWong99/phonoscope/internal/align"
	"github.com/MrWong99/phonoscope/internal/assess"
	"github.com/MrWong99/phonoscope/internal/classify"
	"github.com/MrWong99/phonoscope/pkg/types"
)

// Op names used in reports.
const (
	OpMatch = "match"
	OpSub   = "sub"
	OpIns   = "ins"
	OpDel   = "del"
)

// Meta describes the run that produced a summary.
type Meta struct {
	AudioPath     string
	Reference     string
	G2PBackend    string
	Model         string
	Transcription *types.Transcription
}

// Document is the serialisable form of one assessment.
type Document struct {
	AudioPath     string               `json:"audio_path"`
	Reference     string               `json:"reference"`
	G2PBackend    string               `json:"g2p_backend"`
	Model         string               `json:"model"`
	Transcription *types.Transcription `json:"transcription"`
	Words         []Word               `json:"words"`
	Metrics       Metrics              `json:"metrics"`

	// SubstitutionHistogram keys are "expected→produced". encoding/json
	// writes map keys sorted.
	SubstitutionHistogram map[string]int `json:"substitution_histogram"`

	// Mistakes are the named rule hits.
	Mistakes []assess.RuleHit `json:"mistakes"`

	// Leading holds mistakes not attributed to any reference word, such as
	// insertions before the first word.
	Leading []Op `json:"leading"`
}

// Word is the per-word row of a report.
type Word struct {
	Index        int      `json:"word_index"`
	Word         string   `json:"reference_word"`
	ExpectedIPA  string   `json:"expected_ipa"`
	PredictedIPA string   `json:"predicted_ipa"`
	Start        *float64 `json:"start"`
	End          *float64 `json:"end"`
	Correct      bool     `json:"correct"`
	Ops          []Op     `json:"phoneme_ops"`
}

// Op is one alignment step inside a word.
type Op struct {
	Op        string  `json:"op"`
	Expected  *string `json:"expected"`
	Predicted *string `json:"predicted"`
}

// Metrics are the headline counts.
type Metrics struct {
	PhonemeErrorRate float64 `json:"phoneme_error_rate"`
	Substitutions    int     `json:"substitutions"`
	Insertions       int     `json:"insertions"`
	Deletions        int     `json:"deletions"`
	RefPhonemes      int     `json:"reference_phonemes"`
	HypPhonemes      int     `json:"hypothesis_phonemes"`
	Cost             float64 `json:"alignment_cost"`
}

// Build converts s into a Document.
func Build(meta Meta, s *assess.Summary) *Document {
	doc := &Document{
		AudioPath:     meta.AudioPath,
		Reference:     meta.Reference,
		G2PBackend:    meta.G2PBackend,
		Model:         meta.Model,
		Transcription: meta.Transcription,
		Words:         make([]Word, len(s.Words)),
		Metrics: Metrics{
			PhonemeErrorRate: s.ErrorRate,
			Substitutions:    s.Substitutions,
			Insertions:       s.Insertions,
			Deletions:        s.Deletions,
			RefPhonemes:      s.RefPhonemes,
			HypPhonemes:      s.HypPhonemes,
			Cost:             s.Cost,
		},
		SubstitutionHistogram: s.Histogram,
		Mistakes:              s.Rules,
		Leading:               []Op{},
	}
	if doc.SubstitutionHistogram == nil {
		doc.SubstitutionHistogram = map[string]int{}
	}
	if doc.Mistakes == nil {
		doc.Mistakes = []assess.RuleHit{}
	}

	for i, w := range s.Words {
		doc.Words[i] = Word{
			Index:        w.Index,
			Word:         w.Text,
			ExpectedIPA:  strings.Join(w.Expected, ""),
			PredictedIPA: strings.Join(w.Produced, ""),
			Correct:      w.Correct,
			Ops:          []Op{},
		}
		if w.Span != nil {
			doc.Words[i].Start = types.Float64(w.Span.Start)
			doc.Words[i].End = types.Float64(w.Span.End)
		}
	}

	for i, op := range s.Ops {
		w := s.OpWords[i]
		o := reportOp(s, op)
		if w == classify.LeadingWord {
			if op.Kind != align.Match {
				doc.Leading = append(doc.Leading, o)
			}
			continue
		}
		doc.Words[w].Ops = append(doc.Words[w].Ops, o)
	}
	return doc
}

// Ops returns every alignment step of s in order, ignoring word boundaries.
func Ops(s *assess.Summary) []Op {
	out := make([]Op, len(s.Ops))
	for i, op := range s.Ops {
		out[i] = reportOp(s, op)
	}
	return out
}

func reportOp(s *assess.Summary, op align.EditOp) Op {
	var o Op
	if op.Ref >= 0 {
		e := s.Reference[op.Ref]
		o.Expected = &e
	}
	if op.Hyp >= 0 {
		p := s.Hypothesis[op.Hyp]
		o.Predicted = &p
	}
	switch op.Kind {
	case align.Match:
		o.Op = OpMatch
	case align.Substitute:
		o.Op = OpSub
	case align.Insert:
		o.Op = OpIns
	case align.Delete:
		o.Op = OpDel
	}
	return o
}

// JSON writes doc as indented JSON.
func JSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}
