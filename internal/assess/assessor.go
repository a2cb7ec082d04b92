package assess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/phonoscope/internal/align"
	"github.com/MrWong99/phonoscope/internal/classify"
	"github.com/MrWong99/phonoscope/internal/observe"
	"github.com/MrWong99/phonoscope/pkg/cost"
	"github.com/MrWong99/phonoscope/pkg/phoneme"
	"github.com/MrWong99/phonoscope/pkg/types"
)

// Option configures an [Assessor].
type Option func(*Assessor)

// WithCostModel sets the alignment cost model. Default: [cost.Default].
func WithCostModel(m cost.Model) Option {
	return func(a *Assessor) { a.cost = m }
}

// WithPolicy sets the insertion attribution policy. Default:
// [classify.PrecedingWord].
func WithPolicy(p classify.Policy) Option {
	return func(a *Assessor) { a.policy = p }
}

// WithAlignOptions passes options through to [align.Align].
func WithAlignOptions(opts ...align.Option) Option {
	return func(a *Assessor) { a.alignOpts = append(a.alignOpts, opts...) }
}

// WithRules sets the mistake rules applied to substitutions. Default: the
// built-in [DefaultRules].
func WithRules(rs *RuleSet) Option {
	return func(a *Assessor) { a.rules = rs }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Assessor) { a.metrics = m }
}

// Assessor runs the align → classify → aggregate pipeline. It holds only
// read-only configuration and is safe for concurrent use.
type Assessor struct {
	cost      cost.Model
	policy    classify.Policy
	alignOpts []align.Option
	rules     *RuleSet
	metrics   *observe.Metrics
}

// New creates an Assessor.
func New(opts ...Option) *Assessor {
	a := &Assessor{
		cost:   cost.Default(),
		policy: classify.PrecedingWord,
	}
	for _, o := range opts {
		o(a)
	}
	if a.rules == nil {
		// The built-in rules are always valid.
		a.rules, _ = NewRuleSet(DefaultRules())
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// Rules returns the mistake rules in match order.
func (a *Assessor) Rules() []Rule {
	return a.rules.Rules()
}

// Assess builds the reference sequence from G2P output and the hypothesis
// sequence from a transcription stream, then assesses them.
func (a *Assessor) Assess(ctx context.Context, words []types.WordPhonemes, stream []types.TimedSymbol) (*Summary, error) {
	return a.AssessSequences(ctx, phoneme.FromWords(words), phoneme.FromStream(stream))
}

// AssessSequences assesses hyp against ref.
//
// The only errors are caller contract violations ([phoneme.ErrInvalidInput])
// and oversized inputs ([align.ErrTooLong]).
func (a *Assessor) AssessSequences(ctx context.Context, ref, hyp phoneme.Sequence) (*Summary, error) {
	ctx, span := observe.StartSpan(ctx, "assess.Assess")
	defer span.End()
	span.SetAttributes(
		attribute.Int("phonoscope.ref_phonemes", ref.Len()),
		attribute.Int("phonoscope.hyp_phonemes", hyp.Len()),
		attribute.Int("phonoscope.ref_words", ref.WordCount()),
	)

	start := time.Now()
	s, res, err := a.run(ref, hyp)
	elapsed := time.Since(start)

	if err != nil {
		status := "error"
		switch {
		case errors.Is(err, phoneme.ErrInvalidInput):
			status = "invalid_input"
		case errors.Is(err, align.ErrTooLong):
			status = "too_long"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		a.metrics.RecordAssessment(ctx, status, elapsed.Seconds(), 0, "", 0)
		return nil, fmt.Errorf("assess: %w", err)
	}

	span.SetAttributes(
		attribute.Float64("phonoscope.error_rate", s.ErrorRate),
		attribute.String("phonoscope.align_mode", res.Mode.String()),
	)
	a.metrics.RecordAssessment(ctx, "ok", elapsed.Seconds(), res.Cells, res.Mode.String(), s.ErrorRate)
	a.metrics.RecordMistakes(ctx, classify.Substitution.String(), s.Substitutions)
	a.metrics.RecordMistakes(ctx, classify.Insertion.String(), s.Insertions)
	a.metrics.RecordMistakes(ctx, classify.Deletion.String(), s.Deletions)

	observe.Logger(ctx).Debug("assess: done",
		slog.Int("ref_phonemes", s.RefPhonemes),
		slog.Int("hyp_phonemes", s.HypPhonemes),
		slog.Int("substitutions", s.Substitutions),
		slog.Int("insertions", s.Insertions),
		slog.Int("deletions", s.Deletions),
		slog.Float64("error_rate", s.ErrorRate),
		slog.Duration("elapsed", elapsed),
	)
	return s, nil
}

func (a *Assessor) run(ref, hyp phoneme.Sequence) (*Summary, *align.Result, error) {
	res, err := align.AlignSequences(ref, hyp, a.cost, a.alignOpts...)
	if err != nil {
		return nil, nil, err
	}
	mistakes, err := classify.Classify(res.Ops, ref, hyp, classify.WithPolicy(a.policy))
	if err != nil {
		return nil, nil, err
	}
	s := Aggregate(ref, hyp, res, mistakes)
	s.Rules = a.rules.Apply(mistakes)
	return s, res, nil
}
