// Package app wires the phonoscope subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds the assessor, opens the
// history store and wraps the G2P backend with pronunciation lexicons, the
// Assess* methods run the pipeline, and Close tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithMetrics) and mock providers. When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/phonoscope/internal/assess"
	"github.com/MrWong99/phonoscope/internal/config"
	"github.com/MrWong99/phonoscope/internal/health"
	"github.com/MrWong99/phonoscope/internal/observe"
	"github.com/MrWong99/phonoscope/internal/report"
	"github.com/MrWong99/phonoscope/internal/resilience"
	"github.com/MrWong99/phonoscope/internal/store"
	"github.com/MrWong99/phonoscope/internal/store/memstore"
	"github.com/MrWong99/phonoscope/internal/store/postgres"
	"github.com/MrWong99/phonoscope/internal/store/sqlite"
	"github.com/MrWong99/phonoscope/pkg/audio"
	"github.com/MrWong99/phonoscope/pkg/phoneme"
	"github.com/MrWong99/phonoscope/pkg/provider/g2p"
	"github.com/MrWong99/phonoscope/pkg/provider/g2p/lexicon"
	"github.com/MrWong99/phonoscope/pkg/provider/stt"
	"github.com/MrWong99/phonoscope/pkg/types"
)

// ErrNoSTT is returned by audio operations when no STT provider is configured.
var ErrNoSTT = errors.New("app: no stt provider configured")

// ErrNoStore is returned by history operations when the store backend is "none".
var ErrNoStore = errors.New("app: no assessment store configured")

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by [BuildProviders] or by tests.
type Providers struct {
	G2P g2p.Provider
	STT stt.Provider
}

// App owns all subsystem lifetimes and runs the assessment pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	store     store.Store

	mu       sync.RWMutex
	assess   config.AssessmentConfig
	assessor *assess.Assessor
	g2p      g2p.Provider

	// closers are called in order during Close.
	closers []func() error

	// stopOnce guards the Close path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a history store instead of opening one from config.
// The App does not close an injected store.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics sets the metrics instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App from cfg. providers.G2P must be non-nil; STT may be nil,
// in which case audio operations return [ErrNoSTT].
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.G2P == nil {
		return nil, errors.New("app: a g2p provider is required")
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if c, ok := providers.STT.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	if err := a.Reload(cfg.Assessment); err != nil {
		return nil, err
	}
	if a.store == nil {
		if err := a.openStore(ctx); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// openStore opens the configured history backend.
func (a *App) openStore(ctx context.Context) error {
	var (
		s   store.Store
		err error
	)
	switch a.cfg.Store.Backend {
	case "", config.StoreNone:
		return nil
	case config.StoreMemory:
		s = memstore.New()
	case config.StorePostgres:
		s, err = postgres.Open(ctx, a.cfg.Store.PostgresDSN)
	case config.StoreSQLite:
		s, err = sqlite.Open(a.cfg.Store.SQLitePath)
	default:
		return fmt.Errorf("app: unknown store backend %q", a.cfg.Store.Backend)
	}
	if err != nil {
		return fmt.Errorf("app: open %s store: %w", a.cfg.Store.Backend, err)
	}
	a.store = s
	a.closers = append(a.closers, s.Close)
	slog.Info("assessment store opened", "backend", a.cfg.Store.Backend)
	return nil
}

// Reload rebuilds the assessor and lexicon overlay from cfg. In-flight
// assessments finish with the previous settings. On error the previous
// settings stay in effect.
func (a *App) Reload(cfg config.AssessmentConfig) error {
	assessor, err := BuildAssessor(cfg, a.metrics)
	if err != nil {
		return err
	}
	g := a.providers.G2P
	for _, path := range cfg.Lexicons {
		lex, err := lexicon.Load(path)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		g = lexicon.Override(g, lex)
	}

	a.mu.Lock()
	a.assess = cfg
	a.assessor = assessor
	a.g2p = g
	a.mu.Unlock()
	return nil
}

func (a *App) current() (config.AssessmentConfig, *assess.Assessor, g2p.Provider) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.assess, a.assessor, a.g2p
}

// Store returns the history store, or nil when none is configured.
func (a *App) Store() store.Store { return a.store }

// Metrics returns the instruments the App records to.
func (a *App) Metrics() *observe.Metrics { return a.metrics }

// Phonemize splits reference into words and runs them through the G2P
// backend and lexicons. Stress marks are stripped unless keep_stress is set.
func (a *App) Phonemize(ctx context.Context, reference string) ([]types.WordPhonemes, error) {
	cfg, _, g := a.current()
	words := phoneme.SplitWords(reference)
	if len(words) == 0 {
		return []types.WordPhonemes{}, nil
	}

	ctx, span := observe.ProviderSpan(ctx, "g2p", g.Name())
	start := time.Now()
	out, err := g.Phonemize(ctx, words)
	observe.EndSpan(span, err)
	if err != nil {
		a.metrics.RecordProviderRequest(ctx, g.Name(), "g2p", "error")
		a.metrics.RecordProviderError(ctx, g.Name(), "g2p")
		return nil, fmt.Errorf("app: phonemize: %w", err)
	}
	a.metrics.RecordProviderRequest(ctx, g.Name(), "g2p", "ok")
	a.metrics.RecordProviderLatency(ctx, g.Name(), "g2p", time.Since(start).Seconds())
	if !cfg.KeepStress {
		for i := range out {
			out[i].Phonemes = phoneme.StripStress(out[i].Phonemes)
		}
	}
	return out, nil
}

// Transcribe runs the STT backend on audio.
func (a *App) Transcribe(ctx context.Context, in stt.Audio) (*types.Transcription, error) {
	p := a.providers.STT
	if p == nil {
		return nil, ErrNoSTT
	}

	ctx, span := observe.ProviderSpan(ctx, "stt", p.Name())
	start := time.Now()
	tr, err := p.Transcribe(ctx, in)
	observe.EndSpan(span, err)
	if err != nil {
		a.metrics.RecordProviderRequest(ctx, p.Name(), "stt", "error")
		a.metrics.RecordProviderError(ctx, p.Name(), "stt")
		return nil, fmt.Errorf("app: transcribe: %w", err)
	}
	a.metrics.RecordProviderRequest(ctx, p.Name(), "stt", "ok")
	a.metrics.RecordProviderLatency(ctx, p.Name(), "stt", time.Since(start).Seconds())
	observe.Logger(ctx).Debug("transcribed",
		"provider", p.Name(),
		"audio", in.Path,
		"duration", in.Duration(),
		"elapsed", time.Since(start),
		"chunks", len(tr.Words),
	)
	return tr, nil
}

// AssessPhonemes assesses a hypothesis stream against already phonemized
// reference words.
func (a *App) AssessPhonemes(ctx context.Context, words []types.WordPhonemes, hyp []types.TimedSymbol) (*assess.Summary, error) {
	_, assessor, _ := a.current()
	return assessor.Assess(ctx, words, hyp)
}

// Rules returns the mistake rules of the current assessor.
func (a *App) Rules() []assess.Rule {
	_, assessor, _ := a.current()
	return assessor.Rules()
}

// AssessText phonemizes reference and assesses it against an untimed IPA
// string.
func (a *App) AssessText(ctx context.Context, reference, ipa string) (*Result, error) {
	words, err := a.Phonemize(ctx, reference)
	if err != nil {
		return nil, err
	}
	hyp := stt.ToStream(&types.Transcription{IPAText: phoneme.Normalize(ipa)}, a.tokenizer())
	sum, err := a.AssessPhonemes(ctx, words, hyp)
	if err != nil {
		return nil, err
	}
	_, _, g := a.current()
	doc := report.Build(report.Meta{Reference: reference, G2PBackend: g.Name()}, sum)
	return &Result{Summary: sum, Report: doc}, nil
}

// AlignIPA aligns two IPA strings without word structure. Both sides are
// tokenized the same way as transcriptions.
func (a *App) AlignIPA(ctx context.Context, refIPA, hypIPA string) (*assess.Summary, error) {
	_, assessor, _ := a.current()
	tok := a.tokenizer()
	ref := phoneme.FromSymbols(tok(phoneme.Normalize(refIPA)))
	hyp := phoneme.FromSymbols(tok(phoneme.Normalize(hypIPA)))
	return assessor.AssessSequences(ctx, ref, hyp)
}

// AudioRequest describes one recording to assess.
type AudioRequest struct {
	// Path is a WAV file. It is resampled to 16 kHz mono.
	Path string

	// Reference is the script the speaker read.
	Reference string

	// Speaker tags the saved record.
	Speaker string

	// Save stores the result in the history store.
	Save bool
}

// Result is the outcome of one assessment.
type Result struct {
	Summary *assess.Summary
	Report  *report.Document

	// ID is set when the result was saved.
	ID uuid.UUID
}

// AssessAudio runs the full pipeline on a recording: decode, transcribe,
// phonemize the reference, align, classify and optionally save.
func (a *App) AssessAudio(ctx context.Context, req AudioRequest) (*Result, error) {
	clip, err := audio.Load(req.Path)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return a.AssessClip(ctx, clip, req)
}

// AssessClip is [App.AssessAudio] for audio that is already decoded. The
// clip is converted to 16 kHz mono when needed; req.Path is used only for
// reporting.
func (a *App) AssessClip(ctx context.Context, clip *audio.Clip, req AudioRequest) (*Result, error) {
	clip = audio.Convert(clip, audio.STTFormat)
	tr, err := a.Transcribe(ctx, stt.FromClip(clip, req.Path))
	if err != nil {
		return nil, err
	}
	words, err := a.Phonemize(ctx, req.Reference)
	if err != nil {
		return nil, err
	}
	sum, err := a.AssessPhonemes(ctx, words, stt.ToStream(tr, a.tokenizer()))
	if err != nil {
		return nil, err
	}

	_, _, g := a.current()
	doc := report.Build(report.Meta{
		AudioPath:     req.Path,
		Reference:     req.Reference,
		G2PBackend:    g.Name(),
		Model:         tr.Model,
		Transcription: tr,
	}, sum)
	res := &Result{Summary: sum, Report: doc}

	if req.Save {
		id, err := a.Save(ctx, req, res)
		if err != nil {
			return nil, err
		}
		res.ID = id
	}
	return res, nil
}

// Save stores res in the history store and returns the new record ID.
func (a *App) Save(ctx context.Context, req AudioRequest, res *Result) (uuid.UUID, error) {
	if a.store == nil {
		return uuid.Nil, ErrNoStore
	}
	var buf bytes.Buffer
	if err := report.JSON(&buf, res.Report); err != nil {
		return uuid.Nil, fmt.Errorf("app: encode report: %w", err)
	}
	rec := &store.Record{
		Speaker:   req.Speaker,
		Reference: req.Reference,
		AudioPath: req.Path,
		ErrorRate: res.Summary.ErrorRate,
		Report:    buf.Bytes(),
		Profile:   store.Profile(res.Summary),
	}
	if err := a.store.Save(ctx, rec); err != nil {
		return uuid.Nil, fmt.Errorf("app: %w", err)
	}
	return rec.ID, nil
}

func (a *App) tokenizer() stt.Tokenizer {
	cfg, _, _ := a.current()
	if cfg.KeepStress {
		return phoneme.Tokenize
	}
	return stt.StripStress(phoneme.Tokenize)
}

// Checkers returns readiness checks for the configured dependencies.
func (a *App) Checkers() []health.Checker {
	var out []health.Checker
	if s := a.store; s != nil {
		out = append(out, health.Checker{Name: "store", Check: func(ctx context.Context) error {
			_, err := s.ListBySpeaker(ctx, "", 1)
			return err
		}})
	}
	out = append(out, health.Checker{Name: "g2p", Check: func(context.Context) error {
		return circuitsOpen(a.providers.G2P)
	}})
	out = append(out, health.Checker{Name: "stt", Optional: true, Check: func(context.Context) error {
		if a.providers.STT == nil {
			return ErrNoSTT
		}
		return circuitsOpen(a.providers.STT)
	}})
	return out
}

// circuitsOpen fails when p is a failover group whose every backend has
// an open circuit.
func circuitsOpen(p any) error {
	g, ok := p.(interface {
		States() map[string]resilience.State
	})
	if !ok {
		return nil
	}
	states := g.States()
	for _, st := range states {
		if st != resilience.StateOpen {
			return nil
		}
	}
	return fmt.Errorf("all circuits open: %v", slices.Sorted(maps.Keys(states)))
}

// Close releases the store and providers. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers
// are skipped and the context error is returned.
func (a *App) Close(ctx context.Context) error {
	var closeErr error
	a.stopOnce.Do(func() {
		slog.Debug("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				closeErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
	})
	return closeErr
}
