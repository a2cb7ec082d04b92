package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/phonoscope/internal/app"
	"github.com/MrWong99/phonoscope/internal/config"
	"github.com/MrWong99/phonoscope/internal/resilience"
	"github.com/MrWong99/phonoscope/internal/store"
	"github.com/MrWong99/phonoscope/internal/store/memstore"
	"github.com/MrWong99/phonoscope/pkg/audio"
	"github.com/MrWong99/phonoscope/pkg/cost"
	"github.com/MrWong99/phonoscope/pkg/provider/g2p"
	g2pmock "github.com/MrWong99/phonoscope/pkg/provider/g2p/mock"
	"github.com/MrWong99/phonoscope/pkg/provider/stt"
	sttmock "github.com/MrWong99/phonoscope/pkg/provider/stt/mock"
	"github.com/MrWong99/phonoscope/pkg/types"
)

func catDict() *g2pmock.Provider {
	return &g2pmock.Provider{Entries: map[string][]string{
		"the": {"ð", "ə"},
		"cat": {"k", "ˈ", "æ", "t"},
	}}
}

func newApp(t *testing.T, cfg *config.Config, p *app.Providers, opts ...app.Option) *app.App {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	a, err := app.New(context.Background(), cfg, p, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func writeWAV(t *testing.T) string {
	t.Helper()
	clip := &audio.Clip{Data: make([]byte, 3200), SampleRate: 16000, Channels: 1}
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := os.WriteFile(path, audio.EncodeWAV(clip), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew_RequiresG2P(t *testing.T) {
	t.Parallel()
	_, err := app.New(context.Background(), config.Default(), &app.Providers{})
	if err == nil {
		t.Fatal("expected error without g2p provider")
	}
}

func TestNew_InvalidAssessmentConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Assessment.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := app.New(context.Background(), cfg, &app.Providers{G2P: catDict()})
	if err == nil {
		t.Fatal("expected error for missing rules file")
	}
}

func TestPhonemize_Stress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		keepStress bool
		want       []string
	}{
		{name: "stripped by default", want: []string{"k", "æ", "t"}},
		{name: "kept", keepStress: true, want: []string{"k", "ˈ", "æ", "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			cfg.Assessment.KeepStress = tt.keepStress
			a := newApp(t, cfg, &app.Providers{G2P: catDict()})

			words, err := a.Phonemize(context.Background(), "The cat!")
			if err != nil {
				t.Fatalf("Phonemize: %v", err)
			}
			if len(words) != 2 {
				t.Fatalf("got %d words, want 2", len(words))
			}
			if !slices.Equal(words[1].Phonemes, tt.want) {
				t.Errorf("cat = %v, want %v", words[1].Phonemes, tt.want)
			}
		})
	}
}

func TestPhonemize_Empty(t *testing.T) {
	t.Parallel()
	g := catDict()
	a := newApp(t, nil, &app.Providers{G2P: g})

	words, err := a.Phonemize(context.Background(), " ... ")
	if err != nil {
		t.Fatalf("Phonemize: %v", err)
	}
	if len(words) != 0 {
		t.Errorf("got %d words, want 0", len(words))
	}
	if len(g.Calls) != 0 {
		t.Errorf("g2p called %d times for empty reference", len(g.Calls))
	}
}

func TestPhonemize_ProviderError(t *testing.T) {
	t.Parallel()
	a := newApp(t, nil, &app.Providers{G2P: &g2pmock.Provider{Err: g2p.ErrUnavailable}})

	_, err := a.Phonemize(context.Background(), "cat")
	if !errors.Is(err, g2p.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestAssessText(t *testing.T) {
	t.Parallel()
	a := newApp(t, nil, &app.Providers{G2P: catDict()})

	res, err := a.AssessText(context.Background(), "the cat", "ðə kɑt")
	if err != nil {
		t.Fatalf("AssessText: %v", err)
	}
	s := res.Summary
	if s.RefPhonemes != 5 || s.Substitutions != 1 || s.Insertions != 0 || s.Deletions != 0 {
		t.Errorf("summary = %+v, want 5 ref phonemes and one substitution", s)
	}
	if s.ErrorRate != 0.2 {
		t.Errorf("ErrorRate = %v, want 0.2", s.ErrorRate)
	}
	if res.Report == nil || res.Report.Reference != "the cat" || res.Report.G2PBackend != "mock" {
		t.Errorf("report meta = %+v", res.Report)
	}
	if res.ID != [16]byte{} {
		t.Errorf("unsaved result has ID %v", res.ID)
	}
}

func TestAssessAudio_SavesRecord(t *testing.T) {
	t.Parallel()
	st := memstore.New()
	sp := &sttmock.Provider{Result: &types.Transcription{
		Model: "test-model",
		Words: []types.IPAWord{
			{IPA: "ðə", Start: types.Float64(0), End: types.Float64(0.2)},
			{IPA: "kæt", Start: types.Float64(0.2), End: types.Float64(0.5)},
		},
	}}
	a := newApp(t, nil, &app.Providers{G2P: catDict(), STT: sp}, app.WithStore(st))
	path := writeWAV(t)

	res, err := a.AssessAudio(context.Background(), app.AudioRequest{
		Path:      path,
		Reference: "the cat",
		Speaker:   "ana",
		Save:      true,
	})
	if err != nil {
		t.Fatalf("AssessAudio: %v", err)
	}
	if res.Summary.ErrorRate != 0 {
		t.Errorf("ErrorRate = %v, want 0", res.Summary.ErrorRate)
	}
	if res.Report.Model != "test-model" || res.Report.AudioPath != path {
		t.Errorf("report meta = %q %q", res.Report.Model, res.Report.AudioPath)
	}
	if len(sp.Calls) != 1 || sp.Calls[0].Audio.SampleRate != 16000 {
		t.Fatalf("stt calls = %+v", sp.Calls)
	}

	rec, err := st.Get(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("Get(%v): %v", res.ID, err)
	}
	if rec.Speaker != "ana" || rec.Reference != "the cat" || rec.AudioPath != path {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Profile) != store.ProfileDims {
		t.Errorf("profile has %d dims, want %d", len(rec.Profile), store.ProfileDims)
	}
	if len(rec.Report) == 0 {
		t.Error("record has no report")
	}
}

func TestAssessAudio_Errors(t *testing.T) {
	t.Parallel()
	path := writeWAV(t)

	tests := []struct {
		name    string
		stt     stt.Provider
		req     app.AudioRequest
		wantErr error
	}{
		{
			name:    "no stt",
			req:     app.AudioRequest{Path: path, Reference: "cat"},
			wantErr: app.ErrNoSTT,
		},
		{
			name:    "stt failure",
			stt:     &sttmock.Provider{Err: stt.ErrUnavailable},
			req:     app.AudioRequest{Path: path, Reference: "cat"},
			wantErr: stt.ErrUnavailable,
		},
		{
			name:    "save without store",
			stt:     &sttmock.Provider{Result: &types.Transcription{IPAText: "kæt"}},
			req:     app.AudioRequest{Path: path, Reference: "cat", Save: true},
			wantErr: app.ErrNoStore,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := newApp(t, nil, &app.Providers{G2P: catDict(), STT: tt.stt})
			_, err := a.AssessAudio(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAssessAudio_MissingFile(t *testing.T) {
	t.Parallel()
	a := newApp(t, nil, &app.Providers{G2P: catDict(), STT: &sttmock.Provider{}})
	_, err := a.AssessAudio(context.Background(), app.AudioRequest{
		Path:      filepath.Join(t.TempDir(), "nope.wav"),
		Reference: "cat",
	})
	if err == nil {
		t.Fatal("expected error for missing audio file")
	}
}

func TestReload_Lexicon(t *testing.T) {
	t.Parallel()
	a := newApp(t, nil, &app.Providers{G2P: catDict()})

	lex := filepath.Join(t.TempDir(), "lexicon.yaml")
	if err := os.WriteFile(lex, []byte("cat: kɑt\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default().Assessment
	cfg.Lexicons = []string{lex}
	if err := a.Reload(cfg); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	res, err := a.AssessText(context.Background(), "cat", "kɑt")
	if err != nil {
		t.Fatalf("AssessText: %v", err)
	}
	if res.Summary.ErrorRate != 0 {
		t.Errorf("ErrorRate = %v after lexicon override, want 0", res.Summary.ErrorRate)
	}
}

func TestReload_ErrorKeepsPrevious(t *testing.T) {
	t.Parallel()
	a := newApp(t, nil, &app.Providers{G2P: catDict()})

	cfg := config.Default().Assessment
	cfg.Policy = "sideways"
	if err := a.Reload(cfg); err == nil {
		t.Fatal("expected error for invalid policy")
	}
	if _, err := a.AssessText(context.Background(), "cat", "kæt"); err != nil {
		t.Errorf("AssessText after failed reload: %v", err)
	}
}

func TestNew_OpensStoreFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend config.StoreBackend
		wantNil bool
	}{
		{name: "none", backend: config.StoreNone, wantNil: true},
		{name: "memory", backend: config.StoreMemory},
		{name: "sqlite", backend: config.StoreSQLite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			cfg.Store.Backend = tt.backend
			cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "db", "history.db")
			a := newApp(t, cfg, &app.Providers{G2P: catDict()})
			if got := a.Store() == nil; got != tt.wantNil {
				t.Errorf("Store() nil = %v, want %v", got, tt.wantNil)
			}
		})
	}
}

func TestCheckers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a := newApp(t, nil, &app.Providers{G2P: catDict()}, app.WithStore(memstore.New()))
	checks := map[string]error{}
	for _, c := range a.Checkers() {
		checks[c.Name] = c.Check(ctx)
	}
	if err, ok := checks["store"]; !ok || err != nil {
		t.Errorf("store check = %v (present %v), want healthy", err, ok)
	}
	if err := checks["g2p"]; err != nil {
		t.Errorf("g2p check = %v, want healthy", err)
	}
	if err := checks["stt"]; !errors.Is(err, app.ErrNoSTT) {
		t.Errorf("stt check = %v, want ErrNoSTT", err)
	}
	for _, c := range a.Checkers() {
		if c.Optional != (c.Name == "stt") {
			t.Errorf("checker %q Optional = %v", c.Name, c.Optional)
		}
	}
}

func TestCheckers_OpenCircuits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	down := &sttmock.Provider{BackendName: "down", Err: stt.ErrUnavailable}
	group := resilience.NewSTT(resilience.BreakerConfig{MaxFailures: 1}, down, &sttmock.Provider{BackendName: "down", Err: stt.ErrUnavailable})
	if _, err := group.Transcribe(ctx, stt.Audio{Path: "x.wav"}); err == nil {
		t.Fatal("expected transcription to fail")
	}

	a := newApp(t, nil, &app.Providers{G2P: catDict(), STT: group})
	for _, c := range a.Checkers() {
		if c.Name != "stt" {
			continue
		}
		if err := c.Check(ctx); err == nil || !strings.Contains(err.Error(), "all circuits open") {
			t.Errorf("stt check = %v, want open circuits", err)
		}
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Store.Backend = config.StoreMemory
	a, err := app.New(context.Background(), cfg, &app.Providers{G2P: catDict()})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestBuildCostModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		model   config.CostModel
		wantErr bool
	}{
		{name: "default", model: ""},
		{name: "uniform", model: config.CostUniform},
		{name: "articulatory", model: config.CostArticulatory},
		{name: "graded", model: config.CostGraded},
		{name: "unknown", model: "psychic", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := app.BuildCostModel(config.AssessmentConfig{CostModel: tt.model})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := m.Substitution("k", "k"); got != 0 {
				t.Errorf("Substitution(k, k) = %v, want 0", got)
			}
			if got := m.Substitution("k", "g"); got <= 0 {
				t.Errorf("Substitution(k, g) = %v, want > 0", got)
			}
		})
	}
}

func TestBuildCostModel_Table(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "costs.yaml")
	body := "pairs:\n  - {a: θ, b: s, cost: 0.25}\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := app.BuildCostModel(config.AssessmentConfig{CostModel: config.CostUniform, CostTable: path})
	if err != nil {
		t.Fatalf("BuildCostModel: %v", err)
	}
	if _, ok := m.(*cost.Table); !ok {
		t.Fatalf("model is %T, want *cost.Table", m)
	}
	if got := m.Substitution("θ", "s"); got != 0.25 {
		t.Errorf("Substitution(θ, s) = %v, want 0.25", got)
	}
}

func TestBuildProviders(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterG2P("mock", func(config.ProviderEntry) (g2p.Provider, error) { return catDict(), nil })
	reg.RegisterSTT("broken", func(config.ProviderEntry) (stt.Provider, error) { return nil, stt.ErrUnavailable })

	cfg := config.Default()
	cfg.Providers.G2P.Name = "mock"
	cfg.Providers.STT.Name = "broken"

	if _, err := app.BuildProviders(cfg, reg, false); !errors.Is(err, stt.ErrUnavailable) {
		t.Errorf("strict err = %v, want ErrUnavailable", err)
	}

	p, err := app.BuildProviders(cfg, reg, true)
	if err != nil {
		t.Fatalf("lazy BuildProviders: %v", err)
	}
	if p.G2P == nil || p.STT != nil {
		t.Errorf("providers = %+v, want g2p only", p)
	}

	cfg.Providers.STT.Name = "unregistered"
	if _, err := app.BuildProviders(cfg, reg, true); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("unregistered err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestBuildProviders_Fallbacks(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterG2P("broken", func(config.ProviderEntry) (g2p.Provider, error) {
		return &g2pmock.Provider{BackendName: "broken", Err: g2p.ErrUnavailable}, nil
	})
	reg.RegisterG2P("mock", func(config.ProviderEntry) (g2p.Provider, error) { return catDict(), nil })
	reg.RegisterSTT("down", func(config.ProviderEntry) (stt.Provider, error) { return nil, stt.ErrUnavailable })
	reg.RegisterSTT("mock", func(config.ProviderEntry) (stt.Provider, error) { return &sttmock.Provider{}, nil })

	cfg := config.Default()
	cfg.Providers.G2P.Name = "broken"
	cfg.Providers.G2PFallbacks = []config.ProviderEntry{{Name: "mock"}}
	cfg.Providers.STT.Name = "down"
	cfg.Providers.STTFallbacks = []config.ProviderEntry{{Name: "mock"}}

	p, err := app.BuildProviders(cfg, reg, true)
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	words, err := p.G2P.Phonemize(context.Background(), []string{"cat"})
	if err != nil || len(words) != 1 || len(words[0].Phonemes) != 4 {
		t.Errorf("Phonemize via fallback = %+v, %v", words, err)
	}
	if p.STT == nil || p.STT.Name() != "mock" {
		t.Errorf("STT = %v, want the surviving fallback", p.STT)
	}

	cfg.Providers.G2PFallbacks = []config.ProviderEntry{{Name: "unregistered"}}
	if _, err := app.BuildProviders(cfg, reg, true); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegisterBuiltinProviders(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg)

	if got, want := reg.G2PNames(), config.ValidProviderNames["g2p"]; !slices.Equal(got, want) {
		t.Errorf("G2PNames = %v, want %v", got, want)
	}
	if got, want := reg.STTNames(), config.ValidProviderNames["stt"]; !slices.Equal(got, want) {
		t.Errorf("STTNames = %v, want %v", got, want)
	}

	g, err := reg.CreateG2P(config.ProviderEntry{Name: "espeak", Options: map[string]any{"voice": "en-gb"}})
	if err != nil || g.Name() != "espeak" {
		t.Errorf("CreateG2P(espeak) = %v, %v", g, err)
	}
	s, err := reg.CreateSTT(config.ProviderEntry{Name: "whisper", BaseURL: "http://127.0.0.1:8178"})
	if err != nil || s.Name() != "whisper" {
		t.Errorf("CreateSTT(whisper) = %v, %v", s, err)
	}
	if _, err := reg.CreateG2P(config.ProviderEntry{Name: "cmudict", Model: filepath.Join(t.TempDir(), "none.dict")}); err == nil {
		t.Error("expected error for missing cmudict file")
	}
}
