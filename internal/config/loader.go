package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/phonoscope/internal/align"
	"github.com/MrWong99/phonoscope/internal/classify"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"g2p": {"cmudict", "espeak"},
	"stt": {"whisper", "whisper-native"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given: espeak G2P,
// a local whisper-server and no history store.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Providers.G2P.Name == "" {
		cfg.Providers.G2P.Name = "espeak"
	}
	if cfg.Providers.STT.Name == "" {
		cfg.Providers.STT.Name = "whisper"
	}
	if cfg.Providers.STT.Name == "whisper" && cfg.Providers.STT.BaseURL == "" {
		cfg.Providers.STT.BaseURL = "http://127.0.0.1:8178"
	}
	if cfg.Assessment.CostModel == "" {
		cfg.Assessment.CostModel = CostUniform
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreNone
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	validateProviderName("g2p", cfg.Providers.G2P.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	if cfg.Providers.G2P.Name == "cmudict" && OptString(cfg.Providers.G2P.Options, "dict_path") == "" && cfg.Providers.G2P.Model == "" {
		errs = append(errs, errors.New("providers.g2p: cmudict requires model or options.dict_path"))
	}
	if cfg.Providers.STT.Name == "whisper-native" && cfg.Providers.STT.Model == "" && OptString(cfg.Providers.STT.Options, "model_path") == "" {
		errs = append(errs, errors.New("providers.stt: whisper-native requires model or options.model_path"))
	}
	for i, e := range cfg.Providers.G2PFallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.g2p_fallbacks[%d].name is required", i))
		}
		validateProviderName("g2p", e.Name)
	}
	for i, e := range cfg.Providers.STTFallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
		}
		validateProviderName("stt", e.Name)
	}

	// Assessment
	a := cfg.Assessment
	if _, err := classify.ParsePolicy(a.Policy); err != nil {
		errs = append(errs, fmt.Errorf("assessment.policy %q is invalid; valid values: preceding_word, nearest_by_time", a.Policy))
	}
	if a.CostModel != "" && !a.CostModel.IsValid() {
		errs = append(errs, fmt.Errorf("assessment.cost_model %q is invalid; valid values: uniform, articulatory, graded", a.CostModel))
	}
	if _, err := align.ParseMode(a.AlignMode); err != nil {
		errs = append(errs, fmt.Errorf("assessment.align_mode %q is invalid; valid values: auto, full, rolling", a.AlignMode))
	}
	if a.MaxCells < 0 {
		errs = append(errs, fmt.Errorf("assessment.max_cells %d must not be negative", a.MaxCells))
	}
	for i, p := range a.Lexicons {
		if p == "" {
			errs = append(errs, fmt.Errorf("assessment.lexicons[%d] is empty", i))
		}
	}

	// Store
	s := cfg.Store
	if s.Backend != "" && !s.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: none, memory, postgres, sqlite", s.Backend))
	}
	if s.Backend == StorePostgres && s.PostgresDSN == "" {
		errs = append(errs, errors.New("store.postgres_dsn is required when backend is postgres"))
	}
	if s.Backend == StoreSQLite && s.SQLitePath == "" {
		errs = append(errs, errors.New("store.sqlite_path is required when backend is sqlite"))
	}
	if s.Backend == StoreMemory {
		slog.Warn("store.backend is memory; assessment history is lost on restart")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
