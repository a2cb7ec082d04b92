package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MrWong99/phonoscope/internal/config"
	"github.com/MrWong99/phonoscope/internal/resilience"
	"github.com/MrWong99/phonoscope/pkg/provider/g2p"
	"github.com/MrWong99/phonoscope/pkg/provider/g2p/cmudict"
	"github.com/MrWong99/phonoscope/pkg/provider/g2p/espeak"
	"github.com/MrWong99/phonoscope/pkg/provider/stt"
	"github.com/MrWong99/phonoscope/pkg/provider/stt/whisper"
)

// RegisterBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the
// corresponding provider.
func RegisterBuiltinProviders(reg *config.Registry) {
	// ── G2P ───────────────────────────────────────────────────────────────────

	reg.RegisterG2P("espeak", func(entry config.ProviderEntry) (g2p.Provider, error) {
		var opts []espeak.Option
		if bin := config.OptString(entry.Options, "binary"); bin != "" {
			opts = append(opts, espeak.WithBinary(bin))
		}
		voice := entry.Model
		if voice == "" {
			voice = config.OptString(entry.Options, "voice")
		}
		if voice != "" {
			opts = append(opts, espeak.WithVoice(voice))
		}
		return espeak.New(opts...), nil
	})

	reg.RegisterG2P("cmudict", func(entry config.ProviderEntry) (g2p.Provider, error) {
		path := entry.Model
		if path == "" {
			path = config.OptString(entry.Options, "dict_path")
		}
		dict, err := cmudict.LoadFile(path)
		if err != nil {
			return nil, err
		}
		var opts []cmudict.Option
		if config.OptBool(entry.Options, "schwa") {
			opts = append(opts, cmudict.WithSchwa())
		}
		if config.OptBool(entry.Options, "phonetic_fallback") {
			opts = append(opts, cmudict.WithPhoneticFallback())
		}
		slog.Debug("cmudict loaded", "path", path, "entries", dict.Len())
		return cmudict.New(dict, opts...), nil
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = config.OptString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if n := config.OptInt(entry.Options, "threads", 0); n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(modelPath, opts...)
	})
}

// BuildProviders instantiates the configured providers. A backend that is not
// registered is a hard error. With lazySTT set, an STT backend that fails to
// construct is logged and skipped so that phoneme-only commands still work.
// Configured fallbacks wrap the primary in a [resilience] failover group.
func BuildProviders(cfg *config.Config, reg *config.Registry, lazySTT bool) (*Providers, error) {
	p := &Providers{}

	g, err := reg.CreateG2P(cfg.Providers.G2P)
	if err != nil {
		return nil, fmt.Errorf("app: create g2p provider %q: %w", cfg.Providers.G2P.Name, err)
	}
	if len(cfg.Providers.G2PFallbacks) > 0 {
		fallbacks := make([]g2p.Provider, 0, len(cfg.Providers.G2PFallbacks))
		for _, e := range cfg.Providers.G2PFallbacks {
			f, err := reg.CreateG2P(e)
			if err != nil {
				return nil, fmt.Errorf("app: create g2p fallback %q: %w", e.Name, err)
			}
			fallbacks = append(fallbacks, f)
		}
		g = resilience.NewG2P(resilience.BreakerConfig{}, g, fallbacks...)
	}
	p.G2P = g

	entries := append([]config.ProviderEntry{cfg.Providers.STT}, cfg.Providers.STTFallbacks...)
	var backends []stt.Provider
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		s, err := reg.CreateSTT(e)
		switch {
		case err == nil:
			backends = append(backends, s)
		case lazySTT && !errors.Is(err, config.ErrProviderNotRegistered):
			slog.Warn("stt provider unavailable", "provider", e.Name, "err", err)
		default:
			closeAll(backends)
			return nil, fmt.Errorf("app: create stt provider %q: %w", e.Name, err)
		}
	}
	switch len(backends) {
	case 0:
		if cfg.Providers.STT.Name != "" {
			slog.Warn("no stt provider available; audio assessment disabled")
		}
	case 1:
		p.STT = backends[0]
	default:
		p.STT = resilience.NewSTT(resilience.BreakerConfig{}, backends[0], backends[1:]...)
	}
	return p, nil
}

func closeAll(providers []stt.Provider) {
	for _, s := range providers {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("close stt provider", "provider", s.Name(), "err", err)
			}
		}
	}
}
