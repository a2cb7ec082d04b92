package resilience

import (
	"context"
	"errors"
	"io"

	"github.com/MrWong99/phonoscope/pkg/provider/g2p"
	"github.com/MrWong99/phonoscope/pkg/provider/stt"
	"github.com/MrWong99/phonoscope/pkg/types"
)

// STT is an [stt.Provider] that fails over across a group of backends.
type STT struct {
	group *Group[stt.Provider]
}

var (
	_ stt.Provider = (*STT)(nil)
	_ io.Closer    = (*STT)(nil)
)

// NewSTT wraps primary and fallbacks, in that order.
func NewSTT(cfg BreakerConfig, primary stt.Provider, fallbacks ...stt.Provider) *STT {
	g := NewGroup(primary.Name(), primary, cfg)
	for _, f := range fallbacks {
		g.Add(f.Name(), f)
	}
	return &STT{group: g}
}

// Transcribe implements stt.Provider.
func (s *STT) Transcribe(ctx context.Context, audio stt.Audio) (*types.Transcription, error) {
	return Do(ctx, s.group, func(ctx context.Context, p stt.Provider) (*types.Transcription, error) {
		return p.Transcribe(ctx, audio)
	})
}

// Name returns the primary backend's name.
func (s *STT) Name() string { return s.group.Primary().Name() }

// States reports each backend's breaker state by name.
func (s *STT) States() map[string]State {
	out := make(map[string]State, s.group.Len())
	s.group.Each(func(name string, _ stt.Provider, st State) { out[name] = st })
	return out
}

// Close closes every backend that holds resources.
func (s *STT) Close() error {
	var errs []error
	s.group.Each(func(_ string, p stt.Provider, _ State) {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	})
	return errors.Join(errs...)
}

// G2P is a [g2p.Provider] that fails over across a group of backends, for
// example from espeak-ng to a CMU dictionary when the binary is missing.
type G2P struct {
	group *Group[g2p.Provider]
}

var _ g2p.Provider = (*G2P)(nil)

// NewG2P wraps primary and fallbacks, in that order.
func NewG2P(cfg BreakerConfig, primary g2p.Provider, fallbacks ...g2p.Provider) *G2P {
	g := NewGroup(primary.Name(), primary, cfg)
	for _, f := range fallbacks {
		g.Add(f.Name(), f)
	}
	return &G2P{group: g}
}

// Phonemize implements g2p.Provider.
func (p *G2P) Phonemize(ctx context.Context, words []string) ([]types.WordPhonemes, error) {
	return Do(ctx, p.group, func(ctx context.Context, b g2p.Provider) ([]types.WordPhonemes, error) {
		return b.Phonemize(ctx, words)
	})
}

// Name returns the primary backend's name.
func (p *G2P) Name() string { return p.group.Primary().Name() }

// States reports each backend's breaker state by name.
func (p *G2P) States() map[string]State {
	out := make(map[string]State, p.group.Len())
	p.group.Each(func(name string, _ g2p.Provider, st State) { out[name] = st })
	return out
}
