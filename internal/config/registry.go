package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/phonoscope/pkg/provider/g2p"
	"github.com/MrWong99/phonoscope/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by the Create methods when no factory
// is known under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider from its config entry.
type Factory[T any] func(ProviderEntry) (T, error)

// factories is the name → constructor table for one provider kind.
type factories[T any] struct {
	kind string
	mu   sync.RWMutex
	m    map[string]Factory[T]
}

func newFactories[T any](kind string) *factories[T] {
	return &factories[T]{kind: kind, m: make(map[string]Factory[T])}
}

func (f *factories[T]) register(name string, fn Factory[T]) {
	f.mu.Lock()
	f.m[name] = fn
	f.mu.Unlock()
}

func (f *factories[T]) names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.m))
}

func (f *factories[T]) create(entry ProviderEntry) (T, error) {
	f.mu.RLock()
	fn, ok := f.m[entry.Name]
	f.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	p, err := fn(entry)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("config: create %s/%s: %w", f.kind, entry.Name, err)
	}
	return p, nil
}

// Registry holds the G2P and STT constructors selectable from
// [ProvidersConfig]. It is safe for concurrent use; registering a name twice
// replaces the earlier factory.
type Registry struct {
	g2p *factories[g2p.Provider]
	stt *factories[stt.Provider]
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		g2p: newFactories[g2p.Provider]("g2p"),
		stt: newFactories[stt.Provider]("stt"),
	}
}

// RegisterG2P registers a G2P factory under name.
func (r *Registry) RegisterG2P(name string, fn Factory[g2p.Provider]) { r.g2p.register(name, fn) }

// RegisterSTT registers an STT factory under name.
func (r *Registry) RegisterSTT(name string, fn Factory[stt.Provider]) { r.stt.register(name, fn) }

// G2PNames returns the registered G2P names, sorted.
func (r *Registry) G2PNames() []string { return r.g2p.names() }

// STTNames returns the registered STT names, sorted.
func (r *Registry) STTNames() []string { return r.stt.names() }

// CreateG2P builds the G2P provider named by entry.Name. Factory errors are
// wrapped with the provider name.
func (r *Registry) CreateG2P(entry ProviderEntry) (g2p.Provider, error) { return r.g2p.create(entry) }

// CreateSTT builds the STT provider named by entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) { return r.stt.create(entry) }
