// Package mock provides a test double for the g2p.Provider interface.
//
// Entries maps lower-case words to their phonemes; unknown words produce an
// empty pronunciation, mirroring real backends.
//
//	p := &mock.Provider{Entries: map[string][]string{"zebra": {"z", "i", "b", "r", "ə"}}}
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/MrWong99/phonoscope/pkg/provider/g2p"
	"github.com/MrWong99/phonoscope/pkg/types"
)

// PhonemizeCall records a single invocation of Provider.Phonemize.
type PhonemizeCall struct {
	Words []string
}

// Provider is a mock implementation of g2p.Provider.
type Provider struct {
	mu sync.Mutex

	// Entries maps lower-case words to phonemes.
	Entries map[string][]string

	// BackendName is returned by Name. Default: "mock".
	BackendName string

	// Err, if non-nil, is returned from Phonemize.
	Err error

	// Calls records every call to Phonemize.
	Calls []PhonemizeCall
}

// Phonemize records the call and looks every word up in Entries.
func (p *Provider) Phonemize(_ context.Context, words []string) ([]types.WordPhonemes, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, PhonemizeCall{Words: append([]string(nil), words...)})
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([]types.WordPhonemes, len(words))
	for i, w := range words {
		ph := p.Entries[strings.ToLower(w)]
		out[i] = types.WordPhonemes{Word: w, Phonemes: append([]string{}, ph...)}
	}
	return out, nil
}

// Name implements g2p.Provider.
func (p *Provider) Name() string {
	if p.BackendName == "" {
		return "mock"
	}
	return p.BackendName
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements g2p.Provider at compile time.
var _ g2p.Provider = (*Provider)(nil)
