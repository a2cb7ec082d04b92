// Package mock provides a test double for the stt.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Result: &types.Transcription{IPAText: "zibɹə"}}
//	tr, _ := p.Transcribe(ctx, audio)
//	// p.Calls[0].Audio holds the audio that was passed in.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/phonoscope/pkg/provider/stt"
	"github.com/MrWong99/phonoscope/pkg/types"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Audio is the audio passed to Transcribe.
	Audio stt.Audio
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe. A copy is made per call with
	// AudioPath set from the audio. If nil an empty Transcription is used.
	Result *types.Transcription

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// BackendName is returned by Name. Defaults to "mock".
	BackendName string

	// Calls records every call to Transcribe.
	Calls []TranscribeCall
}

var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns a copy of Result, or Err.
func (p *Provider) Transcribe(ctx context.Context, a stt.Audio) (*types.Transcription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, TranscribeCall{Audio: a})
	if p.Err != nil {
		return nil, p.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := types.Transcription{Model: "mock"}
	if p.Result != nil {
		out = *p.Result
	}
	out.AudioPath = a.Path
	return &out, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string {
	if p.BackendName == "" {
		return "mock"
	}
	return p.BackendName
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}
