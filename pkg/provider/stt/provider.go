// Package stt defines the Provider interface for speech-to-phoneme backends.
//
// An STT provider wraps an acoustic model that emits IPA rather than
// orthographic text (e.g., a whisper.cpp server or the whisper.cpp bindings
// loaded with an IPA fine-tune). Recognition is batch: a whole recording goes
// in, one [types.Transcription] comes out. [ToStream] turns that transcription
// into the timed hypothesis sequence the assessment core consumes.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/phonoscope/pkg/types"
)

// ErrUnavailable is returned (wrapped) when a backend cannot be reached or
// loaded, such as an unreachable server or a missing model file.
var ErrUnavailable = errors.New("stt: backend unavailable")

// Provider is the abstraction over any speech-to-phoneme backend.
type Provider interface {
	// Transcribe runs recognition over the whole of audio. Samples must be
	// mono; providers resample internally if SampleRate differs from what the
	// model expects.
	//
	// The returned Transcription has Model set to the model identifier and
	// AudioPath copied from audio.Path.
	Transcribe(ctx context.Context, audio Audio) (*types.Transcription, error)

	// Name returns the backend name used in configuration (e.g., "whisper").
	Name() string
}
