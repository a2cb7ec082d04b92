// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/phonoscope/pkg/audio"
	"github.com/MrWong99/phonoscope/pkg/phoneme"
	"github.com/MrWong99/phonoscope/pkg/provider/stt"
	"github.com/MrWong99/phonoscope/pkg/types"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once at
// startup and shared across all calls; each call gets its own context.
type NativeProvider struct {
	model     whisperlib.Model
	modelName string
	language  string
	threads   uint
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeThreads sets the number of inference threads. Zero keeps the
// whisper.cpp default.
func WithNativeThreads(n uint) NativeOption {
	return func(p *NativeProvider) { p.threads = n }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w: load model %q: %w", stt.ErrUnavailable, modelPath, err)
	}

	p := &NativeProvider{
		model:     model,
		modelName: strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath)),
		language:  defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements stt.Provider.
func (p *NativeProvider) Name() string { return "whisper-native" }

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements stt.Provider. Audio at a rate other than 16 kHz is
// resampled first. Segments are split on word boundaries with one word per
// segment so that every IPAWord carries its own timing.
func (p *NativeProvider) Transcribe(ctx context.Context, a stt.Audio) (*types.Transcription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples := a.Samples
	if a.SampleRate != audio.STTFormat.SampleRate {
		samples = audio.Convert(a.Clip(), audio.STTFormat).Samples()
	}

	// Each whisper context is NOT thread-safe, but the model can be shared
	// across goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", p.language, "error", err)
	}
	if p.threads > 0 {
		wctx.SetThreads(p.threads)
	}
	wctx.SetTokenTimestamps(true)
	wctx.SetSplitOnWord(true)
	wctx.SetMaxSegmentLength(1)

	// Abort before encoding once the caller gives up.
	cancelled := false
	encoderBegin := func() bool {
		cancelled = ctx.Err() != nil
		return !cancelled
	}
	if err := wctx.Process(samples, encoderBegin, nil, nil); err != nil {
		if cancelled {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	tr := &types.Transcription{AudioPath: a.Path, Model: p.modelName}
	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		ipa := phoneme.Normalize(segment.Text)
		if ipa == "" {
			continue
		}
		parts = append(parts, ipa)
		tr.Words = append(tr.Words, types.IPAWord{
			IPA:   ipa,
			Start: types.Float64(seconds(segment.Start)),
			End:   types.Float64(seconds(segment.End)),
			Raw:   segment.Text,
		})
	}
	tr.IPAText = strings.Join(parts, " ")
	return tr, nil
}

func seconds(d time.Duration) float64 { return d.Seconds() }
