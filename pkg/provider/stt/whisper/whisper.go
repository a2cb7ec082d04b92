// Package whisper provides whisper.cpp-backed speech-to-phoneme providers.
//
// [Provider] talks to a running whisper-server binary (which exposes a REST
// API at POST /inference). [NativeProvider] loads the model in-process
// through the whisper.cpp CGO bindings. Either way the model is expected to
// be an IPA fine-tune, so the "text" it returns is IPA.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("en"),
//	)
//	tr, err := p.Transcribe(ctx, stt.FromClip(clip, path))
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/phonoscope/pkg/audio"
	"github.com/MrWong99/phonoscope/pkg/phoneme"
	"github.com/MrWong99/phonoscope/pkg/provider/stt"
	"github.com/MrWong99/phonoscope/pkg/types"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 120 * time.Second

	// DefaultModel is the IPA fine-tune reported when the server does not
	// say which model it runs.
	DefaultModel = "neurlang/ipa-whisper-small"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server and
// reported in transcriptions. When empty the server uses whichever model it
// was started with and [DefaultModel] is reported.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code sent to the whisper.cpp server
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithHTTPClient replaces the default HTTP client (120 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server. It
// holds no per-request state and is safe for concurrent use.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
// Functional options may be provided to override defaults.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "whisper" }

// Model returns the model identifier reported in transcriptions.
func (p *Provider) Model() string {
	if p.model == "" {
		return DefaultModel
	}
	return p.model
}

// verboseResponse is the subset of whisper-server's verbose_json output used
// here. Words are present only when the server runs with token timestamps.
type verboseResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	} `json:"segments"`
}

// Transcribe encodes audio as a WAV file and POSTs it to the whisper.cpp
// /inference endpoint as multipart/form-data with response_format
// verbose_json. Word timings are used when the server reports them, then
// segment timings, then the bare text.
func (p *Provider) Transcribe(ctx context.Context, a stt.Audio) (*types.Transcription, error) {
	wav := audio.EncodeWAV(a.Clip())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	// Primary audio field.
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"temperature", "0"},
		{"language", p.language},
		{"model", p.model},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := p.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("whisper: %w: http request: %w", stt.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result verboseResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return &types.Transcription{
		AudioPath: a.Path,
		Model:     p.Model(),
		IPAText:   phoneme.Normalize(result.Text),
		Words:     result.words(),
	}, nil
}

func (r *verboseResponse) words() []types.IPAWord {
	var out []types.IPAWord
	for _, seg := range r.Segments {
		if len(seg.Words) == 0 {
			out = appendChunk(out, seg.Text, seg.Start, seg.End)
			continue
		}
		for _, w := range seg.Words {
			out = appendChunk(out, w.Word, w.Start, w.End)
		}
	}
	return out
}

func appendChunk(out []types.IPAWord, raw string, start, end float64) []types.IPAWord {
	ipa := phoneme.Normalize(raw)
	if ipa == "" {
		return out
	}
	return append(out, types.IPAWord{
		IPA:   ipa,
		Start: types.Float64(start),
		End:   types.Float64(end),
		Raw:   raw,
	})
}
