// Package espeak implements a g2p.Provider that runs the espeak-ng speech
// synthesiser in phoneme-output mode.
//
// Each word is passed to a separate invocation of
//
//	espeak-ng -q --ipa=3 -v <voice> <word>
//
// The output is re-segmented with [phoneme.Tokenize], the tokenizer applied
// to transcriptions, because espeak-ng's own phone boundaries (for example
// "ɑːɹ" or "əʊ" as single phones) do not match it.
package espeak

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/MrWong99/phonoscope/pkg/phoneme"
	"github.com/MrWong99/phonoscope/pkg/provider/g2p"
	"github.com/MrWong99/phonoscope/pkg/types"
)

const (
	defaultBinary = "espeak-ng"
	defaultVoice  = "en-us"
)

// Option is a functional option for configuring a [Provider].
type Option func(*Provider)

// WithBinary sets the espeak-ng executable. Default: "espeak-ng" on PATH.
func WithBinary(path string) Option {
	return func(p *Provider) { p.binary = path }
}

// WithVoice sets the espeak-ng voice (language). Default: "en-us".
func WithVoice(voice string) Option {
	return func(p *Provider) { p.voice = voice }
}

// Provider implements g2p.Provider via espeak-ng. It holds no mutable state
// and is safe for concurrent use.
type Provider struct {
	binary string
	voice  string
}

var _ g2p.Provider = (*Provider)(nil)

// New creates a Provider. It does not check that the binary exists; call
// [Provider.Check] for that.
func New(opts ...Option) *Provider {
	p := &Provider{binary: defaultBinary, voice: defaultVoice}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name implements g2p.Provider.
func (p *Provider) Name() string { return "espeak" }

// Check reports whether the espeak-ng binary can be found. The returned error
// wraps [g2p.ErrUnavailable].
func (p *Provider) Check() (string, error) {
	path, err := exec.LookPath(p.binary)
	if err != nil {
		return "", fmt.Errorf("espeak: %w: %w", g2p.ErrUnavailable, err)
	}
	return path, nil
}

// Phonemize implements g2p.Provider.
func (p *Provider) Phonemize(ctx context.Context, words []string) ([]types.WordPhonemes, error) {
	out := make([]types.WordPhonemes, len(words))
	for i, w := range words {
		syms, err := p.word(ctx, w)
		if err != nil {
			return nil, err
		}
		out[i] = types.WordPhonemes{Word: w, Phonemes: syms}
	}
	return out, nil
}

func (p *Provider) word(ctx context.Context, w string) ([]string, error) {
	if strings.TrimSpace(w) == "" {
		return []string{}, nil
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binary, "-q", "--ipa=3", "-v", p.voice, "--", w)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("espeak: %w: %w", g2p.ErrUnavailable, err)
		}
		return nil, fmt.Errorf("espeak: phonemize %q: %w: %s", w, err, strings.TrimSpace(stderr.String()))
	}
	return Split(stdout.String()), nil
}

// Split turns espeak-ng --ipa=3 output into phone symbols. The underscores
// espeak-ng places between phones and the zero-width joiners inside
// affricates are removed, and the remaining IPA is segmented by
// [phoneme.Tokenize] so that reference and transcription share one phone
// inventory.
func Split(output string) []string {
	output = strings.NewReplacer("\u200d", "", "_", "").Replace(output)
	out := []string{}
	for _, word := range strings.Fields(phoneme.Normalize(output)) {
		out = append(out, phoneme.Tokenize(word)...)
	}
	return out
}
