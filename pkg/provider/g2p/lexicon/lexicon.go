// Package lexicon loads user-supplied word → IPA overrides and layers them
// over a G2P backend.
//
// A lexicon file is a flat mapping from word to IPA string, in YAML, JSON,
// or TOML, chosen by file extension:
//
//	# lexicon.yaml
//	phonoscope: ˈfoʊnəskoʊp
//	GIF: dʒɪf
//
// Keys are matched case-insensitively. Values are NFC-normalised and split
// into phone symbols with [phoneme.Tokenize] when loaded.
package lexicon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/phonoscope/pkg/phoneme"
	"github.com/MrWong99/phonoscope/pkg/provider/g2p"
	"github.com/MrWong99/phonoscope/pkg/types"
)

// Format is a lexicon file format.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
	TOML Format = "toml"
)

// FormatFor returns the format implied by path's extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	case ".toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("lexicon: unsupported file extension %q (want .yaml, .yml, .json or .toml)", filepath.Ext(path))
	}
}

// Lexicon maps lower-case words to phone symbols. A nil Lexicon is empty.
type Lexicon map[string][]string

// New builds a Lexicon from raw word → IPA entries.
func New(entries map[string]string) Lexicon {
	lex := make(Lexicon, len(entries))
	for w, ipa := range entries {
		lex[strings.ToLower(strings.TrimSpace(w))] = phoneme.Tokenize(phoneme.Normalize(ipa))
	}
	return lex
}

// Load reads the lexicon file at path.
func Load(path string) (Lexicon, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: open %q: %w", path, err)
	}
	defer f.Close()
	lex, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("lexicon: %q: %w", path, err)
	}
	return lex, nil
}

// Decode reads a lexicon in the given format from r.
func Decode(r io.Reader, format Format) (Lexicon, error) {
	entries := map[string]string{}
	var err error
	switch format {
	case YAML:
		err = yaml.NewDecoder(r).Decode(&entries)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case JSON:
		err = json.NewDecoder(r).Decode(&entries)
	case TOML:
		_, err = toml.NewDecoder(r).Decode(&entries)
	default:
		return nil, fmt.Errorf("lexicon: unknown format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("lexicon: decode %s: must be a mapping of word to IPA: %w", format, err)
	}
	return New(entries), nil
}

// Lookup returns the pronunciation of word, matched case-insensitively.
func (l Lexicon) Lookup(word string) ([]string, bool) {
	ph, ok := l[strings.ToLower(strings.TrimSpace(word))]
	return ph, ok
}

// Override returns a provider that answers from lex first and asks base
// only for the remaining words. The lexicon is an explicit value owned by
// the returned provider; nothing is registered globally.
func Override(base g2p.Provider, lex Lexicon) g2p.Provider {
	if len(lex) == 0 {
		return base
	}
	return &overlay{base: base, lex: lex}
}

type overlay struct {
	base g2p.Provider
	lex  Lexicon
}

var _ g2p.Provider = (*overlay)(nil)

func (o *overlay) Name() string { return o.base.Name() }

func (o *overlay) Phonemize(ctx context.Context, words []string) ([]types.WordPhonemes, error) {
	out := make([]types.WordPhonemes, len(words))
	var (
		missing []string
		slots   []int
	)
	for i, w := range words {
		if ph, ok := o.lex.Lookup(w); ok {
			out[i] = types.WordPhonemes{Word: w, Phonemes: append([]string{}, ph...)}
			continue
		}
		missing = append(missing, w)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	got, err := o.base.Phonemize(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(got) != len(missing) {
		return nil, fmt.Errorf("lexicon: %s returned %d entries for %d words", o.base.Name(), len(got), len(missing))
	}
	for k, i := range slots {
		out[i] = got[k]
	}
	return out, nil
}
