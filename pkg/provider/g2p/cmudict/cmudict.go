// Package cmudict implements a g2p.Provider backed by the CMU Pronouncing
// Dictionary.
//
// The dictionary file format is one entry per line:
//
//	;;; comment
//	ZEBRA  Z IY1 B R AH0
//	ZEBRA(2)  Z EH1 B R AH0
//
// ARPAbet phones are mapped to IPA with stress digits dropped. Words missing
// from the dictionary get an empty pronunciation unless a phonetic fallback
// is enabled with [WithPhoneticFallback], in which case the pronunciation of
// the most similar-sounding headword is borrowed.
package cmudict

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MrWong99/phonoscope/internal/phonetic"
	"github.com/MrWong99/phonoscope/pkg/provider/g2p"
	"github.com/MrWong99/phonoscope/pkg/types"
)

// arpabet maps ARPAbet base phones to IPA.
var arpabet = map[string]string{
	"AA": "ɑ", "AE": "æ", "AH": "ʌ", "AO": "ɔ", "AW": "aʊ", "AY": "aɪ",
	"B": "b", "CH": "tʃ", "D": "d", "DH": "ð", "EH": "ɛ", "ER": "ɝ",
	"EY": "eɪ", "F": "f", "G": "ɡ", "HH": "h", "IH": "ɪ", "IY": "i",
	"JH": "dʒ", "K": "k", "L": "l", "M": "m", "N": "n", "NG": "ŋ",
	"OW": "oʊ", "OY": "ɔɪ", "P": "p", "R": "ɹ", "S": "s", "SH": "ʃ",
	"T": "t", "TH": "θ", "UH": "ʊ", "UW": "u", "V": "v", "W": "w",
	"Y": "j", "Z": "z", "ZH": "ʒ",
}

// ToIPA converts an ARPAbet pronunciation ("Z IY1 B R AH0") to IPA phone
// symbols. Unknown phones are skipped. With schwa set, unstressed AH0 maps
// to ə instead of ʌ.
func ToIPA(pron string, schwa bool) []string {
	fields := strings.Fields(pron)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if schwa && f == "AH0" {
			out = append(out, "ə")
			continue
		}
		base := strings.TrimRight(f, "012")
		if ipa, ok := arpabet[base]; ok {
			out = append(out, ipa)
		}
	}
	return out
}

// Dict holds parsed dictionary entries keyed by lower-case headword. Each
// headword keeps its variants in file order.
type Dict struct {
	entries map[string][]string
}

// Parse reads a dictionary in CMU format from r. Only the first variant of
// each headword is kept.
func Parse(r io.Reader) (*Dict, error) {
	d := &Dict{entries: make(map[string][]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";;;") || strings.HasPrefix(line, "#") {
			continue
		}
		head, pron, ok := strings.Cut(line, " ")
		if !ok || strings.TrimSpace(pron) == "" {
			return nil, fmt.Errorf("cmudict: line %d: expected headword and pronunciation", lineNum)
		}
		// Strip variant markers and trailing comments.
		if i := strings.IndexByte(head, '('); i > 0 {
			head = head[:i]
		}
		if i := strings.Index(pron, "#"); i >= 0 {
			pron = pron[:i]
		}
		word := strings.ToLower(head)
		if _, dup := d.entries[word]; dup {
			continue
		}
		d.entries[word] = strings.Fields(pron)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cmudict: read: %w", err)
	}
	return d, nil
}

// LoadFile parses the dictionary at path.
func LoadFile(path string) (*Dict, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cmudict: open %q: %w: %w", path, g2p.ErrUnavailable, err)
	}
	defer f.Close()
	return Parse(f)
}

// Len returns the number of headwords.
func (d *Dict) Len() int { return len(d.entries) }

// Lookup returns the ARPAbet phones of word's first variant.
func (d *Dict) Lookup(word string) ([]string, bool) {
	p, ok := d.entries[strings.ToLower(word)]
	return p, ok
}

// Headwords returns every headword, in no particular order.
func (d *Dict) Headwords() []string {
	out := make([]string, 0, len(d.entries))
	for w := range d.entries {
		out = append(out, w)
	}
	return out
}

// Option is a functional option for configuring a [Provider].
type Option func(*Provider)

// WithPhoneticFallback enables borrowing the pronunciation of the closest
// sounding headword for out-of-vocabulary words.
func WithPhoneticFallback(opts ...phonetic.Option) Option {
	return func(p *Provider) {
		p.fallbackOpts = opts
		p.fallback = true
	}
}

// WithSchwa maps unstressed AH0 to ə.
func WithSchwa() Option {
	return func(p *Provider) { p.schwa = true }
}

// Provider implements g2p.Provider over a [Dict]. It is read-only after
// construction and safe for concurrent use.
type Provider struct {
	dict  *Dict
	schwa bool

	fallback     bool
	fallbackOpts []phonetic.Option
	index        *phonetic.Index
}

var _ g2p.Provider = (*Provider)(nil)

// New creates a Provider over dict.
func New(dict *Dict, opts ...Option) *Provider {
	p := &Provider{dict: dict}
	for _, o := range opts {
		o(p)
	}
	if p.fallback {
		p.index = phonetic.NewIndex(dict.Headwords(), p.fallbackOpts...)
	}
	return p
}

// Name implements g2p.Provider.
func (p *Provider) Name() string { return "cmudict" }

// Phonemize implements g2p.Provider.
func (p *Provider) Phonemize(ctx context.Context, words []string) ([]types.WordPhonemes, error) {
	out := make([]types.WordPhonemes, len(words))
	for i, w := range words {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = types.WordPhonemes{Word: w, Phonemes: p.pronounce(w)}
	}
	return out, nil
}

func (p *Provider) pronounce(word string) []string {
	key := strings.ToLower(strings.Trim(word, "'’-"))
	if arpa, ok := p.dict.Lookup(key); ok {
		return ToIPA(strings.Join(arpa, " "), p.schwa)
	}
	if p.index != nil {
		if hw, conf, ok := p.index.Match(key); ok {
			slog.Debug("cmudict: phonetic fallback", "word", word, "headword", hw, "confidence", conf)
			arpa, _ := p.dict.Lookup(hw)
			return ToIPA(strings.Join(arpa, " "), p.schwa)
		}
	}
	return []string{}
}
