package phoneme

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	primaryStress   = "ˈ"
	secondaryStress = "ˌ"
)

var spaces = regexp.MustCompile(`\s+`)

// multiSymbols are phones spelled with more than one code point, ordered
// longest first for the greedy scan.
var multiSymbols = []string{
	"t͡ʃ", "d͡ʒ", "t͜ʃ", "d͜ʒ",
	"tʃ", "dʒ",
	"aɪ", "aʊ", "ɔɪ", "oʊ", "eɪ",
}

// attachToPrevious are length and diacritic marks that modify the preceding
// phone rather than standing alone.
var attachToPrevious = map[rune]bool{
	'ː': true, // length
	'̃': true, // combining tilde (nasalised)
	'̩': true, // combining vertical line below (syllabic)
}

var tieBars = map[rune]bool{
	'͡': true,
	'͜': true,
}

// Normalize returns text in Unicode NFC with surrounding whitespace trimmed
// and internal whitespace runs collapsed to a single space.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = strings.TrimSpace(text)
	return spaces.ReplaceAllString(text, " ")
}

// Tokenize splits an IPA string into phone symbols suitable for alignment.
//
// Whitespace is dropped. Stress marks are kept as their own tokens.
// Multi-character phones (affricates, common English diphthongs, anything
// joined by a tie bar) are matched greedily. Length marks and the nasal and
// syllabic diacritics attach to the previous token.
func Tokenize(ipa string) []string {
	rs := []rune(norm.NFC.String(ipa))
	var tokens []string
	for i := 0; i < len(rs); {
		r := rs[i]
		if unicode.IsSpace(r) {
			i++
			continue
		}
		if s := string(r); s == primaryStress || s == secondaryStress {
			tokens = append(tokens, s)
			i++
			continue
		}
		if m := matchMulti(rs[i:]); m > 0 {
			tokens = append(tokens, string(rs[i:i+m]))
			i += m
			continue
		}
		if i+2 < len(rs) && tieBars[rs[i+1]] {
			tokens = append(tokens, string(rs[i:i+3]))
			i += 3
			continue
		}
		if attachToPrevious[r] && len(tokens) > 0 {
			tokens[len(tokens)-1] += string(r)
			i++
			continue
		}
		tokens = append(tokens, string(r))
		i++
	}
	return tokens
}

func matchMulti(rs []rune) int {
	for _, m := range multiSymbols {
		mr := []rune(m)
		if len(mr) > len(rs) {
			continue
		}
		if string(rs[:len(mr)]) == m {
			return len(mr)
		}
	}
	return 0
}

// StripStress removes stress-mark tokens from symbols.
func StripStress(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == primaryStress || s == secondaryStress {
			continue
		}
		out = append(out, s)
	}
	return out
}

// SplitWords splits a reference script into word forms for G2P. Letters,
// digits, apostrophes, and hyphens are word characters; everything else
// separates words.
func SplitWords(reference string) []string {
	var (
		parts []string
		buf   strings.Builder
	)
	flush := func() {
		if buf.Len() > 0 {
			parts = append(parts, buf.String())
			buf.Reset()
		}
	}
	for _, r := range strings.TrimSpace(reference) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '’' || r == '-' {
			buf.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return parts
}
