package cost

import (
	"slices"
	"strings"
)

const (
	defaultNear = 0.5
	defaultFar  = 1.0
)

// defaultClasses groups English IPA symbols by manner of articulation (for
// consonants) and tongue position (for vowels). Two symbols that share a
// class are "near" confusions.
var defaultClasses = map[string][]string{
	"stop":          {"p", "b", "t", "d", "k", "ɡ", "g", "ʔ"},
	"fricative":     {"f", "v", "θ", "ð", "s", "z", "ʃ", "ʒ", "h", "x"},
	"affricate":     {"tʃ", "dʒ", "t͡ʃ", "d͡ʒ", "ts", "dz"},
	"nasal":         {"m", "n", "ŋ", "ɱ"},
	"liquid":        {"l", "ɫ", "ɹ", "r", "ɾ", "ɻ"},
	"glide":         {"w", "j", "ʍ"},
	"front_vowel":   {"i", "ɪ", "e", "ɛ", "æ", "y"},
	"central_vowel": {"ə", "ɜ", "ɝ", "ɚ", "ʌ", "ɐ", "ɨ"},
	"back_vowel":    {"u", "ʊ", "o", "ɔ", "ɑ", "ɒ"},
	"diphthong":     {"aɪ", "aʊ", "ɔɪ", "eɪ", "oʊ", "əʊ", "ɪə", "eə", "ʊə"},

	// Frequent learner substitutions across manner classes.
	"th_stopping":        {"θ", "t", "ð", "d"},
	"sibilant_affricate": {"tʃ", "ʃ", "dʒ", "ʒ"},
	"rhotic_vowel":       {"ɝ", "ɚ", "ɹ"},
}

// ArticulatoryOption configures an [Articulatory] model.
type ArticulatoryOption func(*Articulatory)

// WithNearCost sets the cost of a substitution between symbols that share
// an articulatory class. Default: 0.5.
func WithNearCost(c float64) ArticulatoryOption {
	return func(a *Articulatory) { a.near = c }
}

// WithFarCost sets the cost of a substitution between unrelated or unseen
// symbols. Default: 1.0.
func WithFarCost(c float64) ArticulatoryOption {
	return func(a *Articulatory) { a.far = c }
}

// WithIndelCosts sets the insertion and deletion costs. Default: 1.0 each.
func WithIndelCosts(ins, del float64) ArticulatoryOption {
	return func(a *Articulatory) {
		a.ins = ins
		a.del = del
	}
}

// WithClass adds (or replaces) a named class of mutually near symbols.
func WithClass(name string, symbols ...string) ArticulatoryOption {
	return func(a *Articulatory) {
		a.classes[name] = append([]string(nil), symbols...)
	}
}

// Articulatory is a confusability-table cost model. Symbols sharing a
// manner/place class cost Near to substitute, everything else costs Far.
// Length marks and stress marks are ignored when looking symbols up, so "iː"
// is near "i". Unknown symbols always cost Far.
type Articulatory struct {
	near, far float64
	ins, del  float64

	classes map[string][]string
	// index maps a base symbol to the set of class names it belongs to.
	index map[string]map[string]struct{}
}

var _ Model = (*Articulatory)(nil)

// NewArticulatory builds an Articulatory model over the built-in English
// classes, adjusted by opts.
func NewArticulatory(opts ...ArticulatoryOption) *Articulatory {
	a := &Articulatory{
		near:    defaultNear,
		far:     defaultFar,
		ins:     1,
		del:     1,
		classes: make(map[string][]string, len(defaultClasses)),
	}
	for name, syms := range defaultClasses {
		a.classes[name] = syms
	}
	for _, o := range opts {
		o(a)
	}
	a.index = make(map[string]map[string]struct{})
	for name, syms := range a.classes {
		for _, s := range syms {
			set, ok := a.index[s]
			if !ok {
				set = make(map[string]struct{}, 2)
				a.index[s] = set
			}
			set[name] = struct{}{}
		}
	}
	return a
}

// Substitution implements [Model].
func (a *Articulatory) Substitution(x, y string) float64 {
	if x == y {
		return 0
	}
	bx, by := baseSymbol(x), baseSymbol(y)
	if bx == by && bx != "" {
		// Differ only in length or stress.
		return a.near
	}
	cx, okx := a.index[bx]
	cy, oky := a.index[by]
	if !okx || !oky {
		return a.far
	}
	for name := range cx {
		if _, ok := cy[name]; ok {
			return a.near
		}
	}
	return a.far
}

// Insertion implements [Model].
func (a *Articulatory) Insertion() float64 { return a.ins }

// Deletion implements [Model].
func (a *Articulatory) Deletion() float64 { return a.del }

// Classes returns the sorted class names symbol belongs to, or nil for
// unknown symbols.
func (a *Articulatory) Classes(symbol string) []string {
	set := a.index[baseSymbol(symbol)]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

var suprasegmentals = strings.NewReplacer("ː", "", "ˑ", "", "ˈ", "", "ˌ", "")

// baseSymbol strips length and stress marks.
func baseSymbol(s string) string {
	return suprasegmentals.Replace(s)
}
