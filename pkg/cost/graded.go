package cost

import "github.com/antzucaro/matchr"

// Graded scores substitutions by the Jaro-Winkler similarity of the two
// symbol spellings. It is useful as a fallback for composite symbols the
// articulatory table does not list (diacritic variants, tie-bar spellings):
// "t͡ʃ" and "tʃ" come out cheap, "k" and "ɔɪ" cost the full Far.
type Graded struct {
	// Far is the cost of completely dissimilar symbols.
	Far float64

	// Min is the floor for any non-identical pair, so near-identical spellings
	// still register as a substitution.
	Min float64

	Ins float64
	Del float64
}

var _ Model = Graded{}

// NewGraded returns a Graded model with Far=1, Min=0.25 and unit indel costs.
func NewGraded() Graded {
	return Graded{Far: 1, Min: 0.25, Ins: 1, Del: 1}
}

// Substitution implements [Model].
func (g Graded) Substitution(a, b string) float64 {
	if a == b {
		return 0
	}
	if a == "" || b == "" {
		return g.Far
	}
	sim := matchr.JaroWinkler(a, b, false)
	c := g.Far * (1 - sim)
	if c < g.Min {
		c = g.Min
	}
	if c > g.Far {
		c = g.Far
	}
	return c
}

// Insertion implements [Model].
func (g Graded) Insertion() float64 { return g.Ins }

// Deletion implements [Model].
func (g Graded) Deletion() float64 { return g.Del }

// Fallback consults primary first and, when primary reports its worst-case
// cost for a pair, asks secondary for a possibly lower one. Indel costs come
// from primary.
type Fallback struct {
	Primary   Model
	Secondary Model
	// Worst is the primary's worst-case substitution cost.
	Worst float64
}

var _ Model = Fallback{}

// Substitution implements [Model].
func (f Fallback) Substitution(a, b string) float64 {
	c := f.Primary.Substitution(a, b)
	if c < f.Worst {
		return c
	}
	if s := f.Secondary.Substitution(a, b); s < c {
		return s
	}
	return c
}

// Insertion implements [Model].
func (f Fallback) Insertion() float64 { return f.Primary.Insertion() }

// Deletion implements [Model].
func (f Fallback) Deletion() float64 { return f.Primary.Deletion() }
