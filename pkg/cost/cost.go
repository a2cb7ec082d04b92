// Package cost defines the edit cost models used by the alignment engine.
//
// A [Model] assigns a substitution cost to any pair of phoneme symbols and
// fixed costs to insertions and deletions. Every model must return 0 for
// identical symbols and a non-negative value otherwise; triangle inequality
// is not required. Models must answer for arbitrary symbols, including
// symbols they have never seen, by falling back to their worst-case cost.
//
// Models only change scoring granularity. They never change which edit
// operations are legal.
//
// All models in this package are read-only after construction and safe for
// concurrent use.
package cost

// Model is the cost function consulted by the alignment engine.
type Model interface {
	// Substitution returns the cost of aligning reference symbol a with
	// hypothesis symbol b. Must be 0 when a == b.
	Substitution(a, b string) float64

	// Insertion returns the cost of a hypothesis symbol with no reference
	// counterpart.
	Insertion() float64

	// Deletion returns the cost of a reference symbol with no hypothesis
	// counterpart.
	Deletion() float64
}

// Uniform is the default policy: identical symbols cost 0, every other pair
// costs Sub, and insertions and deletions cost Ins and Del.
type Uniform struct {
	Sub float64
	Ins float64
	Del float64
}

var _ Model = Uniform{}

// Default returns the unit-cost [Uniform] model (1/1/1).
func Default() Uniform {
	return Uniform{Sub: 1, Ins: 1, Del: 1}
}

// Substitution implements [Model].
func (u Uniform) Substitution(a, b string) float64 {
	if a == b {
		return 0
	}
	return u.Sub
}

// Insertion implements [Model].
func (u Uniform) Insertion() float64 { return u.Ins }

// Deletion implements [Model].
func (u Uniform) Deletion() float64 { return u.Del }

// swapped exchanges the insertion and deletion costs of a model and mirrors
// its substitution arguments.
type swapped struct {
	m Model
}

// Swapped returns a model whose insertion cost is m's deletion cost and vice
// versa, with substitution arguments mirrored. Aligning (hyp, ref) under
// Swapped(m) costs the same as aligning (ref, hyp) under m.
func Swapped(m Model) Model {
	if s, ok := m.(swapped); ok {
		return s.m
	}
	return swapped{m: m}
}

func (s swapped) Substitution(a, b string) float64 { return s.m.Substitution(b, a) }
func (s swapped) Insertion() float64               { return s.m.Deletion() }
func (s swapped) Deletion() float64                { return s.m.Insertion() }
