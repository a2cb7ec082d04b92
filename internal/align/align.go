// Package align computes minimum-cost edit alignments between a reference
// and a hypothesis phoneme sequence.
//
// The reference is the source being edited into the hypothesis: a delete
// consumes a reference symbol with no hypothesis counterpart, an insert
// consumes a hypothesis symbol with no reference counterpart.
//
// When several alignments share the minimum cost, the engine prefers the
// diagonal step (match or substitute) over a deletion, and a deletion over an
// insertion. The same inputs and cost model always produce the same ops.
//
// [Align] is a pure function. Every call allocates its own grid, so it is safe
// to call concurrently.
package align

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/MrWong99/phonoscope/pkg/cost"
	"github.com/MrWong99/phonoscope/pkg/phoneme"
)

// ErrTooLong is returned when the alignment grid would exceed the configured
// cell limit. Callers should reject or truncate such inputs upstream.
var ErrTooLong = errors.New("align: input too long")

// OpKind is the kind of a single alignment step.
type OpKind uint8

const (
	Match OpKind = iota
	Substitute
	Insert
	Delete
)

// String returns the lower-case name of k.
func (k OpKind) String() string {
	switch k {
	case Match:
		return "match"
	case Substitute:
		return "substitute"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (k OpKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (k *OpKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "match":
		*k = Match
	case "substitute":
		*k = Substitute
	case "insert":
		*k = Insert
	case "delete":
		*k = Delete
	default:
		return fmt.Errorf("align: unknown op kind %q", b)
	}
	return nil
}

// EditOp is one step of an alignment. Ref is -1 for inserts and Hyp is -1
// for deletes.
type EditOp struct {
	Kind OpKind  `json:"kind"`
	Ref  int     `json:"ref"`
	Hyp  int     `json:"hyp"`
	Cost float64 `json:"cost"`
}

// Counts tallies the ops of an alignment by kind.
type Counts struct {
	Matches       int `json:"matches"`
	Substitutions int `json:"substitutions"`
	Insertions    int `json:"insertions"`
	Deletions     int `json:"deletions"`
}

// Result is a complete left-to-right alignment.
type Result struct {
	// Ops lists every step. Each reference index and each hypothesis index
	// appears in exactly one op.
	Ops []EditOp `json:"ops"`

	// Cost is the total alignment cost.
	Cost float64 `json:"cost"`

	// Mode is the memory mode the grid was filled in.
	Mode Mode `json:"-"`

	// Cells is the number of grid cells evaluated, (|ref|+1)*(|hyp|+1).
	Cells int `json:"-"`
}

// Counts tallies r's ops by kind.
func (r *Result) Counts() Counts {
	var c Counts
	for _, op := range r.Ops {
		switch op.Kind {
		case Match:
			c.Matches++
		case Substitute:
			c.Substitutions++
		case Insert:
			c.Insertions++
		case Delete:
			c.Deletions++
		}
	}
	return c
}

// Align computes the minimum-cost alignment transforming ref into hyp under m.
//
// Empty inputs are valid: an empty ref yields only inserts, an empty hyp only
// deletes, and two empty inputs yield an empty alignment.
//
// Align returns an [*phoneme.InvalidInputError] if m reports a negative (or
// NaN) cost, and an error wrapping [ErrTooLong] if the grid exceeds the
// [WithMaxCells] limit.
func Align(ref, hyp []string, m cost.Model, opts ...Option) (*Result, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}
	if m == nil {
		m = cost.Default()
	}

	ins, del := m.Insertion(), m.Deletion()
	if err := checkCost("insertion", ins); err != nil {
		return nil, err
	}
	if err := checkCost("deletion", del); err != nil {
		return nil, err
	}

	rows, cols := len(ref)+1, len(hyp)+1
	cells := rows * cols
	if cfg.maxCells > 0 && cells > cfg.maxCells {
		return nil, fmt.Errorf("%w: %d×%d grid exceeds %d cells", ErrTooLong, rows, cols, cfg.maxCells)
	}

	mode := cfg.mode
	if mode == Auto {
		mode = FullMatrix
		if cells > cfg.rollingThreshold {
			mode = Rolling
		}
	}

	var g grid
	switch mode {
	case Rolling:
		g = newRollingGrid(rows, cols)
	default:
		g = newFullGrid(rows, cols)
	}

	total, err := fill(g, ref, hyp, m, ins, del)
	if err != nil {
		return nil, err
	}

	return &Result{
		Ops:   backtrace(g, ref, hyp, m, ins, del),
		Cost:  total,
		Mode:  mode,
		Cells: cells,
	}, nil
}

// AlignSequences aligns the symbols of two phoneme sequences after
// validating both.
func AlignSequences(ref, hyp phoneme.Sequence, m cost.Model, opts ...Option) (*Result, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if err := hyp.Validate(); err != nil {
		return nil, err
	}
	return Align(ref.Symbols(), hyp.Symbols(), m, opts...)
}

func fill(g grid, ref, hyp []string, m cost.Model, ins, del float64) (float64, error) {
	first := g.row(0)
	first[0] = 0
	for j := 1; j <= len(hyp); j++ {
		first[j] = float64(j) * ins
		g.set(0, j, stepInsert)
	}

	for i := 1; i <= len(ref); i++ {
		prev, cur := g.row(i-1), g.row(i)
		cur[0] = float64(i) * del
		g.set(i, 0, stepDelete)

		a := ref[i-1]
		for j := 1; j <= len(hyp); j++ {
			sub := m.Substitution(a, hyp[j-1])
			if sub < 0 || math.IsNaN(sub) {
				return 0, &phoneme.InvalidInputError{
					Field:  "cost",
					Index:  -1,
					Reason: fmt.Sprintf("substitution(%q, %q) = %v", a, hyp[j-1], sub),
				}
			}

			// Strict less-than keeps the earlier candidate on ties:
			// diagonal, then delete, then insert.
			best, st := prev[j-1]+sub, stepDiagonal
			if c := prev[j] + del; c < best {
				best, st = c, stepDelete
			}
			if c := cur[j-1] + ins; c < best {
				best, st = c, stepInsert
			}
			cur[j] = best
			g.set(i, j, st)
		}
	}
	return g.row(len(ref))[len(hyp)], nil
}

func backtrace(g grid, ref, hyp []string, m cost.Model, ins, del float64) []EditOp {
	ops := make([]EditOp, 0, max(len(ref), len(hyp)))
	i, j := len(ref), len(hyp)
	for i > 0 || j > 0 {
		switch g.get(i, j) {
		case stepDiagonal:
			c := m.Substitution(ref[i-1], hyp[j-1])
			kind := Substitute
			if c == 0 {
				kind = Match
			}
			ops = append(ops, EditOp{Kind: kind, Ref: i - 1, Hyp: j - 1, Cost: c})
			i--
			j--
		case stepDelete:
			ops = append(ops, EditOp{Kind: Delete, Ref: i - 1, Hyp: -1, Cost: del})
			i--
		case stepInsert:
			ops = append(ops, EditOp{Kind: Insert, Ref: -1, Hyp: j - 1, Cost: ins})
			j--
		default:
			// Unreachable: every cell but the origin records a step.
			panic(fmt.Sprintf("align: no step recorded at (%d,%d)", i, j))
		}
	}
	slices.Reverse(ops)
	return ops
}

func checkCost(field string, c float64) error {
	if c < 0 || math.IsNaN(c) {
		return &phoneme.InvalidInputError{
			Field:  "cost",
			Index:  -1,
			Reason: fmt.Sprintf("%s cost %v is negative", field, c),
		}
	}
	return nil
}
