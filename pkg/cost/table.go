package cost

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// TableFile is the YAML schema of a cost override file:
//
//	insertion: 1.0
//	deletion: 1.0
//	pairs:
//	  - {a: "θ", b: "s", cost: 0.3}
//	  - {a: "ɪ", b: "i", cost: 0.2, symmetric: true}
type TableFile struct {
	Insertion *float64   `yaml:"insertion"`
	Deletion  *float64   `yaml:"deletion"`
	Pairs     []PairCost `yaml:"pairs"`
}

// PairCost overrides the substitution cost of one (reference, hypothesis)
// symbol pair.
type PairCost struct {
	A         string  `yaml:"a"`
	B         string  `yaml:"b"`
	Cost      float64 `yaml:"cost"`
	Symmetric bool    `yaml:"symmetric"`
}

type pair struct{ a, b string }

// Table layers explicit pair costs over a base model.
type Table struct {
	base  Model
	pairs map[pair]float64
	ins   float64
	del   float64
}

var _ Model = (*Table)(nil)

// NewTable builds a Table over base from f. It rejects negative costs and
// pairs that would give identical symbols a non-zero cost.
func NewTable(base Model, f TableFile) (*Table, error) {
	t := &Table{
		base:  base,
		pairs: make(map[pair]float64, len(f.Pairs)),
		ins:   base.Insertion(),
		del:   base.Deletion(),
	}
	var errs []error
	if f.Insertion != nil {
		if *f.Insertion < 0 {
			errs = append(errs, fmt.Errorf("insertion cost %v is negative", *f.Insertion))
		}
		t.ins = *f.Insertion
	}
	if f.Deletion != nil {
		if *f.Deletion < 0 {
			errs = append(errs, fmt.Errorf("deletion cost %v is negative", *f.Deletion))
		}
		t.del = *f.Deletion
	}
	for i, p := range f.Pairs {
		switch {
		case p.A == "" || p.B == "":
			errs = append(errs, fmt.Errorf("pairs[%d]: a and b are required", i))
			continue
		case p.Cost < 0:
			errs = append(errs, fmt.Errorf("pairs[%d]: cost %v is negative", i, p.Cost))
			continue
		case p.A == p.B && p.Cost != 0:
			errs = append(errs, fmt.Errorf("pairs[%d]: identical symbols %q must cost 0", i, p.A))
			continue
		}
		t.pairs[pair{p.A, p.B}] = p.Cost
		if p.Symmetric {
			t.pairs[pair{p.B, p.A}] = p.Cost
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("cost: table: %w", err)
	}
	return t, nil
}

// LoadTable decodes a YAML [TableFile] from r and layers it over base.
func LoadTable(r io.Reader, base Model) (*Table, error) {
	var f TableFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("cost: decode table: %w", err)
	}
	return NewTable(base, f)
}

// LoadTableFile opens path and calls [LoadTable].
func LoadTableFile(path string, base Model) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cost: open %q: %w", path, err)
	}
	defer f.Close()
	return LoadTable(f, base)
}

// Substitution implements [Model].
func (t *Table) Substitution(a, b string) float64 {
	if a == b {
		return 0
	}
	if c, ok := t.pairs[pair{a, b}]; ok {
		return c
	}
	return t.base.Substitution(a, b)
}

// Insertion implements [Model].
func (t *Table) Insertion() float64 { return t.ins }

// Deletion implements [Model].
func (t *Table) Deletion() float64 { return t.del }
