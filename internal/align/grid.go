package align

// step is the predecessor recorded for one grid cell. It fits in two bits.
type step uint8

const (
	stepNone step = iota
	stepDiagonal
	stepDelete
	stepInsert
)

// grid stores DP costs and traceback steps. row(i) must only be called in
// increasing order of i during the fill, and may be called again for i and
// i-1 only. get is valid for every cell after the fill.
type grid interface {
	row(i int) []float64
	set(i, j int, s step)
	get(i, j int) step
}

// fullGrid keeps every cost row and one byte per traceback step.
type fullGrid struct {
	cols  int
	costs []float64
	steps []step
}

func newFullGrid(rows, cols int) *fullGrid {
	return &fullGrid{
		cols:  cols,
		costs: make([]float64, rows*cols),
		steps: make([]step, rows*cols),
	}
}

func (g *fullGrid) row(i int) []float64 {
	return g.costs[i*g.cols : (i+1)*g.cols]
}

func (g *fullGrid) set(i, j int, s step) { g.steps[i*g.cols+j] = s }
func (g *fullGrid) get(i, j int) step    { return g.steps[i*g.cols+j] }

// rollingGrid keeps two cost rows and packs four traceback steps per byte.
type rollingGrid struct {
	cols  int
	rows  [2][]float64
	steps []byte
}

func newRollingGrid(rows, cols int) *rollingGrid {
	return &rollingGrid{
		cols:  cols,
		rows:  [2][]float64{make([]float64, cols), make([]float64, cols)},
		steps: make([]byte, (rows*cols+3)/4),
	}
}

func (g *rollingGrid) row(i int) []float64 {
	return g.rows[i&1]
}

func (g *rollingGrid) set(i, j int, s step) {
	idx := i*g.cols + j
	shift := uint(idx&3) * 2
	g.steps[idx>>2] = g.steps[idx>>2]&^(3<<shift) | byte(s)<<shift
}

func (g *rollingGrid) get(i, j int) step {
	idx := i*g.cols + j
	return step(g.steps[idx>>2] >> (uint(idx&3) * 2) & 3)
}
