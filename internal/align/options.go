package align

import "fmt"

// Mode selects how the DP grid is held in memory. Every mode produces
// identical results.
type Mode uint8

const (
	// Auto uses FullMatrix for small grids and Rolling above the
	// [WithRollingThreshold] cell count.
	Auto Mode = iota

	// FullMatrix keeps the whole cost grid: 9 bytes per cell.
	FullMatrix

	// Rolling keeps two cost rows plus a 2-bit traceback per cell.
	Rolling
)

// String returns the lower-case name of m.
func (m Mode) String() string {
	switch m {
	case Auto:
		return "auto"
	case FullMatrix:
		return "full"
	case Rolling:
		return "rolling"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode parses the String form of a mode. The empty string means Auto.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "auto":
		return Auto, nil
	case "full":
		return FullMatrix, nil
	case "rolling":
		return Rolling, nil
	default:
		return Auto, fmt.Errorf("align: unknown mode %q", s)
	}
}

const (
	// DefaultRollingThreshold is the grid size (in cells) above which Auto
	// switches to Rolling: roughly a 1000×1000 alignment.
	DefaultRollingThreshold = 1 << 20

	// DefaultMaxCells bounds the grid at roughly 8k×8k symbols, far beyond
	// any single utterance.
	DefaultMaxCells = 1 << 26
)

type config struct {
	mode             Mode
	rollingThreshold int
	maxCells         int
}

func defaults() config {
	return config{
		mode:             Auto,
		rollingThreshold: DefaultRollingThreshold,
		maxCells:         DefaultMaxCells,
	}
}

// Option configures a single [Align] call.
type Option func(*config)

// WithMode forces a memory mode.
func WithMode(m Mode) Option {
	return func(c *config) { c.mode = m }
}

// WithRollingThreshold sets the cell count above which Auto mode switches to
// Rolling.
func WithRollingThreshold(cells int) Option {
	return func(c *config) { c.rollingThreshold = cells }
}

// WithMaxCells sets the largest grid Align accepts. Zero or negative
// disables the limit.
func WithMaxCells(cells int) Option {
	return func(c *config) { c.maxCells = cells }
}
