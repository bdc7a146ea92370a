package automaton

import "fmt"

// State is the occupancy state of a lattice cell.
type State uint8

const (
	// Empty cells hold no biomass.
	Empty State = iota
	// Dividing cells are mid-division and become Growing on the next step.
	Dividing
	// Growing cells hold biomass and may activate division.
	Growing
)

// Active reports whether the cell holds biomass (Dividing or Growing).
func (s State) Active() bool {
	return s == Dividing || s == Growing
}

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Dividing:
		return "dividing"
	case Growing:
		return "growing"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Grid is a fixed-shape toroidal lattice of cell states stored in row-major
// order. The shape never changes after allocation.
type Grid struct {
	Rows, Cols int
	cells      []State
}

// NewGrid allocates an all-Empty grid with the given extent.
func NewGrid(rows, cols int) *Grid {
	return &Grid{Rows: rows, Cols: cols, cells: make([]State, rows*cols)}
}

// Index returns the linear slice index for (row, col).
func (g *Grid) Index(r, c int) int { return r*g.Cols + c }

// Wrap applies toroidal wrapping to the provided coordinates.
func (g *Grid) Wrap(r, c int) (int, int) {
	r = (r%g.Rows + g.Rows) % g.Rows
	c = (c%g.Cols + g.Cols) % g.Cols
	return r, c
}

// At returns the state at (row, col) without wrapping.
func (g *Grid) At(r, c int) State { return g.cells[r*g.Cols+c] }

// Set writes the state at (row, col) without wrapping.
func (g *Grid) Set(r, c int, s State) { g.cells[r*g.Cols+c] = s }

// Cells exposes the backing slice so callers can read values directly.
func (g *Grid) Cells() []State { return g.cells }

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := &Grid{Rows: g.Rows, Cols: g.Cols, cells: make([]State, len(g.cells))}
	copy(out.cells, g.cells)
	return out
}

// CountState returns the number of cells in the given state.
func (g *Grid) CountState(s State) int {
	n := 0
	for _, v := range g.cells {
		if v == s {
			n++
		}
	}
	return n
}

// ActiveNeighbors counts Moore-8 neighbors of (row, col) holding biomass,
// wrapping toroidally. A cell is never its own neighbor.
func (g *Grid) ActiveNeighbors(r, c int) int {
	n := 0
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			rr, cc := g.Wrap(r+dr, c+dc)
			if g.cells[rr*g.Cols+cc].Active() {
				n++
			}
		}
	}
	return n
}
