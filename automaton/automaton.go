// Package automaton implements a substrate-limited colony growth cellular
// automaton on a toroidal lattice.
//
// Each cell is Empty, Dividing, or Growing. A step diffuses the substrate
// field, subtracts state-dependent consumption, and then applies the
// transition rules synchronously against the pre-step grid. All randomness
// comes from a generator owned by the engine and seeded from the parameters,
// so two engines with the same parameters evolve identically.
package automaton

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/colony/config"
)

// ErrInvalidArgument is returned for out-of-range step arguments or a
// malformed parameter set. It is the only error kind the engine produces.
var ErrInvalidArgument = errors.New("invalid argument")

// divisionProb maps the active Moore-neighbor count (0..8) to the division
// probability at the base prob_div of 0.5. Crowding lowers the probability up
// to four neighbors; the n0 threshold handles inhibition beyond that. These
// values are reproducibility constants, not tunables: published runs depend
// on them.
var divisionProb = [9]float64{0.5, 0.5, 0.25, 0.125, 0.05, 0.5, 0.5, 0.5, 0.5}

// baseProb is the prob_div at which divisionProb applies unscaled.
const baseProb = 0.5

// Counts holds the per-step aggregates derived from engine state.
type Counts struct {
	Dividing      int
	Growing       int
	Empty         int
	MeanSubstrate float64
}

// Engine owns one grid, one substrate field, and a seeded random generator.
// It is not safe for concurrent use; a run drives a single engine
// sequentially.
type Engine struct {
	params *config.Params

	grid *Grid
	next *Grid

	substrate []float64
	scratch   []float64

	rng *rand.Rand
}

// New allocates an engine from the parameter set. The substrate field starts
// uniform at the configured initial concentration; each cell is seeded
// Dividing with probability equal to the derived occupancy fraction, drawing
// in row-major order.
func New(p *config.Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	rows, cols := p.Grid.Rows, p.Grid.Cols
	e := &Engine{
		params:    p,
		grid:      NewGrid(rows, cols),
		next:      NewGrid(rows, cols),
		substrate: make([]float64, rows*cols),
		scratch:   make([]float64, rows*cols),
		rng:       rand.New(rand.NewSource(p.Seed)),
	}

	for i := range e.substrate {
		e.substrate[i] = p.Substrate.Initial
	}

	frac := p.OccupancyFraction()
	for i := range e.grid.cells {
		if e.rng.Float64() < frac {
			e.grid.cells[i] = Dividing
		}
	}

	return e, nil
}

// Step advances the engine by one discrete time unit: substrate diffusion,
// then consumption, then synchronous state transitions. n0 is the neighbor
// count above which division is blocked; probDiv scales the probability
// table.
func (e *Engine) Step(n0 int, probDiv float64) error {
	if n0 < 0 {
		return fmt.Errorf("%w: n0 must be >= 0, got %d", ErrInvalidArgument, n0)
	}
	if probDiv < 0 || probDiv > 1 {
		return fmt.Errorf("%w: prob_div must be in [0, 1], got %g", ErrInvalidArgument, probDiv)
	}

	e.diffuse()
	e.consume()
	e.transition(n0, probDiv)
	return nil
}

// diffuse exchanges substrate with the 8 toroidal neighbors:
// s' = s + D*(mean of neighbors - s), computed from the pre-step field into
// a scratch buffer. The symmetric kernel conserves total mass.
func (e *Engine) diffuse() {
	d := e.params.Substrate.Diffusion
	rows, cols := e.grid.Rows, e.grid.Cols
	src, dst := e.substrate, e.scratch

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			sum := 0.0
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					if dr == 0 && dc == 0 {
						continue
					}
					rr, cc := e.grid.Wrap(r+dr, c+dc)
					sum += src[rr*cols+cc]
				}
			}
			i := r*cols + c
			dst[i] = src[i] + d*(sum/8.0-src[i])
		}
	}

	e.substrate, e.scratch = e.scratch, e.substrate
}

// consume subtracts the per-state consumption from every cell, clamping at
// zero. Consumption reads the current grid: transitions have not run yet.
func (e *Engine) consume() {
	cd := e.params.Substrate.ConsumeDividing
	cg := e.params.Substrate.ConsumeGrowing

	for i, st := range e.grid.cells {
		var take float64
		switch st {
		case Empty:
		case Dividing:
			take = cd
		case Growing:
			take = cg
		}
		v := e.substrate[i] - take
		if v < 0 {
			v = 0
		}
		e.substrate[i] = v
	}
}

// transition applies the state rules synchronously: reads come from the
// pre-step grid and the post-consumption substrate, writes go to the back
// buffer, and the buffers swap at the end. Cells are visited in row-major
// order and a random draw is consumed only when a cell passes its gates,
// which fixes the draw sequence for a given seed.
func (e *Engine) transition(n0 int, probDiv float64) {
	rows, cols := e.grid.Rows, e.grid.Cols
	sMin := e.params.Substrate.Min
	if sMin < 1e-6 {
		sMin = 1e-6
	}
	scale := probDiv / baseProb

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			neighbors := e.grid.ActiveNeighbors(r, c)
			if neighbors > 8 {
				neighbors = 8
			}

			// Below s_min the probability degrades linearly with the
			// local concentration.
			factor := 1.0
			if local := e.substrate[i]; local < sMin {
				factor = local / sMin
				if factor < 0 {
					factor = 0
				}
			}
			p := divisionProb[neighbors] * scale * factor

			st := e.grid.cells[i]
			out := st
			switch st {
			case Empty:
				if neighbors > 0 && neighbors <= n0 && p > 0 && e.rng.Float64() < p {
					out = Growing
				}
			case Dividing:
				// Division completes unconditionally.
				out = Growing
			case Growing:
				if neighbors <= n0 && p > 0 && e.rng.Float64() < p {
					out = Dividing
				}
			}
			e.next.cells[i] = out
		}
	}

	e.grid, e.next = e.next, e.grid
}

// CurrentState returns copies of the grid and substrate field. Callers never
// observe later mutation through the returned values.
func (e *Engine) CurrentState() (*Grid, []float64) {
	sub := make([]float64, len(e.substrate))
	copy(sub, e.substrate)
	return e.grid.Clone(), sub
}

// Counts returns the aggregate state counts and the mean substrate
// concentration.
func (e *Engine) Counts() Counts {
	c := Counts{MeanSubstrate: stat.Mean(e.substrate, nil)}
	for _, st := range e.grid.cells {
		switch st {
		case Empty:
			c.Empty++
		case Dividing:
			c.Dividing++
		case Growing:
			c.Growing++
		}
	}
	return c
}

// Size returns the grid extent.
func (e *Engine) Size() (rows, cols int) {
	return e.grid.Rows, e.grid.Cols
}
