// Package sim drives the automaton over a fixed horizon and accumulates the
// result series.
package sim

import (
	"fmt"

	"github.com/pthm-cable/colony/automaton"
	"github.com/pthm-cable/colony/config"
	"github.com/pthm-cable/colony/telemetry"
)

// Snapshot is the full engine state captured at a checkpoint step.
type Snapshot struct {
	Step      int
	Grid      *automaton.Grid
	Substrate []float64
}

// Result holds the aggregate series, one entry per step starting at step 0,
// and the snapshots captured at the configured checkpoints. A Result is
// append-only during a run and immutable afterwards.
type Result struct {
	Series    []telemetry.StepStats
	Snapshots map[int]Snapshot
}

// TotalAlive returns the dividing+growing count per step.
func (r *Result) TotalAlive() []int {
	out := make([]int, len(r.Series))
	for i, s := range r.Series {
		out[i] = s.Alive
	}
	return out
}

// Run constructs one engine from the parameters and advances it for exactly
// the configured number of iterations under the given n0 and division
// probability. The initial condition is recorded as step 0. If a step fails,
// the aggregates accumulated so far are returned together with the error.
func Run(p *config.Params, n0 int, probDiv float64) (*Result, error) {
	eng, err := automaton.New(p)
	if err != nil {
		return nil, fmt.Errorf("constructing engine: %w", err)
	}

	checkpoints := make(map[int]bool, len(p.Run.Checkpoints))
	for _, c := range p.Run.Checkpoints {
		checkpoints[c] = true
	}

	res := &Result{
		Series:    make([]telemetry.StepStats, 0, p.Run.Iterations+1),
		Snapshots: make(map[int]Snapshot, len(checkpoints)),
	}

	record := func(step int) {
		counts := eng.Counts()
		res.Series = append(res.Series, telemetry.StepStats{
			Step:          step,
			Dividing:      counts.Dividing,
			Growing:       counts.Growing,
			Empty:         counts.Empty,
			Alive:         counts.Dividing + counts.Growing,
			MeanSubstrate: counts.MeanSubstrate,
		})
		if checkpoints[step] {
			grid, substrate := eng.CurrentState()
			res.Snapshots[step] = Snapshot{Step: step, Grid: grid, Substrate: substrate}
		}
	}

	record(0)
	for t := 1; t <= p.Run.Iterations; t++ {
		if err := eng.Step(n0, probDiv); err != nil {
			return res, fmt.Errorf("step %d: %w", t, err)
		}
		record(t)
	}

	return res, nil
}
