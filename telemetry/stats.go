// Package telemetry holds the per-step statistics produced by a run and the
// writers that export them.
package telemetry

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// StepStats holds the aggregate counts for one step of a run.
type StepStats struct {
	Step          int     `csv:"step"`
	Dividing      int     `csv:"dividing"`
	Growing       int     `csv:"growing"`
	Empty         int     `csv:"empty"`
	Alive         int     `csv:"alive"` // dividing + growing
	MeanSubstrate float64 `csv:"mean_substrate"`
}

// SeriesStats summarizes a full run for sweep comparisons.
type SeriesStats struct {
	FinalAlive     int
	PeakAlive      int
	FinalSubstrate float64
	GrowthRate     float64
}

// Summarize computes summary statistics over a recorded series.
func Summarize(series []StepStats) SeriesStats {
	var s SeriesStats
	if len(series) == 0 {
		return s
	}
	last := series[len(series)-1]
	s.FinalAlive = last.Alive
	s.FinalSubstrate = last.MeanSubstrate
	for _, st := range series {
		if st.Alive > s.PeakAlive {
			s.PeakAlive = st.Alive
		}
	}
	s.GrowthRate = GrowthRate(series)
	return s
}

// GrowthRate estimates the specific growth rate as the slope of log(alive)
// over the exponential window: from the start of the series until the alive
// count first reaches half of its peak. Returns 0 when fewer than two usable
// points exist.
func GrowthRate(series []StepStats) float64 {
	peak := 0
	for _, st := range series {
		if st.Alive > peak {
			peak = st.Alive
		}
	}
	if peak == 0 {
		return 0
	}

	var xs, ys []float64
	for _, st := range series {
		if st.Alive <= 0 {
			continue
		}
		xs = append(xs, float64(st.Step))
		ys = append(ys, math.Log(float64(st.Alive)))
		if st.Alive*2 >= peak {
			break
		}
	}
	if len(xs) < 2 {
		return 0
	}

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope
}

// LogisticCurve evaluates the closed-form logistic model
// x(t) = k / (1 + ((k-x0)/x0) * exp(-mu*t)) at the given times. It is the
// kinetic reference curve the automaton is compared against.
func LogisticCurve(times []float64, x0, k, mu float64) []float64 {
	if x0 < 1 {
		x0 = 1
	}
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = k / (1.0 + ((k-x0)/x0)*math.Exp(-mu*t))
	}
	return out
}
