// Command sweep reproduces the article's experiment battery: a base run with
// snapshots, sweeps over the spatial threshold n0 and the division
// probability, an initial-substrate comparison, and a kinetic-model reference
// curve. Each run gets its own output subdirectory; summary.csv collects one
// row per run.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/colony/config"
	"github.com/pthm-cable/colony/sim"
	"github.com/pthm-cable/colony/telemetry"
)

// runRecord is one summary.csv row.
type runRecord struct {
	Name             string  `csv:"name"`
	N0               int     `csv:"n0"`
	Prob             float64 `csv:"prob"`
	InitialSubstrate float64 `csv:"s0"`
	Seed             int64   `csv:"seed"`
	FinalAlive       int     `csv:"final_alive"`
	PeakAlive        int     `csv:"peak_alive"`
	GrowthRate       float64 `csv:"growth_rate"`
	FinalSubstrate   float64 `csv:"final_substrate"`
}

// kineticRow pairs the automaton's alive curve with the closed-form logistic
// model for the comparison figure.
type kineticRow struct {
	Step     int     `csv:"step"`
	Alive    int     `csv:"alive"`
	Logistic float64 `csv:"logistic"`
}

// kineticMu is the specific growth rate used for the reference logistic
// curve, matching the article comparison.
const kineticMu = 0.05

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = article preset)")
	outputDir := flag.String("output", "", "Output directory for all runs (required)")
	baseN0 := flag.Int("base-n0", 3, "n0 used for the base run and the probability sweep")

	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *outputDir == "" {
		slog.Error("--output is required")
		os.Exit(1)
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	params, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if len(params.Experiments.Probabilities) == 0 || len(params.Experiments.N0Values) == 0 {
		slog.Error("config must define experiment probabilities and n0 values")
		os.Exit(1)
	}
	baseProb := params.Experiments.Probabilities[0]

	var records []runRecord

	// Base run: snapshots, substrate series, kinetic comparison.
	baseName := runName(*baseN0, baseProb, params.Substrate.Initial)
	baseRes, rec, err := runOne(*outputDir, baseName, params, *baseN0, baseProb)
	if err != nil {
		slog.Error("base run failed", "error", err)
		os.Exit(1)
	}
	records = append(records, rec)
	if err := writeKinetic(*outputDir, baseRes); err != nil {
		slog.Error("failed to write kinetic comparison", "error", err)
		os.Exit(1)
	}

	// Sweep over n0 at the base probability.
	for _, n0 := range params.Experiments.N0Values {
		name := runName(n0, baseProb, params.Substrate.Initial)
		if name == baseName {
			continue
		}
		_, rec, err := runOne(*outputDir, name, params, n0, baseProb)
		if err != nil {
			slog.Error("sweep run failed", "name", name, "error", err)
			os.Exit(1)
		}
		records = append(records, rec)
	}

	// Sweep over probabilities at the base n0.
	for _, prob := range params.Experiments.Probabilities {
		name := runName(*baseN0, prob, params.Substrate.Initial)
		if name == baseName {
			continue
		}
		_, rec, err := runOne(*outputDir, name, params, *baseN0, prob)
		if err != nil {
			slog.Error("sweep run failed", "name", name, "error", err)
			os.Exit(1)
		}
		records = append(records, rec)
	}

	// Initial-substrate comparison.
	for _, s0 := range []float64{60, 70} {
		q := *params
		q.Substrate.Initial = s0
		name := runName(*baseN0, baseProb, s0)
		if name == baseName {
			continue
		}
		_, rec, err := runOne(*outputDir, name, &q, *baseN0, baseProb)
		if err != nil {
			slog.Error("substrate run failed", "name", name, "error", err)
			os.Exit(1)
		}
		records = append(records, rec)
	}

	if err := writeSummary(*outputDir, records); err != nil {
		slog.Error("failed to write summary", "error", err)
		os.Exit(1)
	}

	slog.Info("sweep complete", "runs", len(records), "output", *outputDir)
}

func runName(n0 int, prob, s0 float64) string {
	return fmt.Sprintf("n0_%d_p_%g_s0_%g", n0, prob, s0)
}

func runOne(outputDir, name string, params *config.Params, n0 int, prob float64) (*sim.Result, runRecord, error) {
	slog.Info("running", "name", name, "n0", n0, "prob", prob, "s0", params.Substrate.Initial)

	res, err := sim.Run(params, n0, prob)
	if err != nil {
		return nil, runRecord{}, err
	}

	out, err := telemetry.NewOutputManager(filepath.Join(outputDir, name))
	if err != nil {
		return nil, runRecord{}, err
	}
	defer out.Close()

	if err := out.WriteParams(params); err != nil {
		return nil, runRecord{}, err
	}
	for _, s := range res.Series {
		if err := out.WriteStep(s); err != nil {
			return nil, runRecord{}, err
		}
	}
	steps := make([]int, 0, len(res.Snapshots))
	for step := range res.Snapshots {
		steps = append(steps, step)
	}
	sort.Ints(steps)
	for _, step := range steps {
		snap := res.Snapshots[step]
		if err := out.WriteSnapshot(step, snap.Grid, snap.Substrate); err != nil {
			return nil, runRecord{}, err
		}
	}

	summary := telemetry.Summarize(res.Series)
	return res, runRecord{
		Name:             name,
		N0:               n0,
		Prob:             prob,
		InitialSubstrate: params.Substrate.Initial,
		Seed:             params.Seed,
		FinalAlive:       summary.FinalAlive,
		PeakAlive:        summary.PeakAlive,
		GrowthRate:       summary.GrowthRate,
		FinalSubstrate:   summary.FinalSubstrate,
	}, nil
}

// writeKinetic writes the base run's alive curve next to the logistic model
// with carrying capacity at the run's peak.
func writeKinetic(outputDir string, res *sim.Result) error {
	alive := res.TotalAlive()
	if len(alive) == 0 {
		return nil
	}

	times := make([]float64, len(alive))
	for i := range times {
		times[i] = float64(res.Series[i].Step)
	}
	x0 := float64(alive[0])
	k := 0.0
	for _, a := range alive {
		if float64(a) > k {
			k = float64(a)
		}
	}
	curve := telemetry.LogisticCurve(times, x0, k, kineticMu)

	rows := make([]kineticRow, len(alive))
	for i := range rows {
		rows[i] = kineticRow{Step: res.Series[i].Step, Alive: alive[i], Logistic: curve[i]}
	}

	f, err := os.Create(filepath.Join(outputDir, "kinetic.csv"))
	if err != nil {
		return fmt.Errorf("creating kinetic.csv: %w", err)
	}
	defer f.Close()
	if err := gocsv.Marshal(rows, f); err != nil {
		return fmt.Errorf("writing kinetic.csv: %w", err)
	}
	return nil
}

func writeSummary(outputDir string, records []runRecord) error {
	f, err := os.Create(filepath.Join(outputDir, "summary.csv"))
	if err != nil {
		return fmt.Errorf("creating summary.csv: %w", err)
	}
	defer f.Close()
	if err := gocsv.Marshal(records, f); err != nil {
		return fmt.Errorf("writing summary.csv: %w", err)
	}
	return nil
}
