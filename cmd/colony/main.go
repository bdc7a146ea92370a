// Command colony runs a single colony growth simulation headlessly and
// writes the time series and checkpoint snapshots as CSV.
package main

import (
	"flag"
	"log/slog"
	"os"
	"sort"

	"github.com/pthm-cable/colony/config"
	"github.com/pthm-cable/colony/sim"
	"github.com/pthm-cable/colony/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = article preset)")
	n0 := flag.Int("n0", 3, "Neighbor-count threshold above which division is blocked")
	prob := flag.Float64("prob", 0.5, "Base division probability")
	seed := flag.Int64("seed", 0, "RNG seed override (0 = keep preset seed)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs (empty = no files)")

	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	params, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *seed != 0 {
		params.Seed = *seed
	}

	out, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to open output directory", "error", err)
		os.Exit(1)
	}
	defer out.Close()

	slog.Info("starting run",
		"rows", params.Grid.Rows,
		"cols", params.Grid.Cols,
		"iterations", params.Run.Iterations,
		"n0", *n0,
		"prob", *prob,
		"seed", params.Seed,
	)

	res, err := sim.Run(params, *n0, *prob)
	if err != nil {
		completed := 0
		if res != nil {
			completed = len(res.Series)
		}
		slog.Error("run failed", "error", err, "steps_completed", completed)
		os.Exit(1)
	}

	if err := writeOutputs(out, params, res); err != nil {
		slog.Error("failed to write outputs", "error", err)
		os.Exit(1)
	}

	summary := telemetry.Summarize(res.Series)
	slog.Info("run complete",
		"final_alive", summary.FinalAlive,
		"peak_alive", summary.PeakAlive,
		"growth_rate", summary.GrowthRate,
		"final_substrate", summary.FinalSubstrate,
		"snapshots", len(res.Snapshots),
	)
}

func writeOutputs(out *telemetry.OutputManager, params *config.Params, res *sim.Result) error {
	if out == nil {
		return nil
	}

	if err := out.WriteParams(params); err != nil {
		return err
	}
	for _, s := range res.Series {
		if err := out.WriteStep(s); err != nil {
			return err
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
			return err
		}
	}
	return nil
}
