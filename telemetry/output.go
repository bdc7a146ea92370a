package telemetry

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/colony/automaton"
	"github.com/pthm-cable/colony/config"
)

// OutputManager writes run output into a directory: the step series as CSV,
// checkpoint snapshots as plain numeric grids, and the effective parameters
// as YAML. A nil manager discards everything, so callers can thread one
// through unconditionally.
type OutputManager struct {
	dir        string
	seriesFile *os.File

	seriesHeaderWritten bool
}

// NewOutputManager creates the output directory and opens series.csv.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "series.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating series.csv: %w", err)
	}

	return &OutputManager{dir: dir, seriesFile: f}, nil
}

// WriteParams saves the effective parameters as YAML.
func (om *OutputManager) WriteParams(p *config.Params) error {
	if om == nil {
		return nil
	}
	return p.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteStep appends one step record to series.csv. The header is written on
// the first call only.
func (om *OutputManager) WriteStep(s StepStats) error {
	if om == nil {
		return nil
	}

	records := []StepStats{s}

	if !om.seriesHeaderWritten {
		if err := gocsv.Marshal(records, om.seriesFile); err != nil {
			return fmt.Errorf("writing series: %w", err)
		}
		om.seriesHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.seriesFile); err != nil {
			return fmt.Errorf("writing series: %w", err)
		}
	}

	return nil
}

// WriteSnapshot saves a checkpoint grid and substrate field as
// snapshot_<step>_grid.csv (integer-coded states, one row per lattice row)
// and snapshot_<step>_substrate.csv.
func (om *OutputManager) WriteSnapshot(step int, g *automaton.Grid, substrate []float64) error {
	if om == nil {
		return nil
	}

	gridPath := filepath.Join(om.dir, fmt.Sprintf("snapshot_%d_grid.csv", step))
	if err := writeGridCSV(gridPath, g); err != nil {
		return err
	}

	subPath := filepath.Join(om.dir, fmt.Sprintf("snapshot_%d_substrate.csv", step))
	return writeFieldCSV(subPath, substrate, g.Rows, g.Cols)
}

func writeGridCSV(path string, g *automaton.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	row := make([]string, g.Cols)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			row[c] = strconv.Itoa(int(g.At(r, c)))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
		}
	}
	w.Flush()
	return w.Error()
}

func writeFieldCSV(path string, field []float64, rows, cols int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	row := make([]string, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			row[c] = strconv.FormatFloat(field[r*cols+c], 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
		}
	}
	w.Flush()
	return w.Error()
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes the series file.
func (om *OutputManager) Close() error {
	if om == nil || om.seriesFile == nil {
		return nil
	}
	return om.seriesFile.Close()
}
