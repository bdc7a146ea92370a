// Package config provides parameter loading and validation for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Params holds all simulation parameters. A validated Params value is
// immutable for the lifetime of a run; the engine and driver only read it.
type Params struct {
	Grid        GridParams       `yaml:"grid"`
	Run         RunParams        `yaml:"run"`
	Substrate   SubstrateParams  `yaml:"substrate"`
	Inoculum    InoculumParams   `yaml:"inoculum"`
	Experiments ExperimentParams `yaml:"experiments"`
	Seed        int64            `yaml:"seed"`
}

// GridParams holds the lattice extent. The grid is toroidal: edges wrap.
type GridParams struct {
	Rows int `yaml:"rows"`
	Cols int `yaml:"cols"`
}

// RunParams holds the simulation horizon and snapshot schedule.
type RunParams struct {
	Iterations  int   `yaml:"iterations"`
	Checkpoints []int `yaml:"checkpoints"` // step indices at which a full snapshot is kept
}

// SubstrateParams holds the substrate field parameters, in g/L where
// applicable.
type SubstrateParams struct {
	Initial         float64 `yaml:"initial"`          // uniform concentration at t=0
	Min             float64 `yaml:"min"`              // concentration below which division is scaled down
	Diffusion       float64 `yaml:"diffusion"`        // neighbor-exchange coefficient per step
	ConsumeDividing float64 `yaml:"consume_dividing"` // consumption per dividing cell per step
	ConsumeGrowing  float64 `yaml:"consume_growing"`  // consumption per growing cell per step
}

// InoculumParams maps the initial biomass concentration to an initial
// occupancy fraction of the lattice.
type InoculumParams struct {
	Biomass   float64 `yaml:"biomass"`   // x(0), g/L
	Reference float64 `yaml:"reference"` // concentration that corresponds to full occupancy
}

// ExperimentParams holds the sweep vectors used by cmd/sweep. They are not
// read by the engine itself; a single run takes its n0 and probability as
// arguments.
type ExperimentParams struct {
	Probabilities []float64 `yaml:"probabilities"`
	N0Values      []int     `yaml:"n0_values"`
}

// Load reads parameters from a YAML file, merging over the embedded defaults.
// If path is empty, only the defaults are used.
func Load(path string) (*Params, error) {
	p := &Params{}
	if err := yaml.Unmarshal(defaultsYAML, p); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into the same struct - only overwrites fields present
		// in the file.
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Default returns the embedded article preset.
func Default() *Params {
	p, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return p
}

// Validate checks the parameter invariants. It returns a descriptive error
// for the first violation found.
func (p *Params) Validate() error {
	if p.Grid.Rows <= 0 || p.Grid.Cols <= 0 {
		return fmt.Errorf("grid extent must be positive, got %dx%d", p.Grid.Rows, p.Grid.Cols)
	}
	if p.Run.Iterations < 0 {
		return fmt.Errorf("iterations must be >= 0, got %d", p.Run.Iterations)
	}
	for _, c := range p.Run.Checkpoints {
		if c < 0 || c > p.Run.Iterations {
			return fmt.Errorf("checkpoint %d outside [0, %d]", c, p.Run.Iterations)
		}
	}
	if p.Substrate.Initial < 0 {
		return fmt.Errorf("initial substrate must be >= 0, got %g", p.Substrate.Initial)
	}
	if p.Substrate.ConsumeDividing < 0 || p.Substrate.ConsumeGrowing < 0 {
		return fmt.Errorf("consumption rates must be >= 0, got %g and %g",
			p.Substrate.ConsumeDividing, p.Substrate.ConsumeGrowing)
	}
	if p.Inoculum.Biomass < 0 {
		return fmt.Errorf("inoculum biomass must be >= 0, got %g", p.Inoculum.Biomass)
	}
	for _, prob := range p.Experiments.Probabilities {
		if prob < 0 || prob > 1 {
			return fmt.Errorf("probability %g outside [0, 1]", prob)
		}
	}
	for _, n0 := range p.Experiments.N0Values {
		if n0 < 0 {
			return fmt.Errorf("n0 value must be >= 0, got %d", n0)
		}
	}
	return nil
}

// OccupancyFraction returns the initial occupancy fraction of the lattice,
// derived from the inoculum biomass relative to the reference concentration
// and clamped to [0, 1].
func (p *Params) OccupancyFraction() float64 {
	ref := p.Inoculum.Reference
	if ref < 1e-6 {
		ref = 1e-6
	}
	frac := p.Inoculum.Biomass / ref
	if frac < 0 {
		return 0
	}
	if frac > 1 {
		return 1
	}
	return frac
}

// WriteYAML writes the parameters to a YAML file.
func (p *Params) WriteYAML(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing params file: %w", err)
	}
	return nil
}
