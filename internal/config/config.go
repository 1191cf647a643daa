// Package config reads and writes scenario files: the grid, the time
// stepping, the particle regions with their material, and the grid
// boundary conditions of one simulation.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/san-kum/mpmsim/internal/boundary"
	"github.com/san-kum/mpmsim/internal/material"
	"github.com/san-kum/mpmsim/internal/shape"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultNodes     = 16
	DefaultCell      = 1.0
	DefaultKernel    = "cubic"
	DefaultDt        = 1.0
	DefaultSteps     = 1000
	DefaultSaveEvery = 100
	DefaultRatio     = 0.5
	DefaultOutputDir = "runs"
)

// Initial stress modes of a region.
const (
	StressNone      = "none"
	StressGeostatic = "geostatic"
)

var ErrInvalidConfig = errors.New("config: invalid scenario")

// Config is one scenario. Positions, extents and cell sizes are in
// solver units (grid coordinates). Material and body-force values are
// physical and are converted through Scales.
type Config struct {
	Name       string           `yaml:"name"`
	Grid       GridConfig       `yaml:"grid"`
	Time       TimeConfig       `yaml:"time"`
	Solver     SolverConfig     `yaml:"solver"`
	Scales     Scales           `yaml:"scales"`
	Regions    []Region         `yaml:"regions"`
	Boundaries []BoundaryConfig `yaml:"boundaries"`
	Output     OutputConfig     `yaml:"output"`
}

type GridConfig struct {
	Nodes  [3]int     `yaml:"nodes"`
	Cell   [3]float64 `yaml:"cell"`
	Kernel string     `yaml:"kernel"`
}

type TimeConfig struct {
	Dt        float64 `yaml:"dt"`
	Steps     int     `yaml:"steps"`
	SaveEvery int     `yaml:"save_every"`
}

type SolverConfig struct {
	Damping float64 `yaml:"damping"`
	Workers int     `yaml:"workers"`
}

type OutputConfig struct {
	Dir       string `yaml:"dir"`
	Snapshots bool   `yaml:"snapshots"`
}

// Scales are the physical size of one solver unit of length, time and
// mass. A scenario written directly in solver units uses 1 for all three.
type Scales struct {
	Length float64 `yaml:"length"`
	Time   float64 `yaml:"time"`
	Mass   float64 `yaml:"mass"`
}

func (s Scales) Validate() error {
	for _, v := range []float64{s.Length, s.Time, s.Mass} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: scales must be finite and positive, got %+v", ErrInvalidConfig, s)
		}
	}
	return nil
}

// Density converts kg/m³ to solver units.
func (s Scales) Density(rho float64) float64 { return rho * s.Length * s.Length * s.Length / s.Mass }

// Stress converts Pa to solver units. Moduli and cohesion scale the same way.
func (s Scales) Stress(p float64) float64 { return p * s.Length * s.Time * s.Time / s.Mass }

// Acceleration converts m/s² to solver units.
func (s Scales) Acceleration(a float64) float64 { return a * s.Time * s.Time / s.Length }

// Velocity converts m/s to solver units.
func (s Scales) Velocity(v float64) float64 { return v * s.Time / s.Length }

// PhysicalStress is the inverse of Stress.
func (s Scales) PhysicalStress(p float64) float64 { return p * s.Mass / (s.Length * s.Time * s.Time) }

// PhysicalTime converts solver time to seconds.
func (s Scales) PhysicalTime(t float64) float64 { return t * s.Time }

// Region is a box of particles sharing one material.
type Region struct {
	Tag      int            `yaml:"tag"`
	Origin   [3]float64     `yaml:"origin"`
	Extent   [3]float64     `yaml:"extent"`
	Ratio    float64        `yaml:"ratio"` // particle spacing in cells
	Density  float64        `yaml:"density"`
	Material MaterialConfig `yaml:"material"`
	Gravity  [3]float64     `yaml:"gravity"`
	Velocity [3]float64     `yaml:"velocity"`
	Damping  float64        `yaml:"damping"`
	Stress   StressConfig   `yaml:"stress"`
}

// MaterialConfig holds Drucker-Prager inputs in physical units. Angles are
// in degrees.
type MaterialConfig struct {
	Young    float64 `yaml:"young"`
	Poisson  float64 `yaml:"poisson"`
	Cohesion float64 `yaml:"cohesion"`
	Friction float64 `yaml:"friction"`
	Dilation float64 `yaml:"dilation"`
}

// Params converts m to solver units with radians.
func (m MaterialConfig) Params(s Scales) material.Params {
	return material.Params{
		Young:    s.Stress(m.Young),
		Poisson:  m.Poisson,
		Cohesion: s.Stress(m.Cohesion),
		Friction: m.Friction * math.Pi / 180,
		Dilation: m.Dilation * math.Pi / 180,
	}
}

// StressConfig selects the initial stress of a region. K0 defaults to
// ν/(1-ν) and Surface to the top of the region.
type StressConfig struct {
	Mode    string   `yaml:"mode"`
	K0      *float64 `yaml:"k0,omitempty"`
	Surface *float64 `yaml:"surface,omitempty"`
}

// BoundaryConfig applies one condition to the inclusive node box [Lo, Hi].
type BoundaryConfig struct {
	Lo     [3]int     `yaml:"lo"`
	Hi     [3]int     `yaml:"hi"`
	Kind   string     `yaml:"kind"`
	Normal [3]float64 `yaml:"normal,omitempty"`
	Mu     float64    `yaml:"mu,omitempty"`
}

// Condition parses the boundary kind and builds a normalised condition.
func (b BoundaryConfig) Condition() (boundary.Condition, error) {
	kind, err := boundary.ParseKind(b.Kind)
	if err != nil {
		return boundary.Condition{}, err
	}
	c := boundary.Condition{Kind: kind, Normal: Vec(b.Normal), Mu: b.Mu}
	return c.Normalize()
}

func DefaultConfig() *Config {
	return &Config{
		Name: "custom",
		Grid: GridConfig{
			Nodes:  [3]int{DefaultNodes, DefaultNodes, DefaultNodes},
			Cell:   [3]float64{DefaultCell, DefaultCell, DefaultCell},
			Kernel: DefaultKernel,
		},
		Time: TimeConfig{
			Dt:        DefaultDt,
			Steps:     DefaultSteps,
			SaveEvery: DefaultSaveEvery,
		},
		Scales: Scales{Length: 1, Time: 1, Mass: 1},
		Output: OutputConfig{Dir: DefaultOutputDir, Snapshots: true},
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Regions = make([]Region, len(c.Regions))
	for i, r := range c.Regions {
		if r.Stress.K0 != nil {
			k0 := *r.Stress.K0
			r.Stress.K0 = &k0
		}
		if r.Stress.Surface != nil {
			surface := *r.Stress.Surface
			r.Stress.Surface = &surface
		}
		out.Regions[i] = r
	}
	out.Boundaries = append([]BoundaryConfig(nil), c.Boundaries...)
	return &out
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	for i := range cfg.Regions {
		if cfg.Regions[i].Ratio == 0 {
			cfg.Regions[i].Ratio = DefaultRatio
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the scenario before any domain is built. Whether the
// particles stay inside the kernel range of the grid is left to the solver.
func (c *Config) Validate() error {
	if _, err := shape.ParseKind(c.Grid.Kernel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for a, n := range c.Grid.Nodes {
		if n < 2 {
			return fmt.Errorf("%w: grid needs at least 2 nodes on axis %d, got %d", ErrInvalidConfig, a, n)
		}
		if !(c.Grid.Cell[a] > 0) {
			return fmt.Errorf("%w: cell size must be positive on axis %d, got %g", ErrInvalidConfig, a, c.Grid.Cell[a])
		}
	}
	if !(c.Time.Dt > 0) {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidConfig, c.Time.Dt)
	}
	if c.Time.Steps < 0 || c.Time.SaveEvery < 0 {
		return fmt.Errorf("%w: steps and save_every must be non-negative", ErrInvalidConfig)
	}
	if !(c.Solver.Damping >= 0 && c.Solver.Damping < 1) {
		return fmt.Errorf("%w: damping must lie in [0, 1), got %g", ErrInvalidConfig, c.Solver.Damping)
	}
	if c.Solver.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalidConfig, c.Solver.Workers)
	}
	if err := c.Scales.Validate(); err != nil {
		return err
	}

	for i, r := range c.Regions {
		if err := r.validate(c.Scales); err != nil {
			return fmt.Errorf("region %d: %w", i, err)
		}
	}
	for i, b := range c.Boundaries {
		if _, err := b.Condition(); err != nil {
			return fmt.Errorf("boundary %d: %w", i, err)
		}
		for a, n := range c.Grid.Nodes {
			if b.Lo[a] < 0 || b.Hi[a] >= n || b.Lo[a] > b.Hi[a] {
				return fmt.Errorf("boundary %d: %w: box %v..%v does not fit grid %v", i, boundary.ErrInvalidBoundary, b.Lo, b.Hi, c.Grid.Nodes)
			}
		}
	}
	return nil
}

func (r Region) validate(s Scales) error {
	if r.Tag < 0 {
		return fmt.Errorf("%w: tag must be non-negative, got %d", ErrInvalidConfig, r.Tag)
	}
	if !(r.Ratio > 0) {
		return fmt.Errorf("%w: ratio must be positive, got %g", ErrInvalidConfig, r.Ratio)
	}
	if !(r.Density > 0) {
		return fmt.Errorf("%w: density must be positive, got %g", ErrInvalidConfig, r.Density)
	}
	for a := 0; a < 3; a++ {
		if !(r.Extent[a] > 0) {
			return fmt.Errorf("%w: extent must be positive, got %v", ErrInvalidConfig, r.Extent)
		}
	}
	if r.Damping < 0 {
		return fmt.Errorf("%w: damping must be non-negative, got %g", ErrInvalidConfig, r.Damping)
	}
	switch r.Stress.Mode {
	case "", StressNone, StressGeostatic:
	default:
		return fmt.Errorf("%w: unknown stress mode %q", ErrInvalidConfig, r.Stress.Mode)
	}
	return r.Material.Params(s).Validate()
}

// Vec converts a YAML triple to a vector.
func Vec(v [3]float64) r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }
