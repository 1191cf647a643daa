package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/mpmsim/internal/boundary"
	"github.com/san-kum/mpmsim/internal/material"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Grid.Kernel != "cubic" {
		t.Errorf("expected cubic kernel, got %s", cfg.Grid.Kernel)
	}
	if cfg.Time.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	for _, name := range ListPresets() {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Fatalf("preset %s missing", name)
		}
		if cfg.Name != name {
			t.Errorf("preset %s has name %s", name, cfg.Name)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", name, err)
		}
	}
}

func TestGetPreset_Fresh(t *testing.T) {
	a := GetPreset("column")
	a.Regions[0].Density = 1
	b := GetPreset("column")
	if b.Regions[0].Density == 1 {
		t.Error("presets should not share state")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	want := []string{"collapse", "column", "footing"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collapse.yaml")
	orig := GetPreset("collapse")
	if err := Save(path, orig); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Grid != orig.Grid || got.Time != orig.Time || got.Scales != orig.Scales {
		t.Errorf("header mismatch: %+v vs %+v", got, orig)
	}
	if len(got.Regions) != 1 || got.Regions[0].Material != orig.Regions[0].Material {
		t.Errorf("region mismatch: %+v", got.Regions)
	}
	if len(got.Boundaries) != len(orig.Boundaries) || got.Boundaries[0].Mu != 1 {
		t.Errorf("boundary mismatch: %+v", got.Boundaries)
	}
}

func TestLoad_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := `
name: slab
grid:
  nodes: [8, 8, 8]
regions:
  - tag: 1
    origin: [3, 3, 3]
    extent: [2, 2, 2]
    density: 1
    material: {young: 1, poisson: 0.3, friction: 30}
    stress:
      mode: geostatic
      k0: 0.5
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Grid.Kernel != DefaultKernel || cfg.Time.Steps != DefaultSteps {
		t.Errorf("defaults not kept: %+v", cfg)
	}
	r := cfg.Regions[0]
	if r.Ratio != DefaultRatio {
		t.Errorf("expected default ratio, got %g", r.Ratio)
	}
	if r.Stress.K0 == nil || *r.Stress.K0 != 0.5 || r.Stress.Surface != nil {
		t.Errorf("unexpected stress config %+v", r.Stress)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestScales(t *testing.T) {
	s := soilScales
	const tol = 1e-12

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"gravity", s.Acceleration(-9.8), -9.8 * 1e-8 / 0.5},
		{"young", s.Stress(7.5e7), 7.5e7 * 0.5 * 1e-8 / 0.1},
		{"density", s.Density(2039.435), 2039.435 * 0.125 / 0.1},
		{"velocity", s.Velocity(2), 2 * 1e-4 / 0.5},
		{"stress round trip", s.PhysicalStress(s.Stress(1234)), 1234},
		{"time", s.PhysicalTime(100), 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > tol*math.Max(1, math.Abs(tt.want)) {
				t.Errorf("expected %g, got %g", tt.want, tt.got)
			}
		})
	}
}

func TestMaterialParams(t *testing.T) {
	p := sand.Params(Scales{Length: 1, Time: 1, Mass: 1})
	if math.Abs(p.Friction-math.Pi/4) > 1e-15 {
		t.Errorf("friction should be in radians, got %g", p.Friction)
	}
	if p.Young != sand.Young {
		t.Errorf("unit scales should not change young, got %g", p.Young)
	}
}

func TestBoundaryCondition(t *testing.T) {
	c, err := BoundaryConfig{Kind: "frictional", Normal: [3]float64{0, 0, -2}, Mu: 0.5}.Condition()
	if err != nil {
		t.Fatal(err)
	}
	if c.Kind != boundary.Frictional || c.Normal.Z != -1 || c.Mu != 0.5 {
		t.Errorf("unexpected condition %+v", c)
	}

	if _, err := (BoundaryConfig{Kind: "slipping"}).Condition(); !errors.Is(err, boundary.ErrInvalidBoundary) {
		t.Errorf("expected ErrInvalidBoundary for zero normal, got %v", err)
	}
	if _, err := (BoundaryConfig{Kind: "sticky"}).Condition(); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestValidate(t *testing.T) {
	region := func() Region {
		return Region{
			Tag: 1, Extent: [3]float64{1, 1, 1}, Ratio: 0.5, Density: 1,
			Material: MaterialConfig{Young: 1, Poisson: 0.3, Friction: 30},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		target error
	}{
		{"kernel", func(c *Config) { c.Grid.Kernel = "quartic" }, ErrInvalidConfig},
		{"nodes", func(c *Config) { c.Grid.Nodes[1] = 1 }, ErrInvalidConfig},
		{"cell", func(c *Config) { c.Grid.Cell[2] = 0 }, ErrInvalidConfig},
		{"dt", func(c *Config) { c.Time.Dt = 0 }, ErrInvalidConfig},
		{"steps", func(c *Config) { c.Time.Steps = -1 }, ErrInvalidConfig},
		{"damping", func(c *Config) { c.Solver.Damping = 1 }, ErrInvalidConfig},
		{"workers", func(c *Config) { c.Solver.Workers = -2 }, ErrInvalidConfig},
		{"scales", func(c *Config) { c.Scales.Mass = 0 }, ErrInvalidConfig},
		{"ratio", func(c *Config) { r := region(); r.Ratio = 0; c.Regions = []Region{r} }, ErrInvalidConfig},
		{"density", func(c *Config) { r := region(); r.Density = -1; c.Regions = []Region{r} }, ErrInvalidConfig},
		{"extent", func(c *Config) { r := region(); r.Extent[0] = 0; c.Regions = []Region{r} }, ErrInvalidConfig},
		{"stress mode", func(c *Config) { r := region(); r.Stress.Mode = "hydrostatic"; c.Regions = []Region{r} }, ErrInvalidConfig},
		{"material", func(c *Config) { r := region(); r.Material.Poisson = 0.5; c.Regions = []Region{r} }, material.ErrInvalidMaterial},
		{"dilation", func(c *Config) { r := region(); r.Material.Dilation = 40; c.Regions = []Region{r} }, material.ErrInvalidMaterial},
		{"boundary", func(c *Config) { c.Boundaries = []BoundaryConfig{{Kind: "frictional", Mu: 1}} }, boundary.ErrInvalidBoundary},
		{"boundary outside grid", func(c *Config) {
			c.Boundaries = []BoundaryConfig{{Lo: [3]int{20, 20, 20}, Hi: [3]int{30, 30, 30}, Kind: "non-slipping"}}
		}, boundary.ErrInvalidBoundary},
		{"boundary past far face", func(c *Config) {
			c.Boundaries = []BoundaryConfig{{Hi: [3]int{DefaultNodes, 0, 0}, Kind: "non-slipping"}}
		}, boundary.ErrInvalidBoundary},
		{"boundary inverted", func(c *Config) {
			c.Boundaries = []BoundaryConfig{{Lo: [3]int{0, 0, 3}, Hi: [3]int{1, 1, 2}, Kind: "non-slipping"}}
		}, boundary.ErrInvalidBoundary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Regions = []Region{region()}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid region rejected: %v", err)
	}
}

func TestClone(t *testing.T) {
	orig := GetPreset("footing")
	k0 := 0.4
	orig.Regions[0].Stress.K0 = &k0

	c := orig.Clone()
	c.Regions[0].Density = 1
	*c.Regions[0].Stress.K0 = 0.9
	c.Boundaries[0].Kind = "free"
	c.Grid.Nodes[0] = 3

	if orig.Regions[0].Density == 1 || *orig.Regions[0].Stress.K0 != 0.4 {
		t.Error("clone shares region state")
	}
	if orig.Boundaries[0].Kind == "free" || orig.Grid.Nodes[0] == 3 {
		t.Error("clone shares boundary or grid state")
	}
}
