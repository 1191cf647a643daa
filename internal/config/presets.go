package config

import "sort"

// Physical soil of the presets: a dry sand with a 45° friction angle.
var sand = MaterialConfig{
	Young:    7.5e7,
	Poisson:  0.3,
	Cohesion: 0,
	Friction: 45,
	Dilation: 0,
}

const sandDensity = 2039.435

// soilScales maps a 0.5 m cell, a 0.1 ms step and 0.1 kg onto solver units.
var soilScales = Scales{Length: 0.5, Time: 1e-4, Mass: 0.1}

var gravity = [3]float64{0, 0, -9.8}

// Presets builds fresh copies of the named scenarios.
var Presets = map[string]func() *Config{
	"column":   column,
	"collapse": collapse,
	"footing":  footing,
}

// column settles a confined soil column under gravity between slip walls.
func column() *Config {
	return &Config{
		Name:   "column",
		Grid:   GridConfig{Nodes: [3]int{11, 11, 24}, Cell: [3]float64{1, 1, 1}, Kernel: "quadratic"},
		Time:   TimeConfig{Dt: 1, Steps: 5000, SaveEvery: 250},
		Solver: SolverConfig{Damping: 0.3},
		Scales: soilScales,
		Regions: []Region{{
			Tag: 1, Origin: [3]float64{3, 3, 3}, Extent: [3]float64{4, 4, 16}, Ratio: 0.5,
			Density: sandDensity, Material: sand, Gravity: gravity,
			Stress: StressConfig{Mode: StressGeostatic},
		}},
		Boundaries: []BoundaryConfig{
			{Lo: [3]int{0, 0, 0}, Hi: [3]int{3, 10, 23}, Kind: "slipping", Normal: [3]float64{-1, 0, 0}},
			{Lo: [3]int{7, 0, 0}, Hi: [3]int{10, 10, 23}, Kind: "slipping", Normal: [3]float64{1, 0, 0}},
			{Lo: [3]int{0, 0, 0}, Hi: [3]int{10, 3, 23}, Kind: "slipping", Normal: [3]float64{0, -1, 0}},
			{Lo: [3]int{0, 7, 0}, Hi: [3]int{10, 10, 23}, Kind: "slipping", Normal: [3]float64{0, 1, 0}},
			{Lo: [3]int{0, 0, 0}, Hi: [3]int{10, 10, 3}, Kind: "non-slipping"},
		},
		Output: OutputConfig{Dir: DefaultOutputDir, Snapshots: true},
	}
}

// collapse releases a soil block against a fixed back wall onto a
// frictional floor, in a slice bounded by slip walls.
func collapse() *Config {
	return &Config{
		Name:   "collapse",
		Grid:   GridConfig{Nodes: [3]int{64, 12, 20}, Cell: [3]float64{1, 1, 1}, Kernel: "cubic"},
		Time:   TimeConfig{Dt: 1, Steps: 20000, SaveEvery: 200},
		Scales: soilScales,
		Regions: []Region{{
			Tag: 1, Origin: [3]float64{6, 4, 4}, Extent: [3]float64{20, 4, 10}, Ratio: 0.25,
			Density: sandDensity, Material: sand, Gravity: gravity,
			Stress: StressConfig{Mode: StressGeostatic},
		}},
		Boundaries: []BoundaryConfig{
			{Lo: [3]int{0, 0, 3}, Hi: [3]int{63, 11, 4}, Kind: "frictional", Normal: [3]float64{0, 0, -1}, Mu: 1},
			{Lo: [3]int{0, 3, 0}, Hi: [3]int{63, 4, 19}, Kind: "slipping", Normal: [3]float64{0, -1, 0}},
			{Lo: [3]int{0, 8, 0}, Hi: [3]int{63, 9, 19}, Kind: "slipping", Normal: [3]float64{0, 1, 0}},
			{Lo: [3]int{5, 0, 0}, Hi: [3]int{6, 11, 19}, Kind: "non-slipping"},
		},
		Output: OutputConfig{Dir: DefaultOutputDir, Snapshots: true},
	}
}

// footing drops a stiff block onto a soil layer resting on a fixed base.
func footing() *Config {
	block := MaterialConfig{Young: 1e9, Poisson: 0.2, Cohesion: 1e7, Friction: 30, Dilation: 0}
	return &Config{
		Name:   "footing",
		Grid:   GridConfig{Nodes: [3]int{40, 12, 24}, Cell: [3]float64{1, 1, 1}, Kernel: "cubic"},
		Time:   TimeConfig{Dt: 1, Steps: 10000, SaveEvery: 250},
		Solver: SolverConfig{Damping: 0.05},
		Scales: soilScales,
		Regions: []Region{
			{
				Tag: 1, Origin: [3]float64{4, 4, 4}, Extent: [3]float64{32, 4, 10}, Ratio: 0.5,
				Density: sandDensity, Material: sand, Gravity: gravity,
				Stress: StressConfig{Mode: StressGeostatic},
			},
			{
				Tag: 2, Origin: [3]float64{16, 4, 14}, Extent: [3]float64{8, 4, 2}, Ratio: 0.5,
				Density: 2400, Material: block, Gravity: gravity,
				Velocity: [3]float64{0, 0, -0.5},
			},
		},
		Boundaries: []BoundaryConfig{
			{Lo: [3]int{0, 0, 0}, Hi: [3]int{39, 11, 4}, Kind: "non-slipping"},
			{Lo: [3]int{0, 0, 5}, Hi: [3]int{4, 11, 23}, Kind: "slipping", Normal: [3]float64{-1, 0, 0}},
			{Lo: [3]int{36, 0, 5}, Hi: [3]int{39, 11, 23}, Kind: "slipping", Normal: [3]float64{1, 0, 0}},
			{Lo: [3]int{5, 0, 5}, Hi: [3]int{35, 4, 23}, Kind: "slipping", Normal: [3]float64{0, -1, 0}},
			{Lo: [3]int{5, 8, 5}, Hi: [3]int{35, 11, 23}, Kind: "slipping", Normal: [3]float64{0, 1, 0}},
		},
		Output: OutputConfig{Dir: DefaultOutputDir, Snapshots: true},
	}
}

// GetPreset returns a new copy of the named preset, or nil.
func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
