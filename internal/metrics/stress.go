package metrics

import (
	"fmt"
	"math"

	"github.com/san-kum/mpmsim/internal/material"
	"github.com/san-kum/mpmsim/internal/particle"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MeanStress is the volume-weighted mean of one diagonal stress component.
type MeanStress struct {
	name   string
	axis   int
	vals   []float64
	weight []float64
	value  float64
}

// NewMeanStress tracks σ[axis][axis]; axis 2 is the vertical.
func NewMeanStress(axis int) *MeanStress {
	return &MeanStress{name: fmt.Sprintf("mean_s%c%c", "xyz"[axis], "xyz"[axis]), axis: axis}
}

func (m *MeanStress) Name() string { return m.name }

func (m *MeanStress) Observe(ps []particle.Particle) {
	if len(ps) == 0 {
		m.value = 0
		return
	}
	m.vals, m.weight = m.vals[:0], m.weight[:0]
	for i := range ps {
		m.vals = append(m.vals, ps[i].Stress[m.axis][m.axis])
		m.weight = append(m.weight, ps[i].Vol)
	}
	m.value = stat.Mean(m.vals, m.weight)
}

func (m *MeanStress) Value() float64 { return m.value }
func (m *MeanStress) Reset()         { m.value = 0 }

// MobilizedFriction is the volume-weighted mean friction angle, in degrees,
// mobilized by the particle stresses. Comparing it with the material
// friction angle shows how close the body is to failure.
type MobilizedFriction struct {
	vals   []float64
	weight []float64
	value  float64
}

func NewMobilizedFriction() *MobilizedFriction { return &MobilizedFriction{} }

func (m *MobilizedFriction) Name() string { return "mobilized_friction" }

func (m *MobilizedFriction) Observe(ps []particle.Particle) {
	if len(ps) == 0 {
		m.value = 0
		return
	}
	m.vals, m.weight = m.vals[:0], m.weight[:0]
	for i := range ps {
		m.vals = append(m.vals, material.Mobilized(ps[i].Stress)*180/math.Pi)
		m.weight = append(m.weight, ps[i].Vol)
	}
	m.value = stat.Mean(m.vals, m.weight)
}

func (m *MobilizedFriction) Value() float64 { return m.value }
func (m *MobilizedFriction) Reset()         { m.value = 0 }

// GeostaticError is the relative L2 distance between the particle vertical
// stress and the overburden of a layer with its free surface at Surface:
//
//	|σzz - σref| / |σref|,  σref = (Surface - z)·Gz·Density
//
// Particles above the surface are skipped.
type GeostaticError struct {
	Surface float64
	Gz      float64
	Density float64

	got, want []float64
	value     float64
}

func NewGeostaticError(surface, gz, density float64) *GeostaticError {
	return &GeostaticError{Surface: surface, Gz: gz, Density: density}
}

func (g *GeostaticError) Name() string { return "geostatic_error" }

func (g *GeostaticError) Observe(ps []particle.Particle) {
	g.got, g.want = g.got[:0], g.want[:0]
	for i := range ps {
		depth := g.Surface - ps[i].X.Z
		if depth <= 0 {
			continue
		}
		g.got = append(g.got, ps[i].Stress[2][2])
		g.want = append(g.want, depth*g.Gz*g.Density)
	}
	if len(g.want) == 0 {
		g.value = 0
		return
	}
	ref := floats.Norm(g.want, 2)
	if ref == 0 {
		g.value = floats.Norm(g.got, 2)
		return
	}
	g.value = floats.Distance(g.got, g.want, 2) / ref
}

func (g *GeostaticError) Value() float64 { return g.value }
func (g *GeostaticError) Reset()         { g.value = 0 }
