package particle

import (
	"fmt"
	"math"

	"github.com/san-kum/mpmsim/internal/material"
	"github.com/san-kum/mpmsim/internal/tensor"
	"gonum.org/v1/gonum/spatial/r3"
)

// Store owns the particle array of a domain.
type Store struct {
	items []Particle
}

func NewStore() *Store { return &Store{} }

func (s *Store) Len() int { return len(s.items) }

// At returns a pointer into the store; it is invalidated by Add.
func (s *Store) At(i int) *Particle { return &s.items[i] }

// All exposes the backing slice for phase passes.
func (s *Store) All() []Particle { return s.items }

// Add appends particles after validating them.
func (s *Store) Add(ps ...Particle) error {
	for i := range ps {
		if err := ps[i].Validate(); err != nil {
			return fmt.Errorf("particle %d: %w", len(s.items)+i, err)
		}
	}
	s.items = append(s.items, ps...)
	return nil
}

// Box seeds a regular lattice of particles filling the box [origin,
// origin+extent). ratio is the particle spacing in cell units, so 0.25
// puts four particles on each cell axis; mass is the mass of one particle.
func Box(tag int, origin, extent, cell r3.Vec, ratio, mass float64) ([]Particle, error) {
	if !(ratio > 0) {
		return nil, fmt.Errorf("particle: spacing ratio must be positive, got %g", ratio)
	}
	if !(mass > 0) {
		return nil, fmt.Errorf("particle: mass must be positive, got %g", mass)
	}
	h := r3.Vec{X: ratio * cell.X, Y: ratio * cell.Y, Z: ratio * cell.Z}
	if !(h.X > 0 && h.Y > 0 && h.Z > 0) {
		return nil, fmt.Errorf("particle: cell size must be positive, got %v", cell)
	}
	nx := int(math.Round(extent.X / h.X))
	ny := int(math.Round(extent.Y / h.Y))
	nz := int(math.Round(extent.Z / h.Z))
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("particle: box %v holds no particles at spacing %v", extent, h)
	}

	vol := h.X * h.Y * h.Z
	out := make([]Particle, 0, nx*ny*nz)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				x := r3.Vec{
					X: origin.X + (float64(i)+0.5)*h.X,
					Y: origin.Y + (float64(j)+0.5)*h.Y,
					Z: origin.Z + (float64(k)+0.5)*h.Z,
				}
				out = append(out, New(tag, x, mass, vol))
			}
		}
	}
	return out, nil
}

// StressFunc computes an initial stress from a particle's position.
type StressFunc func(p *Particle) tensor.Mat3

// Assignment is the batch configuration applied to a set of particles.
type Assignment struct {
	Model   material.DruckerPrager
	Body    r3.Vec
	Damping float64
	Stress  StressFunc // optional
}

// Assign applies a to every particle with the given tag and returns how
// many were touched. tag < 0 selects all particles.
func (s *Store) Assign(tag int, a Assignment) (int, error) {
	if a.Damping < 0 {
		return 0, fmt.Errorf("particle: damping must be non-negative, got %g", a.Damping)
	}
	if err := a.Model.Validate(); err != nil {
		return 0, fmt.Errorf("particle: %w", err)
	}
	n := 0
	for i := range s.items {
		p := &s.items[i]
		if tag >= 0 && p.Tag != tag {
			continue
		}
		p.Model = a.Model
		p.Body = a.Body
		p.Damping = a.Damping
		if a.Stress != nil {
			p.Stress = a.Stress(p).Sym()
		}
		n++
	}
	return n, nil
}

// Geostatic returns the at-rest stress of a layer whose free surface is at
// height surface on the z axis: σzz = (surface - z)·gz·ρ and
// σxx = σyy = K0·σzz. gz is the signed vertical body force (negative for
// gravity pointing down), so stresses below the surface are compressive.
// Points above the surface are unstressed.
func Geostatic(surface, gz, density, k0 float64) StressFunc {
	return func(p *Particle) tensor.Mat3 {
		depth := surface - p.X.Z
		if depth <= 0 {
			return tensor.Mat3{}
		}
		sv := depth * gz * density
		return tensor.Diag(k0*sv, k0*sv, sv)
	}
}
