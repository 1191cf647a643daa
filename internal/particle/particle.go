// Package particle holds the persistent material points of a run and the
// setup passes that create and configure them: box seeding, material
// assignment and initial (geostatic) stress.
package particle

import (
	"fmt"
	"math"

	"github.com/san-kum/mpmsim/internal/material"
	"github.com/san-kum/mpmsim/internal/tensor"
	"gonum.org/v1/gonum/spatial/r3"
)

// Particle is one material point. It is the only state that survives
// between steps.
type Particle struct {
	Tag int

	X r3.Vec
	V r3.Vec

	Mass    float64
	Vol0    float64
	Vol     float64
	Density float64

	F             tensor.Mat3 // deformation gradient
	Stress        tensor.Mat3 // tension positive
	PlasticStrain float64     // accumulated norm of plastic strain increments
	Yielding      bool        // plastic flow in the last update

	Model   material.DruckerPrager
	Body    r3.Vec  // body force per unit mass
	Damping float64 // local damping coefficient
}

// New returns an unstressed particle at rest.
func New(tag int, x r3.Vec, mass, vol float64) Particle {
	return Particle{
		Tag:     tag,
		X:       x,
		Mass:    mass,
		Vol0:    vol,
		Vol:     vol,
		Density: mass / vol,
		F:       tensor.Identity(),
	}
}

// Momentum returns m·v.
func (p *Particle) Momentum() r3.Vec { return r3.Scale(p.Mass, p.V) }

// KineticEnergy returns m|v|²/2.
func (p *Particle) KineticEnergy() float64 { return 0.5 * p.Mass * r3.Norm2(p.V) }

// Validate checks the invariants a particle must satisfy before a run.
func (p *Particle) Validate() error {
	switch {
	case !(p.Mass > 0):
		return fmt.Errorf("particle: mass must be positive, got %g", p.Mass)
	case !(p.Vol > 0) || !(p.Vol0 > 0):
		return fmt.Errorf("particle: volume must be positive, got %g", p.Vol)
	case !(p.F.Det() > 0):
		return fmt.Errorf("particle: deformation gradient must have positive determinant, got %g", p.F.Det())
	case !p.Stress.Symmetric(1e-12 * (1 + p.Stress.Norm())):
		return fmt.Errorf("particle: stress must be symmetric")
	case !p.Stress.IsFinite() || !tensor.VecFinite(p.X) || !tensor.VecFinite(p.V):
		return fmt.Errorf("particle: non-finite state")
	case math.IsNaN(p.Damping) || p.Damping < 0:
		return fmt.Errorf("particle: damping must be non-negative, got %g", p.Damping)
	}
	return nil
}
