// Package material implements the per-particle constitutive update: linear
// elasticity with Drucker-Prager perfect plasticity matched to the
// Mohr-Coulomb compression cone, with non-associated flow through a
// dilation angle. Stresses are tension positive.
package material

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/mpmsim/internal/tensor"
)

// ErrInvalidMaterial is returned for out-of-range material parameters.
var ErrInvalidMaterial = errors.New("material: invalid parameters")

// Params are the physical inputs of the model. Angles are in radians.
type Params struct {
	Young    float64 `yaml:"young"`
	Poisson  float64 `yaml:"poisson"`
	Cohesion float64 `yaml:"cohesion"`
	Friction float64 `yaml:"friction"`
	Dilation float64 `yaml:"dilation"`
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	switch {
	case !(p.Young > 0):
		return fmt.Errorf("%w: young modulus must be positive, got %g", ErrInvalidMaterial, p.Young)
	case !(p.Poisson > -1 && p.Poisson < 0.5):
		return fmt.Errorf("%w: poisson ratio must lie in (-1, 0.5), got %g", ErrInvalidMaterial, p.Poisson)
	case p.Cohesion < 0:
		return fmt.Errorf("%w: cohesion must be non-negative, got %g", ErrInvalidMaterial, p.Cohesion)
	case !(p.Friction >= 0 && p.Friction < math.Pi/2):
		return fmt.Errorf("%w: friction angle must lie in [0, pi/2), got %g", ErrInvalidMaterial, p.Friction)
	case !(p.Dilation >= 0 && p.Dilation <= p.Friction):
		return fmt.Errorf("%w: dilation angle must lie in [0, friction], got %g", ErrInvalidMaterial, p.Dilation)
	}
	return nil
}

// DruckerPrager is an immutable material record with the derived constants
// of the yield cone
//
//	f = Alpha·I1 + sqrt(J2) - Kc
//	g = AlphaPsi·I1 + sqrt(J2)
type DruckerPrager struct {
	Params
	K        float64 // bulk modulus
	G        float64 // shear modulus
	Alpha    float64
	AlphaPsi float64
	Kc       float64
}

// NewDruckerPrager validates p and derives the cone constants.
func NewDruckerPrager(p Params) (DruckerPrager, error) {
	if err := p.Validate(); err != nil {
		return DruckerPrager{}, err
	}
	alpha, kc := coneMatch(p.Friction, p.Cohesion)
	alphaPsi, _ := coneMatch(p.Dilation, 0)
	return DruckerPrager{
		Params:   p,
		K:        p.Young / (3 * (1 - 2*p.Poisson)),
		G:        p.Young / (2 * (1 + p.Poisson)),
		Alpha:    alpha,
		AlphaPsi: alphaPsi,
		Kc:       kc,
	}, nil
}

// Validate reports whether m was built by NewDruckerPrager. The zero value,
// which a particle holds until a material is assigned, is rejected.
func (m DruckerPrager) Validate() error {
	if err := m.Params.Validate(); err != nil {
		return err
	}
	if !(m.K > 0 && m.G > 0) || math.IsInf(m.K, 0) || math.IsInf(m.G, 0) {
		return fmt.Errorf("%w: moduli not derived (K=%g, G=%g)", ErrInvalidMaterial, m.K, m.G)
	}
	return nil
}

// coneMatch returns the slope and intercept of the cone through the
// compression meridian of the Mohr-Coulomb pyramid.
func coneMatch(phi, c float64) (alpha, kc float64) {
	si, co := math.Sin(phi), math.Cos(phi)
	d := math.Sqrt(3) * (3 - si)
	return 2 * si / d, 6 * c * co / d
}

// K0 is the at-rest earth pressure coefficient for Poisson ratio nu.
func K0(nu float64) float64 { return nu / (1 - nu) }

// Invariants returns I1 = tr(σ) and sqrt(J2) of the deviator.
func Invariants(s tensor.Mat3) (i1, sqrtJ2 float64) {
	d := s.Dev()
	return s.Trace(), math.Sqrt(0.5 * d.Ddot(d))
}

// Yield evaluates f(σ); f <= 0 is admissible.
func (m DruckerPrager) Yield(s tensor.Mat3) float64 {
	i1, q := Invariants(s)
	return m.Alpha*i1 + q - m.Kc
}

// Tolerance is the yield value accepted as zero for a stress of the given
// magnitude.
func (m DruckerPrager) Tolerance(s tensor.Mat3) float64 {
	return 1e-10*math.Max(m.Kc, s.Norm()) + 1e-300
}

// Elastic returns the trial stress σ + K tr(dε) I + 2G dev(dε).
func (m DruckerPrager) Elastic(s, de tensor.Mat3) tensor.Mat3 {
	tr := de.Trace()
	out := s.Add(de.Dev().Scale(2 * m.G))
	out[0][0] += m.K * tr
	out[1][1] += m.K * tr
	out[2][2] += m.K * tr
	return out
}

// Result is the outcome of one stress update.
type Result struct {
	Stress  tensor.Mat3
	Plastic float64 // norm of the plastic strain increment
	Yielded bool
	Apex    bool
}

// Update integrates the stress over the strain increment de with an
// elastic predictor and a closed-form return to the cone or its apex.
func (m DruckerPrager) Update(s, de tensor.Mat3) Result {
	trial := m.Elastic(s, de)
	f := m.Yield(trial)
	if f <= m.Tolerance(trial) {
		return Result{Stress: trial}
	}

	i1, q := Invariants(trial)
	dev := trial.Dev()
	res := Result{Yielded: true}

	denom := m.G + 9*m.K*m.Alpha*m.AlphaPsi
	dl := f / denom
	qn := q - m.G*dl

	switch {
	case !(denom > 0) || math.IsNaN(dl) || math.IsInf(dl, 0):
		res.Stress, res.Apex = m.project(i1, q, dev)
	case qn >= 0 && q > 0:
		res.Stress = hydro(i1 - 9*m.K*m.AlphaPsi*dl).Add(dev.Scale(qn / q))
	default:
		res.Stress, res.Apex = m.apex(i1)
	}

	// round-off can leave the cone return a hair outside the surface
	if m.Yield(res.Stress) > m.Tolerance(res.Stress) {
		ni1, nq := Invariants(res.Stress)
		res.Stress, res.Apex = m.project(ni1, nq, res.Stress.Dev())
	}

	res.Plastic = m.plasticNorm(trial.Sub(res.Stress))
	return res
}

// apex returns the cone tip, or the hydrostatic part when the cone has no
// tip (Alpha == 0).
func (m DruckerPrager) apex(i1 float64) (tensor.Mat3, bool) {
	if m.Alpha > 0 {
		return hydro(m.Kc / m.Alpha), true
	}
	return hydro(i1), false
}

// project keeps I1 and scales the deviator onto the surface; if I1 itself
// is beyond the apex it falls back to the apex.
func (m DruckerPrager) project(i1, q float64, dev tensor.Mat3) (tensor.Mat3, bool) {
	room := m.Kc - m.Alpha*i1
	if room <= 0 {
		return m.apex(i1)
	}
	if q <= room {
		return hydro(i1).Add(dev), false
	}
	return hydro(i1).Add(dev.Scale(room / q)), false
}

// plasticNorm returns |D⁻¹ : dσ| for the stress correction dσ.
func (m DruckerPrager) plasticNorm(ds tensor.Mat3) float64 {
	if !(m.G > 0 && m.K > 0) {
		return 0
	}
	dep := ds.Dev().Scale(1 / (2 * m.G))
	v := ds.Trace() / (9 * m.K)
	dep[0][0] += v
	dep[1][1] += v
	dep[2][2] += v
	return dep.Norm()
}

func hydro(i1 float64) tensor.Mat3 {
	p := i1 / 3
	return tensor.Diag(p, p, p)
}
