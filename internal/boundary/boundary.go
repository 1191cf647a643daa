// Package boundary implements the grid-node velocity constraints and the
// sparse registry that assigns them to lattice nodes.
package boundary

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidBoundary is returned for malformed conditions or node indices.
var ErrInvalidBoundary = errors.New("boundary: invalid condition")

// TangentEpsilon is the tangential speed below which frictional contact
// sticks outright.
const TangentEpsilon = 1e-14

// Kind selects how a node's velocity is constrained.
type Kind int

const (
	Free Kind = iota
	Slipping
	NonSlipping
	Frictional
)

func (k Kind) String() string {
	switch k {
	case Free:
		return "free"
	case Slipping:
		return "slipping"
	case NonSlipping:
		return "non-slipping"
	case Frictional:
		return "frictional"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps the configuration names onto kinds.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "free":
		return Free, nil
	case "slip", "slipping":
		return Slipping, nil
	case "fixed", "nonslip", "non-slipping":
		return NonSlipping, nil
	case "friction", "frictional":
		return Frictional, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidBoundary, s)
}

// Condition is the constraint of one node. Normal and Mu are only read by
// the kinds that need them.
type Condition struct {
	Kind   Kind
	Normal r3.Vec
	Mu     float64
}

func FreeBC() Condition       { return Condition{Kind: Free} }
func Slip(n r3.Vec) Condition { return Condition{Kind: Slipping, Normal: n} }
func NonSlip() Condition      { return Condition{Kind: NonSlipping} }

func Friction(n r3.Vec, mu float64) Condition {
	return Condition{Kind: Frictional, Normal: n, Mu: mu}
}

// Normalize validates c and returns it with a unit normal.
func (c Condition) Normalize() (Condition, error) {
	switch c.Kind {
	case Free, NonSlipping:
		return Condition{Kind: c.Kind}, nil
	case Slipping, Frictional:
		l := r3.Norm(c.Normal)
		if !(l > 0) || math.IsInf(l, 0) {
			return c, fmt.Errorf("%w: %s needs a non-zero normal, got %v", ErrInvalidBoundary, c.Kind, c.Normal)
		}
		c.Normal = r3.Scale(1/l, c.Normal)
		if c.Kind == Slipping {
			c.Mu = 0
			return c, nil
		}
		if !(c.Mu >= 0) || math.IsInf(c.Mu, 0) {
			return c, fmt.Errorf("%w: friction coefficient must be finite and non-negative, got %g", ErrInvalidBoundary, c.Mu)
		}
		return c, nil
	}
	return c, fmt.Errorf("%w: unknown kind %d", ErrInvalidBoundary, int(c.Kind))
}

// Apply returns the constrained velocity. Normals point out of the material
// into the wall. Slipping removes the normal component in both directions.
// Frictional contact is one-sided: a node moving into the wall (v·n > 0)
// loses its normal component and then its tangential speed is reduced by
// Mu·(v·n), while a separating node (v·n <= 0) is left unchanged.
func (c Condition) Apply(v r3.Vec) r3.Vec {
	switch c.Kind {
	case Slipping:
		return r3.Sub(v, r3.Scale(r3.Dot(v, c.Normal), c.Normal))

	case NonSlipping:
		return r3.Vec{}

	case Frictional:
		vn := r3.Dot(v, c.Normal)
		if vn <= 0 {
			return v
		}
		vt := r3.Sub(v, r3.Scale(vn, c.Normal))
		speed := r3.Norm(vt)
		if speed <= TangentEpsilon {
			return r3.Vec{}
		}
		// Coulomb cap: the normal impulse per unit mass is vn.
		drop := c.Mu * vn
		if drop >= speed {
			return r3.Vec{}
		}
		return r3.Scale(1-drop/speed, vt)
	}
	return v
}
