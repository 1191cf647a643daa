package tensor

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mat3 is a 3x3 matrix stored row-major.
type Mat3 [3][3]float64

// Identity returns the 3x3 identity matrix.
func Identity() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Diag returns a diagonal matrix.
func Diag(a, b, c float64) Mat3 {
	return Mat3{{a, 0, 0}, {0, b, 0}, {0, 0, c}}
}

// Outer returns a ⊗ b.
func Outer(a, b r3.Vec) Mat3 {
	return Mat3{
		{a.X * b.X, a.X * b.Y, a.X * b.Z},
		{a.Y * b.X, a.Y * b.Y, a.Y * b.Z},
		{a.Z * b.X, a.Z * b.Y, a.Z * b.Z},
	}
}

func (m Mat3) Add(o Mat3) Mat3 {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] += o[i][j]
		}
	}
	return m
}

func (m Mat3) Sub(o Mat3) Mat3 {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] -= o[i][j]
		}
	}
	return m
}

func (m Mat3) Scale(f float64) Mat3 {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] *= f
		}
	}
	return m
}

func (m Mat3) Mul(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j] + m[i][2]*o[2][j]
		}
	}
	return r
}

// MulVec returns m·v.
func (m Mat3) MulVec(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

func (m Mat3) T() Mat3 {
	return Mat3{
		{m[0][0], m[1][0], m[2][0]},
		{m[0][1], m[1][1], m[2][1]},
		{m[0][2], m[1][2], m[2][2]},
	}
}

func (m Mat3) Trace() float64 { return m[0][0] + m[1][1] + m[2][2] }

func (m Mat3) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Sym returns (m + mᵀ)/2.
func (m Mat3) Sym() Mat3 { return m.Add(m.T()).Scale(0.5) }

// Skew returns (m - mᵀ)/2.
func (m Mat3) Skew() Mat3 { return m.Sub(m.T()).Scale(0.5) }

// Dev returns the deviatoric part m - tr(m)/3 I.
func (m Mat3) Dev() Mat3 {
	p := m.Trace() / 3
	m[0][0] -= p
	m[1][1] -= p
	m[2][2] -= p
	return m
}

// Ddot returns the double contraction m:o.
func (m Mat3) Ddot(o Mat3) float64 {
	s := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s += m[i][j] * o[i][j]
		}
	}
	return s
}

// Norm returns the Frobenius norm.
func (m Mat3) Norm() float64 { return math.Sqrt(m.Ddot(m)) }

// IsFinite reports whether every entry is neither NaN nor Inf.
func (m Mat3) IsFinite() bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0) {
				return false
			}
		}
	}
	return true
}

// Symmetric reports whether |m - mᵀ| is within tol entry-wise.
func (m Mat3) Symmetric(tol float64) bool {
	return math.Abs(m[0][1]-m[1][0]) <= tol &&
		math.Abs(m[0][2]-m[2][0]) <= tol &&
		math.Abs(m[1][2]-m[2][1]) <= tol
}

// VecFinite reports whether every component of v is finite.
func VecFinite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Component returns v[axis] for axis 0, 1, 2.
func Component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
