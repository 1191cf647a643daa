// Package shape implements the grid interpolation kernels that tie a
// material point to the nodes of the background lattice.
package shape

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrOutOfBounds is returned when a stencil would reach outside the grid.
var ErrOutOfBounds = errors.New("shape: stencil outside grid")

// Kind selects the interpolation kernel.
type Kind int

const (
	Linear    Kind = 1 // tent functions, 2 nodes per axis
	Quadratic Kind = 2 // quadratic B-spline, 3 nodes per axis
	Cubic     Kind = 3 // cubic B-spline, 4 nodes per axis
)

// MaxWidth is the widest per-axis support of any kernel.
const MaxWidth = 4

func (k Kind) String() string {
	switch k {
	case Linear:
		return "linear"
	case Quadratic:
		return "quadratic"
	case Cubic:
		return "cubic"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Width returns the number of nodes per axis in the kernel support.
func (k Kind) Width() int {
	switch k {
	case Linear:
		return 2
	case Quadratic:
		return 3
	case Cubic:
		return 4
	default:
		return 0
	}
}

// Valid reports whether k names a known kernel.
func (k Kind) Valid() bool { return k.Width() > 0 }

// ParseKind accepts "linear", "quadratic", "cubic" or the numeric selectors 1, 2, 3.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "linear", "1":
		return Linear, nil
	case "quadratic", "2":
		return Quadratic, nil
	case "cubic", "3":
		return Cubic, nil
	}
	return 0, fmt.Errorf("shape: unknown kernel %q", s)
}

// Stencil holds the separable weights of one particle. 3D weights are
// products of the per-axis values and are expanded lazily by At.
type Stencil struct {
	Base  [3]int
	Width int
	W     [3][MaxWidth]float64
	DW    [3][MaxWidth]float64 // per-axis derivatives, already divided by the cell size

	origin int
	sy, sz int
}

// Len returns the number of nodes in the stencil.
func (s *Stencil) Len() int { return s.Width * s.Width * s.Width }

// At returns the linear node index, weight and weight gradient of the n-th
// stencil node, n in [0, Len()).
func (s *Stencil) At(n int) (node int, w float64, grad r3.Vec) {
	a := n % s.Width
	b := (n / s.Width) % s.Width
	c := n / (s.Width * s.Width)

	wx, wy, wz := s.W[0][a], s.W[1][b], s.W[2][c]
	node = s.origin + a + b*s.sy + c*s.sz
	w = wx * wy * wz
	grad = r3.Vec{
		X: s.DW[0][a] * wy * wz,
		Y: wx * s.DW[1][b] * wz,
		Z: wx * wy * s.DW[2][c],
	}
	return
}

// Node returns the (i,j,k) index of the n-th stencil node.
func (s *Stencil) Node(n int) (i, j, k int) {
	return s.Base[0] + n%s.Width, s.Base[1] + (n/s.Width)%s.Width, s.Base[2] + n/(s.Width*s.Width)
}

// Func evaluates a kernel on a fixed lattice of nx*ny*nz nodes spaced by
// the cell size, with node (0,0,0) at the origin.
type Func struct {
	kind Kind
	dx   [3]float64
	dims [3]int
}

// New binds a kernel to a lattice.
func New(kind Kind, dims [3]int, cell r3.Vec) (*Func, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("shape: invalid kernel %d", int(kind))
	}
	dx := [3]float64{cell.X, cell.Y, cell.Z}
	for a := 0; a < 3; a++ {
		if !(dx[a] > 0) {
			return nil, fmt.Errorf("shape: cell size must be positive, got %v", cell)
		}
		if dims[a] < kind.Width() {
			return nil, fmt.Errorf("shape: axis %d has %d nodes, %s kernel needs %d", a, dims[a], kind, kind.Width())
		}
	}
	return &Func{kind: kind, dx: dx, dims: dims}, nil
}

func (f *Func) Kind() Kind { return f.kind }

// Compute fills s with the weights of the node stencil around x.
func (f *Func) Compute(x r3.Vec, s *Stencil) error {
	pos := [3]float64{x.X, x.Y, x.Z}
	s.Width = f.kind.Width()
	for a := 0; a < 3; a++ {
		xi := pos[a] / f.dx[a]
		if math.IsNaN(xi) || math.IsInf(xi, 0) {
			return fmt.Errorf("%w: non-finite position %v", ErrOutOfBounds, x)
		}
		base := f.axis(xi, &s.W[a], &s.DW[a])
		if base < 0 || base+s.Width > f.dims[a] {
			return fmt.Errorf("%w: position %v needs nodes [%d,%d] on axis %d of %d",
				ErrOutOfBounds, x, base, base+s.Width-1, a, f.dims[a])
		}
		inv := 1 / f.dx[a]
		for n := 0; n < s.Width; n++ {
			s.DW[a][n] *= inv
		}
		s.Base[a] = base
	}
	s.sy = f.dims[0]
	s.sz = f.dims[0] * f.dims[1]
	s.origin = s.Base[0] + s.Base[1]*s.sy + s.Base[2]*s.sz
	return nil
}

// Inside reports whether the full stencil around x lies inside the lattice.
func (f *Func) Inside(x r3.Vec) bool {
	var s Stencil
	return f.Compute(x, &s) == nil
}

// axis writes the 1D weights and derivatives (in cell units) for the
// coordinate xi, measured in cells, and returns the lowest node index.
func (f *Func) axis(xi float64, w, dw *[MaxWidth]float64) int {
	switch f.kind {
	case Linear:
		base := math.Floor(xi)
		r := xi - base
		w[0], w[1] = 1-r, r
		dw[0], dw[1] = -1, 1
		return int(base)

	case Quadratic:
		base := math.Floor(xi - 0.5)
		u := xi - base - 1 // offset from the middle node, in [-0.5, 0.5)
		w[0] = 0.5 * (0.5 - u) * (0.5 - u)
		w[1] = 0.75 - u*u
		w[2] = 0.5 * (0.5 + u) * (0.5 + u)
		dw[0] = u - 0.5
		dw[1] = -2 * u
		dw[2] = u + 0.5
		return int(base)

	default:
		cell := math.Floor(xi)
		r := xi - cell
		q := 1 - r
		w[0] = q * q * q / 6
		w[1] = 0.5*r*r*r - r*r + 2.0/3.0
		w[2] = 0.5*q*q*q - q*q + 2.0/3.0
		w[3] = r * r * r / 6
		dw[0] = -0.5 * q * q
		dw[1] = 1.5*r*r - 2*r
		dw[2] = -1.5*q*q + 2*q
		dw[3] = 0.5 * r * r
		return int(cell) - 1
	}
}
