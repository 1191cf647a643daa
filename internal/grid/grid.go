// Package grid holds the background lattice of the material point solver:
// transient per-node mass, momentum, velocity and force arrays, the active
// box that bounds all particle stencils, and the per-worker partial
// buffers used to scatter particle data without write contention.
package grid

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// MassEpsilon is the node mass below which a node is treated as inactive.
const MassEpsilon = 1e-14

// Grid is a structured Cartesian lattice of Dims[0]*Dims[1]*Dims[2] nodes.
// Node (i,j,k) sits at (i*Cell.X, j*Cell.Y, k*Cell.Z).
type Grid struct {
	Dims [3]int
	Cell r3.Vec

	Mass  []float64
	Mom   []r3.Vec
	Vel   []r3.Vec
	Prev  []r3.Vec // velocity before the grid update, for the FLIP increment
	Force []r3.Vec
	Damp  []float64 // mass-weighted particle damping
}

// New allocates a zeroed lattice.
func New(dims [3]int, cell r3.Vec) (*Grid, error) {
	for a := 0; a < 3; a++ {
		if dims[a] < 2 {
			return nil, fmt.Errorf("grid: axis %d needs at least 2 nodes, got %d", a, dims[a])
		}
	}
	if !(cell.X > 0 && cell.Y > 0 && cell.Z > 0) {
		return nil, fmt.Errorf("grid: cell size must be positive, got %v", cell)
	}
	n := dims[0] * dims[1] * dims[2]
	return &Grid{
		Dims:  dims,
		Cell:  cell,
		Mass:  make([]float64, n),
		Mom:   make([]r3.Vec, n),
		Vel:   make([]r3.Vec, n),
		Prev:  make([]r3.Vec, n),
		Force: make([]r3.Vec, n),
		Damp:  make([]float64, n),
	}, nil
}

func (g *Grid) Len() int { return len(g.Mass) }

func (g *Grid) Index(i, j, k int) int {
	return i + j*g.Dims[0] + k*g.Dims[0]*g.Dims[1]
}

func (g *Grid) Coords(n int) (i, j, k int) {
	i = n % g.Dims[0]
	j = (n / g.Dims[0]) % g.Dims[1]
	k = n / (g.Dims[0] * g.Dims[1])
	return
}

func (g *Grid) InBounds(i, j, k int) bool {
	return i >= 0 && i < g.Dims[0] && j >= 0 && j < g.Dims[1] && k >= 0 && k < g.Dims[2]
}

// Position returns the coordinates of node n.
func (g *Grid) Position(n int) r3.Vec {
	i, j, k := g.Coords(n)
	return r3.Vec{X: float64(i) * g.Cell.X, Y: float64(j) * g.Cell.Y, Z: float64(k) * g.Cell.Z}
}

// Extent returns the far corner of the lattice.
func (g *Grid) Extent() r3.Vec {
	return r3.Vec{
		X: float64(g.Dims[0]-1) * g.Cell.X,
		Y: float64(g.Dims[1]-1) * g.Cell.Y,
		Z: float64(g.Dims[2]-1) * g.Cell.Z,
	}
}

// Active reports whether node n carries mass this step.
func (g *Grid) Active(n int) bool { return g.Mass[n] > MassEpsilon }

// ClearNode zeroes all transient values of node n.
func (g *Grid) ClearNode(n int) {
	g.Mass[n] = 0
	g.Mom[n] = r3.Vec{}
	g.Vel[n] = r3.Vec{}
	g.Prev[n] = r3.Vec{}
	g.Force[n] = r3.Vec{}
	g.Damp[n] = 0
}

// Node is a read-only view of one lattice node.
type Node struct {
	Index    int
	I, J, K  int
	Mass     float64
	Momentum r3.Vec
	Velocity r3.Vec
	Force    r3.Vec
}

// Node returns the current values of node n.
func (g *Grid) Node(n int) Node {
	i, j, k := g.Coords(n)
	return Node{
		Index: n, I: i, J: j, K: k,
		Mass:     g.Mass[n],
		Momentum: g.Mom[n],
		Velocity: g.Vel[n],
		Force:    g.Force[n],
	}
}

// TotalMomentum sums node momentum over box.
func (g *Grid) TotalMomentum(b Box) r3.Vec {
	var p r3.Vec
	for n := 0; n < b.Len(); n++ {
		p = r3.Add(p, g.Mom[g.Index(b.Coord(n))])
	}
	return p
}

// TotalMass sums node mass over box.
func (g *Grid) TotalMass(b Box) float64 {
	m := 0.0
	for n := 0; n < b.Len(); n++ {
		m += g.Mass[g.Index(b.Coord(n))]
	}
	return m
}
