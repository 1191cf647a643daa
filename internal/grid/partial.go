package grid

import (
	"sync"

	"github.com/san-kum/mpmsim/internal/sched"
	"github.com/san-kum/mpmsim/internal/shape"
	"github.com/san-kum/mpmsim/internal/tensor"
	"gonum.org/v1/gonum/spatial/r3"
)

// Contribution is what one particle scatters to the nodes of its stencil.
type Contribution struct {
	Mass      float64
	Momentum  r3.Vec      // m·v
	VolStress tensor.Mat3 // V·σ; internal nodal force is -(V·σ)·∇N
	Body      r3.Vec      // m·b
	Damping   float64     // m·d
}

// Partial is one worker's private accumulator over the active box.
type Partial struct {
	box   Box
	size  [3]int
	Mass  []float64
	Mom   []r3.Vec
	Force []r3.Vec
	Damp  []float64
}

// Reset sizes the buffer to box and zeroes it.
func (p *Partial) Reset(box Box) {
	p.box = box
	p.size = box.Size()
	n := box.Len()
	if cap(p.Mass) < n {
		p.Mass = make([]float64, n)
		p.Mom = make([]r3.Vec, n)
		p.Force = make([]r3.Vec, n)
		p.Damp = make([]float64, n)
		return
	}
	p.Mass = p.Mass[:n]
	p.Mom = p.Mom[:n]
	p.Force = p.Force[:n]
	p.Damp = p.Damp[:n]
	clear(p.Mass)
	clear(p.Mom)
	clear(p.Force)
	clear(p.Damp)
}

// ResetMomentum zeroes only the momentum buffer for a velocity re-map.
func (p *Partial) ResetMomentum(box Box) {
	p.box = box
	p.size = box.Size()
	n := box.Len()
	if cap(p.Mom) < n {
		p.Mom = make([]r3.Vec, n)
		return
	}
	p.Mom = p.Mom[:n]
	clear(p.Mom)
}

func (p *Partial) origin(s *shape.Stencil) int {
	return p.box.Local(s.Base[0], s.Base[1], s.Base[2])
}

// Scatter adds c to every node of s, weighted by the kernel.
func (p *Partial) Scatter(s *shape.Stencil, c *Contribution) {
	sy := p.size[0]
	sz := p.size[0] * p.size[1]
	o := p.origin(s)
	for k := 0; k < s.Width; k++ {
		wz, dz := s.W[2][k], s.DW[2][k]
		for j := 0; j < s.Width; j++ {
			wy, dy := s.W[1][j], s.DW[1][j]
			for i := 0; i < s.Width; i++ {
				wx, dx := s.W[0][i], s.DW[0][i]
				w := wx * wy * wz
				grad := r3.Vec{X: dx * wy * wz, Y: wx * dy * wz, Z: wx * wy * dz}
				n := o + i + j*sy + k*sz

				p.Mass[n] += w * c.Mass
				p.Mom[n] = r3.Add(p.Mom[n], r3.Scale(w, c.Momentum))
				fint := c.VolStress.MulVec(grad)
				p.Force[n] = r3.Add(p.Force[n], r3.Sub(r3.Scale(w, c.Body), fint))
				p.Damp[n] += w * c.Damping
			}
		}
	}
}

// ScatterMomentum adds only w·mv to every node of s.
func (p *Partial) ScatterMomentum(s *shape.Stencil, mv r3.Vec) {
	sy := p.size[0]
	sz := p.size[0] * p.size[1]
	o := p.origin(s)
	for k := 0; k < s.Width; k++ {
		for j := 0; j < s.Width; j++ {
			wyz := s.W[1][j] * s.W[2][k]
			for i := 0; i < s.Width; i++ {
				n := o + i + j*sy + k*sz
				p.Mom[n] = r3.Add(p.Mom[n], r3.Scale(s.W[0][i]*wyz, mv))
			}
		}
	}
}

// PartialPool recycles partial buffers between steps.
type PartialPool struct {
	pool sync.Pool
}

func NewPartialPool() *PartialPool {
	return &PartialPool{
		pool: sync.Pool{
			New: func() interface{} {
				return &Partial{}
			},
		},
	}
}

func (pp *PartialPool) Get() *Partial {
	return pp.pool.Get().(*Partial)
}

func (pp *PartialPool) Put(p *Partial) {
	if p != nil {
		pp.pool.Put(p)
	}
}

// Reduce sums the partials node by node in slice order and overwrites the
// lattice values inside box. The fixed summation order makes the result
// independent of goroutine timing.
func (g *Grid) Reduce(pool *sched.Pool, box Box, parts []*Partial) {
	pool.For(box.Len(), func(_, lo, hi int) {
		for n := lo; n < hi; n++ {
			var mass, damp float64
			var mom, force r3.Vec
			for _, p := range parts {
				mass += p.Mass[n]
				mom = r3.Add(mom, p.Mom[n])
				force = r3.Add(force, p.Force[n])
				damp += p.Damp[n]
			}
			idx := g.Index(box.Coord(n))
			g.Mass[idx] = mass
			g.Mom[idx] = mom
			g.Force[idx] = force
			g.Damp[idx] = damp
		}
	})
}

// ReduceMomentum is Reduce for a momentum-only re-map.
func (g *Grid) ReduceMomentum(pool *sched.Pool, box Box, parts []*Partial) {
	pool.For(box.Len(), func(_, lo, hi int) {
		for n := lo; n < hi; n++ {
			var mom r3.Vec
			for _, p := range parts {
				mom = r3.Add(mom, p.Mom[n])
			}
			g.Mom[g.Index(box.Coord(n))] = mom
		}
	})
}

// Clear zeroes every node in box.
func (g *Grid) Clear(pool *sched.Pool, box Box) {
	if box.Empty() {
		return
	}
	pool.For(box.Len(), func(_, lo, hi int) {
		for n := lo; n < hi; n++ {
			g.ClearNode(g.Index(box.Coord(n)))
		}
	})
}
