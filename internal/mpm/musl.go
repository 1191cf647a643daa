package mpm

import (
	"fmt"
	"math"

	"github.com/san-kum/mpmsim/internal/grid"
	"github.com/san-kum/mpmsim/internal/particle"
	"github.com/san-kum/mpmsim/internal/shape"
	"github.com/san-kum/mpmsim/internal/telemetry"
	"github.com/san-kum/mpmsim/internal/tensor"
	"gonum.org/v1/gonum/spatial/r3"
)

// Phase names reported in StepError.
const (
	PhaseStencil = "stencil"
	PhaseStress  = "stress"
	PhaseCheck   = "check"
)

// Step advances the domain by one MUSL step:
//
//	P2G scatter, grid update with damping and boundary conditions,
//	G2P (FLIP velocity, position), momentum re-map with boundary
//	conditions, velocity gradient, kinematics and stress update.
//
// Every phase ends at a pool barrier.
func (d *Domain) Step() error {
	ps := d.particles.All()
	d.perf.Begin()
	defer d.perf.End()

	d.perf.Enter(telemetry.P2G)
	if err := d.stencilPass(ps); err != nil {
		return err
	}
	d.scatter(ps)

	d.perf.Enter(telemetry.Grid)
	d.updateGrid()

	d.perf.Enter(telemetry.G2P)
	d.gather(ps)

	d.perf.Enter(telemetry.Remap)
	d.remap(ps)

	d.perf.Enter(telemetry.Stress)
	if err := d.stressPass(ps); err != nil {
		return err
	}

	d.step++
	return nil
}

// stencilPass clears the previous active box, evaluates every stencil and
// computes the new active box.
func (d *Domain) stencilPass(ps []particle.Particle) error {
	d.grid.Clear(d.pool, d.box)

	if cap(d.stencils) < len(ps) {
		d.stencils = make([]shape.Stencil, len(ps))
	}
	d.stencils = d.stencils[:len(ps)]
	for w := range d.boxes {
		d.boxes[w] = grid.EmptyBox()
	}

	err := d.pool.ForErr(len(ps), func(w, lo, hi int) error {
		box := grid.EmptyBox()
		for i := lo; i < hi; i++ {
			if err := d.shape.Compute(ps[i].X, &d.stencils[i]); err != nil {
				return &StepError{Step: d.step, Phase: PhaseStencil, Particle: i, Err: err}
			}
			box = box.ExtendStencil(&d.stencils[i])
		}
		d.boxes[w] = box
		return nil
	})
	if err != nil {
		d.box = grid.EmptyBox()
		return err
	}

	d.box = grid.EmptyBox()
	for _, b := range d.boxes {
		d.box = d.box.Union(b)
	}
	return nil
}

func (d *Domain) acquire(momentumOnly bool) []*grid.Partial {
	parts := make([]*grid.Partial, d.pool.Workers())
	for w := range parts {
		parts[w] = d.partials.Get()
		if momentumOnly {
			parts[w].ResetMomentum(d.box)
		} else {
			parts[w].Reset(d.box)
		}
	}
	return parts
}

func (d *Domain) release(parts []*grid.Partial) {
	for _, p := range parts {
		d.partials.Put(p)
	}
}

// scatter is P2G: mass, momentum, internal and body force, damping weight.
func (d *Domain) scatter(ps []particle.Particle) {
	if d.box.Empty() {
		return
	}
	parts := d.acquire(false)
	defer d.release(parts)

	d.pool.For(len(ps), func(w, lo, hi int) {
		part := parts[w]
		var c grid.Contribution
		for i := lo; i < hi; i++ {
			p := &ps[i]
			c.Mass = p.Mass
			c.Momentum = r3.Scale(p.Mass, p.V)
			c.VolStress = p.Stress.Scale(p.Vol)
			c.Body = r3.Scale(p.Mass, p.Body)
			c.Damping = p.Mass * p.Damping
			part.Scatter(&d.stencils[i], &c)
		}
	})
	d.grid.Reduce(d.pool, d.box, parts)
}

// updateGrid integrates nodal momentum with local damping and applies the
// boundary conditions.
func (d *Domain) updateGrid() {
	g, box, dt := d.grid, d.box, d.cfg.Dt
	d.pool.For(box.Len(), func(_, lo, hi int) {
		for n := lo; n < hi; n++ {
			idx := g.Index(box.Coord(n))
			m := g.Mass[idx]
			if m <= grid.MassEpsilon {
				g.Vel[idx] = r3.Vec{}
				g.Prev[idx] = r3.Vec{}
				continue
			}
			v0 := r3.Scale(1/m, g.Mom[idx])
			g.Prev[idx] = v0

			f := g.Force[idx]
			c := d.cfg.Damping + g.Damp[idx]/m
			f = r3.Add(f, damping(f, v0, c))

			v := r3.Scale(1/m, r3.Add(g.Mom[idx], r3.Scale(dt, f)))
			v = d.constrain(idx, v)
			g.Vel[idx] = v
			g.Mom[idx] = r3.Scale(m, v)
		}
	})
}

// damping returns the local non-viscous damping force -c|f|sign(v), per
// component.
func damping(f, v r3.Vec, c float64) r3.Vec {
	if c == 0 {
		return r3.Vec{}
	}
	return r3.Vec{
		X: -c * math.Abs(f.X) * sign(v.X),
		Y: -c * math.Abs(f.Y) * sign(v.Y),
		Z: -c * math.Abs(f.Z) * sign(v.Z),
	}
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func (d *Domain) constrain(idx int, v r3.Vec) r3.Vec {
	if c, ok := d.bcs.Get(idx); ok {
		return c.Apply(v)
	}
	return v
}

// gather is G2P with the FLIP velocity increment and the new nodal
// velocity for the position update.
func (d *Domain) gather(ps []particle.Particle) {
	g, dt := d.grid, d.cfg.Dt
	d.pool.For(len(ps), func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			s := &d.stencils[i]
			var dv, vx r3.Vec
			for n := 0; n < s.Len(); n++ {
				node, w, _ := s.At(n)
				dv = r3.Add(dv, r3.Scale(w, r3.Sub(g.Vel[node], g.Prev[node])))
				vx = r3.Add(vx, r3.Scale(w, g.Vel[node]))
			}
			p := &ps[i]
			p.V = r3.Add(p.V, dv)
			p.X = r3.Add(p.X, r3.Scale(dt, vx))
		}
	})
}

// remap re-scatters the updated particle momentum with the step-start
// stencils and rebuilds constrained nodal velocities.
func (d *Domain) remap(ps []particle.Particle) {
	if d.box.Empty() {
		return
	}
	parts := d.acquire(true)
	defer d.release(parts)

	d.pool.For(len(ps), func(w, lo, hi int) {
		part := parts[w]
		for i := lo; i < hi; i++ {
			part.ScatterMomentum(&d.stencils[i], ps[i].Momentum())
		}
	})
	d.grid.ReduceMomentum(d.pool, d.box, parts)

	g, box := d.grid, d.box
	d.pool.For(box.Len(), func(_, lo, hi int) {
		for n := lo; n < hi; n++ {
			idx := g.Index(box.Coord(n))
			m := g.Mass[idx]
			if m <= grid.MassEpsilon {
				g.Vel[idx] = r3.Vec{}
				continue
			}
			v := d.constrain(idx, r3.Scale(1/m, g.Mom[idx]))
			g.Vel[idx] = v
			g.Mom[idx] = r3.Scale(m, v)
		}
	})
}

// stressPass computes the velocity gradient, updates the kinematics, rotates
// and integrates the stress, then checks the particle for divergence and
// for leaving the grid.
func (d *Domain) stressPass(ps []particle.Particle) error {
	g, dt := d.grid, d.cfg.Dt
	return d.pool.ForErr(len(ps), func(_, lo, hi int) error {
		var next shape.Stencil
		for i := lo; i < hi; i++ {
			s := &d.stencils[i]
			var l tensor.Mat3
			for n := 0; n < s.Len(); n++ {
				node, _, grad := s.At(n)
				l = l.Add(tensor.Outer(g.Vel[node], grad))
			}

			p := &ps[i]
			if err := kinematics(p, l, dt); err != nil {
				return &StepError{Step: d.step, Phase: PhaseStress, Particle: i, Err: err}
			}

			de := l.Sym().Scale(dt)
			p.Stress = jaumann(p.Stress, l.Skew().Scale(dt))
			res := p.Model.Update(p.Stress, de)
			p.Stress = res.Stress
			p.PlasticStrain += res.Plastic
			p.Yielding = res.Yielded

			if !p.Stress.IsFinite() || !tensor.VecFinite(p.V) || !tensor.VecFinite(p.X) {
				return &StepError{Step: d.step, Phase: PhaseCheck, Particle: i, Err: ErrUnstable}
			}
			if err := d.shape.Compute(p.X, &next); err != nil {
				return &StepError{Step: d.step, Phase: PhaseCheck, Particle: i, Err: err}
			}
		}
		return nil
	})
}

// kinematics applies F <- (I + L dt) F and refreshes volume and density.
func kinematics(p *particle.Particle, l tensor.Mat3, dt float64) error {
	f := tensor.Identity().Add(l.Scale(dt)).Mul(p.F)
	j := f.Det()
	if !(j > 0) || math.IsInf(j, 0) {
		return fmt.Errorf("%w: deformation gradient determinant %g", ErrUnstable, j)
	}
	p.F = f
	p.Vol = j * p.Vol0
	p.Density = p.Mass / p.Vol
	return nil
}

// jaumann rotates s by the spin increment w: s + w·s - s·w.
func jaumann(s, w tensor.Mat3) tensor.Mat3 {
	return s.Add(w.Mul(s)).Sub(s.Mul(w))
}
