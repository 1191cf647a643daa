package mpm_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mpmsim/internal/boundary"
	"github.com/san-kum/mpmsim/internal/mpm"
	"github.com/san-kum/mpmsim/internal/particle"
	"github.com/san-kum/mpmsim/internal/shape"
	"github.com/san-kum/mpmsim/internal/tensor"
	"gonum.org/v1/gonum/spatial/r3"
)

var center = r3.Vec{X: 3.5, Y: 3.5, Z: 3.5}

var _ = Describe("MUSL step", func() {
	It("leaves an idle particle untouched", func() {
		d := newDomain(shape.Cubic, 8, 1, center, r3.Vec{}, r3.Vec{})
		defer d.Close()

		Expect(d.Step()).To(Succeed())
		p := d.Particles()[0]
		Expect(p.X).To(Equal(center))
		Expect(p.V).To(Equal(r3.Vec{}))
		Expect(p.Stress).To(Equal(tensor.Mat3{}))
		Expect(p.F).To(Equal(tensor.Identity()))
		Expect(d.Steps()).To(Equal(1))
	})

	It("integrates free fall exactly", func() {
		g := 0.5
		d := newDomain(shape.Quadratic, 8, 0.1, center, r3.Vec{}, r3.Vec{Z: -g})
		defer d.Close()

		for i := 0; i < 10; i++ {
			Expect(d.Step()).To(Succeed())
		}
		p := d.Particles()[0]
		Expect(p.V.Z).To(BeNumerically("~", -0.5, 1e-12))
		Expect(p.X.Z).To(BeNumerically("~", 3.5-0.5*0.01*55, 1e-12))
		Expect(p.X.X).To(BeNumerically("~", 3.5, 1e-12))
		Expect(p.Stress.Norm()).To(BeNumerically("<", 1e-9))
	})

	It("fails when a particle leaves the grid", func() {
		d := newDomain(shape.Cubic, 8, 1, r3.Vec{X: 2.5, Y: 3.5, Z: 3.5}, r3.Vec{X: -2}, r3.Vec{})
		defer d.Close()

		err := d.Step()
		Expect(errors.Is(err, mpm.ErrOutOfBounds)).To(BeTrue())
		var se *mpm.StepError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Particle).To(Equal(0))
		Expect(se.Phase).To(Equal(mpm.PhaseCheck))
	})

	It("rejects particles outside the grid at setup", func() {
		d := newDomain(shape.Cubic, 8, 1, center, r3.Vec{}, r3.Vec{})
		defer d.Close()

		err := d.AddParticles(particle.New(0, r3.Vec{X: 0.5, Y: 3, Z: 3}, 1, 1))
		Expect(errors.Is(err, mpm.ErrOutOfBounds)).To(BeTrue())

		err = d.AddParticles(particle.New(0, center, 0, 1))
		Expect(errors.Is(err, mpm.ErrInvalidState)).To(BeTrue())
		Expect(d.Particles()).To(HaveLen(1))
	})
})

var _ = Describe("grid boundary conditions", func() {
	var d *mpm.Domain
	all := func(c boundary.Condition) {
		n, err := d.SetBoundaryBox([3]int{0, 0, 0}, [3]int{7, 7, 7}, c)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(512))
	}

	AfterEach(func() { d.Close() })

	It("holds a particle on non-slipping nodes", func() {
		d = newDomain(shape.Cubic, 8, 1, center, r3.Vec{}, r3.Vec{Z: -1})
		all(boundary.NonSlip())

		for i := 0; i < 5; i++ {
			Expect(d.Step()).To(Succeed())
		}
		p := d.Particles()[0]
		Expect(p.V).To(Equal(r3.Vec{}))
		Expect(p.X).To(Equal(center))
	})

	It("removes only the normal velocity on slipping nodes", func() {
		d = newDomain(shape.Cubic, 8, 0.1, center, r3.Vec{X: 1, Z: -1}, r3.Vec{})
		all(boundary.Slip(r3.Vec{Z: -1}))

		Expect(d.Step()).To(Succeed())
		p := d.Particles()[0]
		Expect(p.V.X).To(BeNumerically("~", 1, 1e-12))
		Expect(p.V.Z).To(BeNumerically("~", 0, 1e-12))
		Expect(p.X.X).To(BeNumerically("~", 3.6, 1e-12))
		Expect(p.X.Z).To(BeNumerically("~", 3.5, 1e-12))
	})

	It("slows tangential motion on frictional nodes without reversing it", func() {
		d = newDomain(shape.Cubic, 8, 0.1, center, r3.Vec{X: 2, Z: -1}, r3.Vec{})
		all(boundary.Friction(r3.Vec{Z: -1}, 0.5))

		Expect(d.Step()).To(Succeed())
		p := d.Particles()[0]
		Expect(p.V.X).To(BeNumerically("~", 1.5, 1e-12))
		Expect(p.V.Z).To(BeNumerically("~", 0, 1e-12))
	})

	It("releases material leaving a frictional wall", func() {
		d = newDomain(shape.Cubic, 8, 0.1, center, r3.Vec{X: 2, Z: 1}, r3.Vec{})
		all(boundary.Friction(r3.Vec{Z: -1}, 0.5))

		Expect(d.Step()).To(Succeed())
		p := d.Particles()[0]
		Expect(p.V.X).To(BeNumerically("~", 2, 1e-12))
		Expect(p.V.Z).To(BeNumerically("~", 1, 1e-12))
	})

	It("lets the last assignment win", func() {
		d = newDomain(shape.Cubic, 8, 1, center, r3.Vec{}, r3.Vec{})
		Expect(d.SetNonSlipping(3, 3, 3)).To(Succeed())
		Expect(d.SetSlipping(3, 3, 3, r3.Vec{X: 2})).To(Succeed())

		c, ok := d.Boundaries().Get(d.Grid().Index(3, 3, 3))
		Expect(ok).To(BeTrue())
		Expect(c.Kind).To(Equal(boundary.Slipping))
		Expect(c.Normal).To(Equal(r3.Vec{X: 1}))

		Expect(d.SetFree(3, 3, 3)).To(Succeed())
		Expect(d.Boundaries().Len()).To(BeZero())

		err := d.SetFriction(3, 3, 3, r3.Vec{}, 0.2)
		Expect(errors.Is(err, boundary.ErrInvalidBoundary)).To(BeTrue())
	})
})

var _ = Describe("Run", func() {
	It("notifies observers at the start, every save interval and the end", func() {
		d := newDomain(shape.Linear, 6, 1, r3.Vec{X: 2.5, Y: 2.5, Z: 2.5}, r3.Vec{}, r3.Vec{})
		defer d.Close()

		var saved []int
		d.AddObserver(mpm.ObserverFunc(func(_ *mpm.Domain, step int) error {
			saved = append(saved, step)
			return nil
		}))

		Expect(d.Run(context.Background(), 10, 4)).To(Succeed())
		Expect(saved).To(Equal([]int{0, 4, 8, 10}))

		Expect(d.Run(context.Background(), 0, 4)).To(Succeed())
		Expect(saved).To(HaveLen(4))
	})

	It("stops between steps when the context is canceled", func() {
		d := newDomain(shape.Linear, 6, 1, r3.Vec{X: 2.5, Y: 2.5, Z: 2.5}, r3.Vec{}, r3.Vec{})
		defer d.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := d.Run(ctx, 100, 0)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(d.Steps()).To(BeZero())
	})

	It("propagates observer errors", func() {
		d := newDomain(shape.Linear, 6, 1, r3.Vec{X: 2.5, Y: 2.5, Z: 2.5}, r3.Vec{}, r3.Vec{})
		defer d.Close()

		boom := errors.New("disk full")
		d.AddObserver(mpm.ObserverFunc(func(_ *mpm.Domain, step int) error {
			if step == 2 {
				return boom
			}
			return nil
		}))
		err := d.Run(context.Background(), 5, 2)
		Expect(errors.Is(err, boom)).To(BeTrue())
		Expect(d.Steps()).To(Equal(2))
	})

	It("rejects a run with unassigned material", func() {
		d := newDomain(shape.Linear, 6, 1, r3.Vec{X: 2.5, Y: 2.5, Z: 2.5}, r3.Vec{}, r3.Vec{})
		defer d.Close()
		Expect(d.AddParticles(particle.New(1, r3.Vec{X: 3, Y: 3, Z: 3}, 1, 1))).To(Succeed())

		saved := 0
		d.AddObserver(mpm.ObserverFunc(func(*mpm.Domain, int) error {
			saved++
			return nil
		}))
		err := d.Run(context.Background(), 5, 1)
		Expect(errors.Is(err, mpm.ErrInvalidState)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("particle 1"))
		Expect(d.Steps()).To(BeZero())
		Expect(saved).To(BeZero())

		_, err = d.Assign(1, particle.Assignment{Model: elastic(100)})
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Run(context.Background(), 2, 0)).To(Succeed())
		Expect(d.Steps()).To(Equal(2))
	})
})

var _ = Describe("geostatic column", Ordered, func() {
	const (
		rho     = 1.0
		gravity = 1e-4
		height  = 8.0
	)
	var (
		d    *mpm.Domain
		peak float64
		last float64
	)

	BeforeAll(func() {
		cfg := mpm.DefaultConfig()
		cfg.Nx, cfg.Ny, cfg.Nz = 8, 8, 14
		cfg.Kernel = shape.Quadratic
		cfg.Dt = 1
		cfg.Damping = 0.3
		cfg.Workers = 2

		var err error
		d, err = mpm.New(cfg)
		Expect(err).NotTo(HaveOccurred())
		d.SetLogger(quiet)
		d.SetMinChunk(16)

		ps, err := particle.Box(0, r3.Vec{X: 2, Y: 2, Z: 2}, r3.Vec{X: 2, Y: 2, Z: height}, cfg.Cell, 0.5, 0.125)
		Expect(err).NotTo(HaveOccurred())
		Expect(ps).To(HaveLen(256))
		Expect(d.AddParticles(ps...)).To(Succeed())
		_, err = d.Assign(0, particle.Assignment{Model: elastic(0.05), Body: r3.Vec{Z: -gravity}})
		Expect(err).NotTo(HaveOccurred())

		walls := []struct {
			lo, hi [3]int
			c      boundary.Condition
		}{
			{[3]int{0, 0, 0}, [3]int{2, 7, 13}, boundary.Slip(r3.Vec{X: -1})},
			{[3]int{4, 0, 0}, [3]int{7, 7, 13}, boundary.Slip(r3.Vec{X: 1})},
			{[3]int{0, 0, 0}, [3]int{7, 2, 13}, boundary.Slip(r3.Vec{Y: -1})},
			{[3]int{0, 4, 0}, [3]int{7, 7, 13}, boundary.Slip(r3.Vec{Y: 1})},
			{[3]int{0, 0, 0}, [3]int{7, 7, 2}, boundary.NonSlip()},
		}
		for _, w := range walls {
			_, err := d.SetBoundaryBox(w.lo, w.hi, w.c)
			Expect(err).NotTo(HaveOccurred())
		}

		d.AddObserver(mpm.ObserverFunc(func(d *mpm.Domain, _ int) error {
			ke := 0.0
			for i := range d.Particles() {
				ke += d.Particles()[i].KineticEnergy()
			}
			peak = math.Max(peak, ke)
			last = ke
			return nil
		}))

		Expect(d.CriticalDt()).To(BeNumerically(">", cfg.Dt))
		Expect(d.Run(context.Background(), 3000, 100)).To(Succeed())
	})

	AfterAll(func() { d.Close() })

	It("settles", func() {
		Expect(peak).To(BeNumerically(">", 0))
		Expect(last).To(BeNumerically("<", peak/10))
	})

	It("carries the overburden", func() {
		all := meanSzz(d.Particles(), func(particle.Particle) bool { return true })
		Expect(all).To(BeNumerically("~", -rho*gravity*height/2, 0.25*rho*gravity*height/2))

		bottom := meanSzz(d.Particles(), func(p particle.Particle) bool { return p.X.Z < 3.5 })
		top := meanSzz(d.Particles(), func(p particle.Particle) bool { return p.X.Z > 8.5 })
		Expect(bottom).To(BeNumerically("<", 2*top))
		Expect(top).To(BeNumerically("<", 0))
	})

	It("stays elastic and in place", func() {
		for _, p := range d.Particles() {
			Expect(p.Yielding).To(BeFalse())
			Expect(math.Abs(p.X.X - 3)).To(BeNumerically("<", 1))
			Expect(math.Abs(p.X.Y - 3)).To(BeNumerically("<", 1))
			Expect(p.F.Det()).To(BeNumerically(">", 0.9))
		}
	})
})
