// Package mpm is the explicit material point solver: a domain owns the
// background grid, the particles, the boundary registry and the worker
// pool, and advances them with the MUSL scheme.
package mpm

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/mpmsim/internal/boundary"
	"github.com/san-kum/mpmsim/internal/grid"
	"github.com/san-kum/mpmsim/internal/particle"
	"github.com/san-kum/mpmsim/internal/sched"
	"github.com/san-kum/mpmsim/internal/shape"
	"github.com/san-kum/mpmsim/internal/telemetry"
	"gonum.org/v1/gonum/spatial/r3"
)

// Observer is notified at save points of a run.
type Observer interface {
	OnSave(d *Domain, step int) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(d *Domain, step int) error

func (f ObserverFunc) OnSave(d *Domain, step int) error { return f(d, step) }

// Domain is one simulation. It is not safe for concurrent use; the solver
// parallelises internally.
type Domain struct {
	cfg Config

	grid      *grid.Grid
	shape     *shape.Func
	particles *particle.Store
	bcs       *boundary.Registry

	pool     *sched.Pool
	partials *grid.PartialPool
	stencils []shape.Stencil
	boxes    []grid.Box
	box      grid.Box

	observers []Observer
	log       *slog.Logger
	perf      *telemetry.Timer

	step      int
	lastSaved int
}

// New validates cfg, allocates the grid and starts the worker pool.
func New(cfg Config) (*Domain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g, err := grid.New(cfg.Dims(), cfg.Cell)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	f, err := shape.New(cfg.Kernel, cfg.Dims(), cfg.Cell)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	pool := sched.New(cfg.Workers)
	cfg.Workers = pool.Workers()

	return &Domain{
		cfg:       cfg,
		grid:      g,
		shape:     f,
		particles: particle.NewStore(),
		bcs:       boundary.NewRegistry(cfg.Dims()),
		pool:      pool,
		partials:  grid.NewPartialPool(),
		boxes:     make([]grid.Box, pool.Workers()),
		box:       grid.EmptyBox(),
		log:       slog.Default(),
		perf:      telemetry.NewTimer(100),
		lastSaved: -1,
	}, nil
}

// Close stops the worker pool.
func (d *Domain) Close() { d.pool.Close() }

func (d *Domain) Config() Config                 { return d.cfg }
func (d *Domain) Grid() *grid.Grid               { return d.grid }
func (d *Domain) Boundaries() *boundary.Registry { return d.bcs }
func (d *Domain) Store() *particle.Store         { return d.particles }
func (d *Domain) Particles() []particle.Particle { return d.particles.All() }
func (d *Domain) Steps() int                     { return d.step }
func (d *Domain) Time() float64                  { return float64(d.step) * d.cfg.Dt }
func (d *Domain) Perf() telemetry.Stats          { return d.perf.Stats() }
func (d *Domain) ActiveBox() grid.Box            { return d.box }
func (d *Domain) AddObserver(o Observer)         { d.observers = append(d.observers, o) }
func (d *Domain) SetMinChunk(n int)              { d.pool.SetMinChunk(n) }

// Stencil returns the current stencil of particle i.
func (d *Domain) Stencil(i int) (shape.Stencil, error) {
	var s shape.Stencil
	err := d.shape.Compute(d.particles.At(i).X, &s)
	return s, err
}

// SetLogger replaces the default slog logger.
func (d *Domain) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	d.log = l
}

// AddParticles appends particles after checking that each one is valid and
// that its full stencil lies inside the grid.
func (d *Domain) AddParticles(ps ...particle.Particle) error {
	var s shape.Stencil
	for i := range ps {
		if err := ps[i].Validate(); err != nil {
			return fmt.Errorf("%w: particle %d: %v", ErrInvalidState, d.particles.Len()+i, err)
		}
		if err := d.shape.Compute(ps[i].X, &s); err != nil {
			return fmt.Errorf("particle %d: %w", d.particles.Len()+i, err)
		}
	}
	return d.particles.Add(ps...)
}

// Assign applies a batch material assignment; see particle.Store.Assign.
func (d *Domain) Assign(tag int, a particle.Assignment) (int, error) {
	return d.particles.Assign(tag, a)
}

// SetBoundary assigns c to node (i,j,k), overwriting earlier assignments.
func (d *Domain) SetBoundary(i, j, k int, c boundary.Condition) error {
	return d.bcs.Set(i, j, k, c)
}

// SetBoundaryBox assigns c to every node of the inclusive box [lo, hi].
func (d *Domain) SetBoundaryBox(lo, hi [3]int, c boundary.Condition) (int, error) {
	return d.bcs.SetBox(lo, hi, c)
}

func (d *Domain) SetSlipping(i, j, k int, normal r3.Vec) error {
	return d.bcs.Set(i, j, k, boundary.Slip(normal))
}

func (d *Domain) SetNonSlipping(i, j, k int) error {
	return d.bcs.Set(i, j, k, boundary.NonSlip())
}

func (d *Domain) SetFriction(i, j, k int, normal r3.Vec, mu float64) error {
	return d.bcs.Set(i, j, k, boundary.Friction(normal, mu))
}

func (d *Domain) SetFree(i, j, k int) error {
	return d.bcs.Set(i, j, k, boundary.FreeBC())
}

// CriticalDt estimates the explicit stability limit as the smallest cell
// size over the fastest P-wave speed plus particle speed. It returns +Inf
// without particles.
func (d *Domain) CriticalDt() float64 {
	h := math.Min(d.cfg.Cell.X, math.Min(d.cfg.Cell.Y, d.cfg.Cell.Z))
	speed := 0.0
	for _, p := range d.particles.All() {
		m := p.Model
		c := math.Sqrt((m.K + 4*m.G/3) / p.Density)
		speed = math.Max(speed, c+r3.Norm(p.V))
	}
	if speed == 0 {
		return math.Inf(1)
	}
	return h / speed
}

// Run advances steps MUSL steps. Observers see the state before the first
// step, every saveEvery steps (saveEvery <= 0 disables periodic saves) and
// after the last step. The context is checked between steps only.
func (d *Domain) Run(ctx context.Context, steps, saveEvery int) error {
	if steps < 0 {
		return fmt.Errorf("%w: negative step count %d", ErrInvalidConfig, steps)
	}
	ps := d.particles.All()
	for i := range ps {
		if err := ps[i].Model.Validate(); err != nil {
			return fmt.Errorf("%w: particle %d: %v", ErrInvalidState, i, err)
		}
	}
	if crit := d.CriticalDt(); d.cfg.Dt > crit {
		d.log.Warn("time step exceeds the CFL estimate", "dt", d.cfg.Dt, "critical_dt", crit)
	}
	d.log.Info("run started",
		"steps", steps,
		"save_every", saveEvery,
		"particles", d.particles.Len(),
		"boundary_nodes", d.bcs.Len(),
		"workers", d.pool.Workers(),
		"kernel", d.cfg.Kernel.String(),
	)

	if err := d.save(); err != nil {
		return err
	}
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			d.log.Info("run canceled", "step", d.step)
			return ctx.Err()
		default:
		}

		if err := d.Step(); err != nil {
			d.log.Error("step failed", "error", err)
			return err
		}
		if saveEvery > 0 && d.step%saveEvery == 0 {
			if err := d.save(); err != nil {
				return err
			}
		}
	}
	if err := d.save(); err != nil {
		return err
	}

	d.log.Info("run finished", "step", d.step, "time", d.Time(), "perf", d.perf.Stats())
	return nil
}

func (d *Domain) save() error {
	if d.step == d.lastSaved {
		return nil
	}
	d.lastSaved = d.step
	d.log.Debug("save point", "step", d.step)
	for _, o := range d.observers {
		if err := o.OnSave(d, d.step); err != nil {
			return fmt.Errorf("observer at step %d: %w", d.step, err)
		}
	}
	return nil
}
