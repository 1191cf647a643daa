// Package experiment turns a scenario configuration into a ready domain and
// drives a recorded run of it.
package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/mpmsim/internal/config"
	"github.com/san-kum/mpmsim/internal/material"
	"github.com/san-kum/mpmsim/internal/mpm"
	"github.com/san-kum/mpmsim/internal/particle"
	"github.com/san-kum/mpmsim/internal/shape"
	"github.com/san-kum/mpmsim/internal/storage"
	"gonum.org/v1/gonum/spatial/r3"
)

// SolverConfig maps the grid, time and solver sections onto mpm.Config.
func SolverConfig(cfg *config.Config) (mpm.Config, error) {
	kind, err := shape.ParseKind(cfg.Grid.Kernel)
	if err != nil {
		return mpm.Config{}, fmt.Errorf("%w: %v", mpm.ErrInvalidConfig, err)
	}
	n, c := cfg.Grid.Nodes, cfg.Grid.Cell
	return mpm.Config{
		Nx: n[0], Ny: n[1], Nz: n[2],
		Cell:    r3.Vec{X: c[0], Y: c[1], Z: c[2]},
		Kernel:  kind,
		Dt:      cfg.Time.Dt,
		Damping: cfg.Solver.Damping,
		Workers: cfg.Solver.Workers,
	}, nil
}

// Build creates the domain of cfg: particles of every region with their
// material, body force and initial stress, and the boundary boxes in file
// order so later boxes override earlier ones.
func Build(cfg *config.Config) (*mpm.Domain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mc, err := SolverConfig(cfg)
	if err != nil {
		return nil, err
	}
	d, err := mpm.New(mc)
	if err != nil {
		return nil, err
	}

	for i, r := range cfg.Regions {
		if err := addRegion(d, cfg.Scales, r); err != nil {
			d.Close()
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
	}
	for i, b := range cfg.Boundaries {
		c, err := b.Condition()
		if err == nil {
			_, err = d.SetBoundaryBox(b.Lo, b.Hi, c)
		}
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("boundary %d: %w", i, err)
		}
	}
	return d, nil
}

func addRegion(d *mpm.Domain, s config.Scales, r config.Region) error {
	cell := d.Config().Cell
	rho := s.Density(r.Density)
	vol := r.Ratio * cell.X * r.Ratio * cell.Y * r.Ratio * cell.Z

	ps, err := particle.Box(r.Tag, config.Vec(r.Origin), config.Vec(r.Extent), cell, r.Ratio, rho*vol)
	if err != nil {
		return err
	}
	model, err := material.NewDruckerPrager(r.Material.Params(s))
	if err != nil {
		return err
	}

	body := r3.Scale(s.Acceleration(1), config.Vec(r.Gravity))
	a := particle.Assignment{Model: model, Body: body, Damping: r.Damping}
	if r.Stress.Mode == config.StressGeostatic {
		surface := r.Origin[2] + r.Extent[2]
		if r.Stress.Surface != nil {
			surface = *r.Stress.Surface
		}
		k0 := material.K0(model.Poisson)
		if r.Stress.K0 != nil {
			k0 = *r.Stress.K0
		}
		a.Stress = particle.Geostatic(surface, body.Z, rho, k0)
	}

	// Assign on a scratch store so regions sharing a tag keep their own setup.
	scratch := particle.NewStore()
	if err := scratch.Add(ps...); err != nil {
		return err
	}
	if _, err := scratch.Assign(-1, a); err != nil {
		return err
	}
	v := r3.Scale(s.Velocity(1), config.Vec(r.Velocity))
	seeded := scratch.All()
	for i := range seeded {
		seeded[i].V = v
	}
	return d.AddParticles(seeded...)
}

// Experiment is one configured scenario ready to run.
type Experiment struct {
	cfg    *config.Config
	domain *mpm.Domain
	log    *slog.Logger
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{cfg: cfg, log: slog.Default()}
}

func (e *Experiment) SetLogger(l *slog.Logger) { e.log = l }

// Setup builds the domain. It must be called before Run.
func (e *Experiment) Setup() error {
	d, err := Build(e.cfg)
	if err != nil {
		return err
	}
	d.SetLogger(e.log)
	e.domain = d
	e.log.Info("scenario built",
		"name", e.cfg.Name,
		"particles", len(d.Particles()),
		"boundary_nodes", d.Boundaries().Len(),
		"critical_dt", d.CriticalDt(),
	)
	return nil
}

// Domain returns the built domain, or nil before Setup.
func (e *Experiment) Domain() *mpm.Domain { return e.domain }

func (e *Experiment) Config() *config.Config { return e.cfg }

// Run advances the configured number of steps. When store is non-nil the
// run is recorded into a new run directory, which is returned.
func (e *Experiment) Run(ctx context.Context, store *storage.Store, observers ...mpm.Observer) (*storage.Run, error) {
	if e.domain == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	steps, every := e.cfg.Time.Steps, e.cfg.Time.SaveEvery

	var run *storage.Run
	if store != nil {
		var err error
		run, err = store.Create(e.cfg.Name, e.cfg)
		if err != nil {
			return nil, err
		}
		run.Snapshots = e.cfg.Output.Snapshots
		run.SetLogger(e.log)
		if err := run.Begin(e.domain, steps, every); err != nil {
			run.Close()
			return nil, err
		}
		e.domain.AddObserver(run)
	}
	for _, o := range observers {
		e.domain.AddObserver(o)
	}

	runErr := e.domain.Run(ctx, steps, every)
	if run != nil {
		if err := run.Finish(e.domain, runErr); err != nil {
			e.log.Error("finishing run record", "run", run.ID, "error", err)
		}
	}
	return run, runErr
}

// Close releases the domain's workers.
func (e *Experiment) Close() {
	if e.domain != nil {
		e.domain.Close()
	}
}
