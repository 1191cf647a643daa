// Package optim sweeps scenario parameters over a grid of values and ranks
// the runs by a final metric.
package optim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sort"

	"github.com/san-kum/mpmsim/internal/config"
	"github.com/san-kum/mpmsim/internal/experiment"
	"github.com/san-kum/mpmsim/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Setter writes one swept value into a scenario.
type Setter func(cfg *config.Config, v float64)

// Params are the scenario values that can be swept. Material values apply
// to every region and are in the scenario's physical units.
var Params = map[string]Setter{
	"dt":      func(c *config.Config, v float64) { c.Time.Dt = v },
	"damping": func(c *config.Config, v float64) { c.Solver.Damping = v },
	"friction": func(c *config.Config, v float64) {
		for i := range c.Regions {
			c.Regions[i].Material.Friction = v
		}
	},
	"cohesion": func(c *config.Config, v float64) {
		for i := range c.Regions {
			c.Regions[i].Material.Cohesion = v
		}
	},
	"young": func(c *config.Config, v float64) {
		for i := range c.Regions {
			c.Regions[i].Material.Young = v
		}
	},
	"region_damping": func(c *config.Config, v float64) {
		for i := range c.Regions {
			c.Regions[i].Damping = v
		}
	},
}

// ParamNames lists the sweepable parameters in sorted order.
func ParamNames() []string {
	return slices.Sorted(maps.Keys(Params))
}

// Trial is one point of the sweep. Err is set when the scenario was
// invalid or the run failed; Value is then NaN.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	parallel   int
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d parameters but %d ranges", len(params), len(ranges))
	}
	for i, name := range params {
		if _, ok := Params[name]; !ok {
			return nil, fmt.Errorf("optim: unknown parameter %q (known: %v)", name, ParamNames())
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("optim: no values for %q", name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges, parallel: 1}, nil
}

// SetParallel sets how many trials run at once. Each trial has its own
// worker pool, so keep parallel × workers near the CPU count.
func (g *GridSearch) SetParallel(n int) { g.parallel = max(n, 1) }

// Points expands the grid into one parameter map per trial, varying the
// last parameter fastest.
func (g *GridSearch) Points() []map[string]float64 {
	var out []map[string]float64
	var walk func(depth int, current map[string]float64)
	walk = func(depth int, current map[string]float64) {
		if depth == len(g.paramNames) {
			out = append(out, maps.Clone(current))
			return
		}
		for _, v := range g.ranges[depth] {
			current[g.paramNames[depth]] = v
			walk(depth+1, current)
		}
	}
	walk(0, make(map[string]float64))
	return out
}

// Search runs base once per grid point and returns every trial sorted by
// ascending metric value, failed trials last. The metric is read from the
// final particle state.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metricName string) ([]Trial, error) {
	points := g.Points()
	trials := make([]Trial, len(points))
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallel)
	for i, p := range points {
		eg.Go(func() error {
			v, err := g.evaluate(ctx, base, p, metricName, quiet)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			trials[i] = Trial{Params: p, Value: v, Err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(trials, func(a, b int) bool {
		ta, tb := trials[a], trials[b]
		if (ta.Err == nil) != (tb.Err == nil) {
			return ta.Err == nil
		}
		return ta.Value < tb.Value
	})
	return trials, nil
}

func (g *GridSearch) evaluate(ctx context.Context, base *config.Config, p map[string]float64, metricName string, log *slog.Logger) (float64, error) {
	cfg := base.Clone()
	for name, v := range p {
		Params[name](cfg, v)
	}

	exp := experiment.New(cfg)
	exp.SetLogger(log)
	if err := exp.Setup(); err != nil {
		return math.NaN(), err
	}
	defer exp.Close()

	if _, err := exp.Run(ctx, nil); err != nil {
		return math.NaN(), err
	}
	vals := metrics.Values(metrics.Default(), exp.Domain().Particles())
	v, ok := vals[metricName]
	if !ok {
		return math.NaN(), fmt.Errorf("optim: unknown metric %q", metricName)
	}
	return v, nil
}
