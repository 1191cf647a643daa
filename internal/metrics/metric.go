// Package metrics reduces the particle state of a run to scalar
// diagnostics. Metrics are sampled at save points, not every step.
package metrics

import (
	"github.com/san-kum/mpmsim/internal/particle"
)

// Metric accumulates one scalar over the samples it observes.
type Metric interface {
	Name() string
	Observe(ps []particle.Particle)
	Value() float64
	Reset()
}

// Default returns the metrics recorded for every run.
func Default() []Metric {
	return []Metric{
		NewKineticEnergy(),
		NewMomentum(),
		NewMaxSpeed(),
		NewPlasticFraction(),
		NewMeanStress(2),
		NewMobilizedFriction(),
	}
}

// Values observes ps with every metric and returns name → value.
func Values(ms []Metric, ps []particle.Particle) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		m.Observe(ps)
		out[m.Name()] = m.Value()
	}
	return out
}
