package metrics

import (
	"github.com/san-kum/mpmsim/internal/particle"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// KineticEnergy is Σ m|v|²/2 of the last observed sample.
type KineticEnergy struct {
	name  string
	buf   []float64
	value float64
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (k *KineticEnergy) Name() string { return k.name }

func (k *KineticEnergy) Observe(ps []particle.Particle) {
	k.buf = k.buf[:0]
	for i := range ps {
		k.buf = append(k.buf, ps[i].KineticEnergy())
	}
	k.value = floats.Sum(k.buf)
}

func (k *KineticEnergy) Value() float64 { return k.value }
func (k *KineticEnergy) Reset()         { k.value = 0 }

// Momentum is the magnitude of Σ m·v. Total tracks the vector itself.
type Momentum struct {
	name  string
	Total r3.Vec
}

func NewMomentum() *Momentum {
	return &Momentum{name: "momentum"}
}

func (m *Momentum) Name() string { return m.name }

func (m *Momentum) Observe(ps []particle.Particle) {
	m.Total = r3.Vec{}
	for i := range ps {
		m.Total = r3.Add(m.Total, ps[i].Momentum())
	}
}

func (m *Momentum) Value() float64 { return r3.Norm(m.Total) }
func (m *Momentum) Reset()         { m.Total = r3.Vec{} }

// EnergyDrift tracks the largest relative change of kinetic energy against
// the first sample after a reset.
type EnergyDrift struct {
	name     string
	ke       KineticEnergy
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(ps []particle.Particle) {
	e.ke.Observe(ps)
	energy := e.ke.Value()
	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++
	if e.initial != 0 {
		drift := (energy - e.initial) / e.initial
		if drift < 0 {
			drift = -drift
		}
		if drift > e.maxDrift {
			e.maxDrift = drift
		}
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}
