package metrics

import (
	"github.com/san-kum/mpmsim/internal/particle"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// MaxSpeed is the largest particle speed of the last sample.
type MaxSpeed struct {
	name  string
	buf   []float64
	value float64
}

func NewMaxSpeed() *MaxSpeed {
	return &MaxSpeed{name: "max_speed"}
}

func (m *MaxSpeed) Name() string { return m.name }

func (m *MaxSpeed) Observe(ps []particle.Particle) {
	if len(ps) == 0 {
		m.value = 0
		return
	}
	m.buf = m.buf[:0]
	for i := range ps {
		m.buf = append(m.buf, r3.Norm(ps[i].V))
	}
	m.value = floats.Max(m.buf)
}

func (m *MaxSpeed) Value() float64 { return m.value }
func (m *MaxSpeed) Reset()         { m.value = 0 }

// PlasticFraction is the share of particles that yielded in their last
// stress update.
type PlasticFraction struct {
	name     string
	yielding int
	total    int
}

func NewPlasticFraction() *PlasticFraction {
	return &PlasticFraction{name: "plastic_fraction"}
}

func (p *PlasticFraction) Name() string { return p.name }

func (p *PlasticFraction) Observe(ps []particle.Particle) {
	p.yielding, p.total = 0, len(ps)
	for i := range ps {
		if ps[i].Yielding {
			p.yielding++
		}
	}
}

func (p *PlasticFraction) Value() float64 {
	if p.total == 0 {
		return 0
	}
	return float64(p.yielding) / float64(p.total)
}

func (p *PlasticFraction) Reset() {
	p.yielding = 0
	p.total = 0
}
