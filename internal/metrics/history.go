package metrics

import (
	"fmt"

	"github.com/san-kum/mpmsim/internal/material"
	"github.com/san-kum/mpmsim/internal/particle"
)

// Sample is one row of a run's history.
type Sample struct {
	Step             int     `csv:"step" json:"step"`
	Time             float64 `csv:"time" json:"time"`
	KineticEnergy    float64 `csv:"kinetic_energy" json:"kinetic_energy"`
	MomentumX        float64 `csv:"momentum_x" json:"momentum_x"`
	MomentumY        float64 `csv:"momentum_y" json:"momentum_y"`
	MomentumZ        float64 `csv:"momentum_z" json:"momentum_z"`
	MaxSpeed         float64 `csv:"max_speed" json:"max_speed"`
	PlasticFraction  float64 `csv:"plastic_fraction" json:"plastic_fraction"`
	MaxPlasticStrain float64 `csv:"max_plastic_strain" json:"max_plastic_strain"`
	MeanSzz          float64 `csv:"mean_szz" json:"mean_szz"`
	MeanPressure     float64 `csv:"mean_pressure" json:"mean_pressure"`
	MobilizedAngle   float64 `csv:"mobilized_friction" json:"mobilized_friction"`
}

// Columns lists the numeric history columns that can be plotted.
var Columns = []string{
	"kinetic_energy", "momentum_x", "momentum_y", "momentum_z", "max_speed",
	"plastic_fraction", "max_plastic_strain", "mean_szz", "mean_pressure",
	"mobilized_friction",
}

// Column returns the value of a named history column.
func (s Sample) Column(name string) (float64, error) {
	switch name {
	case "time":
		return s.Time, nil
	case "kinetic_energy":
		return s.KineticEnergy, nil
	case "momentum_x":
		return s.MomentumX, nil
	case "momentum_y":
		return s.MomentumY, nil
	case "momentum_z":
		return s.MomentumZ, nil
	case "max_speed":
		return s.MaxSpeed, nil
	case "plastic_fraction":
		return s.PlasticFraction, nil
	case "max_plastic_strain":
		return s.MaxPlasticStrain, nil
	case "mean_szz":
		return s.MeanSzz, nil
	case "mean_pressure":
		return s.MeanPressure, nil
	case "mobilized_friction":
		return s.MobilizedAngle, nil
	}
	return 0, fmt.Errorf("metrics: unknown column %q", name)
}

// Recorder builds history samples, reusing its metric buffers.
type Recorder struct {
	ke      *KineticEnergy
	mom     *Momentum
	speed   *MaxSpeed
	plastic *PlasticFraction
	szz     *MeanStress
	mob     *MobilizedFriction
}

func NewRecorder() *Recorder {
	return &Recorder{
		ke:      NewKineticEnergy(),
		mom:     NewMomentum(),
		speed:   NewMaxSpeed(),
		plastic: NewPlasticFraction(),
		szz:     NewMeanStress(2),
		mob:     NewMobilizedFriction(),
	}
}

// Sample reduces ps to one history row.
func (r *Recorder) Sample(step int, t float64, ps []particle.Particle) Sample {
	for _, m := range []Metric{r.ke, r.mom, r.speed, r.plastic, r.szz, r.mob} {
		m.Reset()
		m.Observe(ps)
	}

	s := Sample{
		Step:            step,
		Time:            t,
		KineticEnergy:   r.ke.Value(),
		MomentumX:       r.mom.Total.X,
		MomentumY:       r.mom.Total.Y,
		MomentumZ:       r.mom.Total.Z,
		MaxSpeed:        r.speed.Value(),
		PlasticFraction: r.plastic.Value(),
		MeanSzz:         r.szz.Value(),
		MobilizedAngle:  r.mob.Value(),
	}

	vol := 0.0
	for i := range ps {
		s.MaxPlasticStrain = max(s.MaxPlasticStrain, ps[i].PlasticStrain)
		i1, _ := material.Invariants(ps[i].Stress)
		s.MeanPressure += -i1 / 3 * ps[i].Vol
		vol += ps[i].Vol
	}
	if vol > 0 {
		s.MeanPressure /= vol
	}
	return s
}
