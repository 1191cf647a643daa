package mpm_test

import (
	"io"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mpmsim/internal/material"
	"github.com/san-kum/mpmsim/internal/mpm"
	"github.com/san-kum/mpmsim/internal/particle"
	"github.com/san-kum/mpmsim/internal/shape"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestMPM(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MPM Suite")
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func elastic(young float64) material.DruckerPrager {
	m, err := material.NewDruckerPrager(material.Params{
		Young:    young,
		Poisson:  0.3,
		Cohesion: 1,
		Friction: 0.5,
	})
	Expect(err).NotTo(HaveOccurred())
	return m
}

// newDomain builds a unit-cell domain with the given kernel and one
// particle at x.
func newDomain(kind shape.Kind, n int, dt float64, x, v, body r3.Vec) *mpm.Domain {
	cfg := mpm.DefaultConfig()
	cfg.Nx, cfg.Ny, cfg.Nz = n, n, n
	cfg.Kernel = kind
	cfg.Dt = dt
	cfg.Workers = 1
	d, err := mpm.New(cfg)
	Expect(err).NotTo(HaveOccurred())
	d.SetLogger(quiet)

	p := particle.New(0, x, 1, 1)
	p.V = v
	Expect(d.AddParticles(p)).To(Succeed())
	_, err = d.Assign(-1, particle.Assignment{Model: elastic(100), Body: body})
	Expect(err).NotTo(HaveOccurred())
	return d
}

func meanSzz(ps []particle.Particle, pred func(p particle.Particle) bool) float64 {
	sum, n := 0.0, 0
	for _, p := range ps {
		if pred(p) {
			sum += p.Stress[2][2]
			n++
		}
	}
	Expect(n).To(BeNumerically(">", 0))
	return sum / float64(n)
}
