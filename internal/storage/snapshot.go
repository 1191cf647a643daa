package storage

import (
	"fmt"
	"math"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/san-kum/mpmsim/internal/grid"
	"github.com/san-kum/mpmsim/internal/material"
	"github.com/san-kum/mpmsim/internal/mpm"
	"github.com/san-kum/mpmsim/internal/particle"
)

// ParticleRow is one particle in a snapshot file.
type ParticleRow struct {
	ID            int     `csv:"id"`
	Tag           int     `csv:"tag"`
	X             float64 `csv:"x"`
	Y             float64 `csv:"y"`
	Z             float64 `csv:"z"`
	VX            float64 `csv:"vx"`
	VY            float64 `csv:"vy"`
	VZ            float64 `csv:"vz"`
	Mass          float64 `csv:"mass"`
	Volume        float64 `csv:"volume"`
	Density       float64 `csv:"density"`
	Sxx           float64 `csv:"sxx"`
	Syy           float64 `csv:"syy"`
	Szz           float64 `csv:"szz"`
	Sxy           float64 `csv:"sxy"`
	Syz           float64 `csv:"syz"`
	Sxz           float64 `csv:"sxz"`
	DetF          float64 `csv:"det_f"`
	PlasticStrain float64 `csv:"plastic_strain"`
	Yielding      bool    `csv:"yielding"`
	Mobilized     float64 `csv:"mobilized_friction"` // degrees
}

// NodeRow is one active grid node in a snapshot file.
type NodeRow struct {
	I        int     `csv:"i"`
	J        int     `csv:"j"`
	K        int     `csv:"k"`
	Mass     float64 `csv:"mass"`
	VX       float64 `csv:"vx"`
	VY       float64 `csv:"vy"`
	VZ       float64 `csv:"vz"`
	FX       float64 `csv:"fx"`
	FY       float64 `csv:"fy"`
	FZ       float64 `csv:"fz"`
	Boundary string  `csv:"boundary"`
}

func particleFile(step int) string { return fmt.Sprintf("particles_%06d.csv", step) }
func gridFile(step int) string     { return fmt.Sprintf("grid_%06d.csv", step) }

func particleRows(ps []particle.Particle) []ParticleRow {
	rows := make([]ParticleRow, len(ps))
	for i := range ps {
		p := &ps[i]
		rows[i] = ParticleRow{
			ID: i, Tag: p.Tag,
			X: p.X.X, Y: p.X.Y, Z: p.X.Z,
			VX: p.V.X, VY: p.V.Y, VZ: p.V.Z,
			Mass: p.Mass, Volume: p.Vol, Density: p.Density,
			Sxx: p.Stress[0][0], Syy: p.Stress[1][1], Szz: p.Stress[2][2],
			Sxy: p.Stress[0][1], Syz: p.Stress[1][2], Sxz: p.Stress[0][2],
			DetF:          p.F.Det(),
			PlasticStrain: p.PlasticStrain,
			Yielding:      p.Yielding,
			Mobilized:     material.Mobilized(p.Stress) * 180 / math.Pi,
		}
	}
	return rows
}

// nodeRows lists the active nodes of the domain's active box.
func nodeRows(d *mpm.Domain) []NodeRow {
	g, box := d.Grid(), d.ActiveBox()
	rows := make([]NodeRow, 0, box.Len())
	for n := 0; n < box.Len(); n++ {
		idx := g.Index(box.Coord(n))
		if g.Mass[idx] <= grid.MassEpsilon {
			continue
		}
		node := g.Node(idx)
		bc := "free"
		if c, ok := d.Boundaries().Get(idx); ok {
			bc = c.Kind.String()
		}
		rows = append(rows, NodeRow{
			I:        node.I,
			J:        node.J,
			K:        node.K,
			Mass:     node.Mass,
			VX:       node.Velocity.X,
			VY:       node.Velocity.Y,
			VZ:       node.Velocity.Z,
			FX:       node.Force.X,
			FY:       node.Force.Y,
			FZ:       node.Force.Z,
			Boundary: bc,
		})
	}
	return rows
}

func writeCSV(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(rows, f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
