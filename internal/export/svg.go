// Package export renders saved runs as SVG: particle snapshots coloured by
// a field, history columns as line charts, and the Braille canvas of the
// watch view.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/mpmsim/internal/metrics"
	"github.com/san-kum/mpmsim/internal/storage"
	"github.com/san-kum/mpmsim/internal/viz"
	"gonum.org/v1/gonum/spatial/r3"
)

// Fields lists the particle values a snapshot can be coloured by.
var Fields = []string{"szz", "sxx", "pressure", "plastic_strain", "speed", "det_f", "mobilized_friction", "tag"}

// Field returns the named value of a snapshot row.
func Field(p storage.ParticleRow, name string) (float64, error) {
	switch name {
	case "szz":
		return p.Szz, nil
	case "sxx":
		return p.Sxx, nil
	case "pressure":
		return -(p.Sxx + p.Syy + p.Szz) / 3, nil
	case "plastic_strain":
		return p.PlasticStrain, nil
	case "speed":
		return math.Sqrt(p.VX*p.VX + p.VY*p.VY + p.VZ*p.VZ), nil
	case "det_f":
		return p.DetF, nil
	case "mobilized_friction":
		return p.Mobilized, nil
	case "tag":
		return float64(p.Tag), nil
	}
	return 0, fmt.Errorf("export: unknown field %q", name)
}

// ParticlesToSVG draws a particle snapshot projected onto plane. extent is
// the size of the grid; each particle is a dot coloured from blue (lowest
// value of field) to red (highest).
func ParticlesToSVG(rows []storage.ParticleRow, extent r3.Vec, plane viz.Plane, field string, width int) (string, error) {
	eu, ew := plane.Project(extent)
	if !(eu > 0 && ew > 0) || width <= 0 {
		return "", fmt.Errorf("export: empty drawing area")
	}
	values := make([]float64, len(rows))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, p := range rows {
		v, err := Field(p, field)
		if err != nil {
			return "", err
		}
		values[i] = v
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	span := hi - lo
	if !(span > 0) {
		span = 1
	}

	scale := float64(width) / eu
	height := int(math.Ceil(ew * scale))
	radius := math.Max(scale*0.2, 0.5)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for i, p := range rows {
		u, w := plane.Project(r3.Vec{X: p.X, Y: p.Y, Z: p.Z})
		cx := u * scale
		cy := float64(height) - w*scale
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>
`, cx, cy, radius, ramp((values[i]-lo)/span)))
	}

	sb.WriteString(fmt.Sprintf(`<text x="4" y="14" fill="#cccccc" font-size="12">%s [%.4g, %.4g]</text>
</svg>`, field, lo, hi))
	return sb.String(), nil
}

// HistoryToSVG draws one history column against the step number.
func HistoryToSVG(history []metrics.Sample, column string, width, height int, strokeColor string) (string, error) {
	if len(history) < 2 {
		return "", fmt.Errorf("export: need at least 2 samples, got %d", len(history))
	}
	xs := make([]float64, len(history))
	ys := make([]float64, len(history))
	for i := range history {
		v, err := history[i].Column(column)
		if err != nil {
			return "", err
		}
		xs[i], ys[i] = float64(history[i].Step), v
	}

	minX, maxX := xs[0], xs[len(xs)-1]
	minY, maxY := ys[0], ys[0]
	for _, y := range ys {
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, strokeColor))

	for i := range xs {
		x := (xs[i] - minX) / rangeX * float64(width)
		y := float64(height) - (ys[i]-minY)/rangeY*float64(height)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(fmt.Sprintf(`"/>
<text x="4" y="14" fill="#cccccc" font-size="12">%s</text>
</svg>`, column))
	return sb.String(), nil
}

// CanvasToSVG converts a Braille canvas to SVG, one dot per lit sub-pixel.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	width := float64(canvas.Width) * scale * 2
	height := float64(canvas.Height) * scale * 4

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#00ff88">
`, width, height, width, height))

	dotRadius := scale * 0.4
	for y := 0; y < canvas.Height*4; y++ {
		for x := 0; x < canvas.Width*2; x++ {
			if !canvas.Lit(x, y) {
				continue
			}
			cx := float64(x)*scale + scale/2
			cy := float64(y)*scale + scale/2
			sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f"/>
`, cx, cy, dotRadius))
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// ramp maps t in [0, 1] from blue to red.
func ramp(t float64) string {
	t = math.Min(math.Max(t, 0), 1)
	r := int(0x20 + t*(0xff-0x20))
	g := int(0x40 + t*(0x30-0x40))
	b := int(0xff + t*(0x20-0xff))
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
