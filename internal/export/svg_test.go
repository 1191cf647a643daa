package export

import (
	"strings"
	"testing"

	"github.com/san-kum/mpmsim/internal/metrics"
	"github.com/san-kum/mpmsim/internal/storage"
	"github.com/san-kum/mpmsim/internal/viz"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestField(t *testing.T) {
	p := storage.ParticleRow{Tag: 2, VX: 3, VZ: 4, Sxx: -1, Syy: -2, Szz: -3, PlasticStrain: 0.1, DetF: 0.9, Mobilized: 30}
	tests := []struct {
		name string
		want float64
	}{
		{"szz", -3},
		{"sxx", -1},
		{"pressure", 2},
		{"plastic_strain", 0.1},
		{"speed", 5},
		{"det_f", 0.9},
		{"mobilized_friction", 30},
		{"tag", 2},
	}
	for _, tt := range tests {
		got, err := Field(p, tt.name)
		if err != nil || got != tt.want {
			t.Errorf("%s: expected %g, got %g (%v)", tt.name, tt.want, got, err)
		}
	}
	if _, err := Field(p, "colour"); err == nil {
		t.Error("expected error for unknown field")
	}
	if len(Fields) != len(tests) {
		t.Errorf("Fields lists %d names, tested %d", len(Fields), len(tests))
	}
}

func TestParticlesToSVG(t *testing.T) {
	rows := []storage.ParticleRow{
		{X: 1, Z: 1, Szz: -10},
		{X: 9, Z: 4, Szz: 0},
	}
	svg, err := ParticlesToSVG(rows, r3.Vec{X: 10, Y: 10, Z: 5}, viz.PlaneXZ, "szz", 200)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>") {
		t.Error("not an svg document")
	}
	if strings.Count(svg, "<circle") != 2 {
		t.Errorf("expected 2 particles, got %d", strings.Count(svg, "<circle"))
	}
	if !strings.Contains(svg, `height="100"`) {
		t.Error("height should follow the aspect ratio of the plane")
	}
	// lowest value blue, highest red
	if !strings.Contains(svg, `fill="#2040ff"`) || !strings.Contains(svg, `fill="#ff3020"`) {
		t.Errorf("unexpected colours:\n%s", svg)
	}
	if !strings.Contains(svg, `cx="20.0" cy="80.0"`) {
		t.Errorf("first particle misplaced:\n%s", svg)
	}

	if _, err := ParticlesToSVG(rows, r3.Vec{}, viz.PlaneXZ, "szz", 200); err == nil {
		t.Error("expected error for empty extent")
	}
	if _, err := ParticlesToSVG(rows, r3.Vec{X: 1, Z: 1}, viz.PlaneXZ, "bogus", 200); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestHistoryToSVG(t *testing.T) {
	history := []metrics.Sample{
		{Step: 0, KineticEnergy: 0},
		{Step: 10, KineticEnergy: 2},
		{Step: 20, KineticEnergy: 1},
	}
	svg, err := HistoryToSVG(history, "kinetic_energy", 100, 50, "#00ff00")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(svg, "M0.0,") || strings.Count(svg, " L") != 2 {
		t.Errorf("unexpected path:\n%s", svg)
	}

	if _, err := HistoryToSVG(history[:1], "kinetic_energy", 100, 50, "#fff"); err == nil {
		t.Error("expected error for a single sample")
	}
	if _, err := HistoryToSVG(history, "nope", 100, 50, "#fff"); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestCanvasToSVG(t *testing.T) {
	if CanvasToSVG(nil, 1) != "" {
		t.Error("nil canvas should render nothing")
	}
	c := viz.NewCanvas(2, 2)
	c.Set(0, 0)
	c.Set(3, 7)
	svg := CanvasToSVG(c, 2)
	if strings.Count(svg, "<circle") != 2 {
		t.Errorf("expected 2 dots, got %d", strings.Count(svg, "<circle"))
	}
	if !strings.Contains(svg, `cx="7.0" cy="15.0"`) {
		t.Errorf("dot misplaced:\n%s", svg)
	}
}
