package tensor

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestMat3Det(t *testing.T) {
	tests := []struct {
		name string
		m    Mat3
		want float64
	}{
		{"identity", Identity(), 1},
		{"diag", Diag(2, 3, 4), 24},
		{"singular", Mat3{{1, 2, 3}, {2, 4, 6}, {0, 1, 1}}, 0},
		{"general", Mat3{{2, 0, 1}, {1, 3, 2}, {1, 1, 2}}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Det(); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("expected det %f, got %f", tt.want, got)
			}
		})
	}
}

func TestMat3SymSkewSplit(t *testing.T) {
	m := Mat3{{1, 2, 3}, {4, 5, 6}, {7, 8, 10}}
	sum := m.Sym().Add(m.Skew())
	if sum.Sub(m).Norm() > 1e-14 {
		t.Errorf("sym+skew should recover matrix, got %v", sum)
	}
	if !m.Sym().Symmetric(0) {
		t.Error("sym part should be symmetric")
	}
	if math.Abs(m.Skew().Trace()) > 0 {
		t.Error("skew part should be traceless")
	}
}

func TestMat3Dev(t *testing.T) {
	m := Diag(-3, -3, -6)
	d := m.Dev()
	if math.Abs(d.Trace()) > 1e-14 {
		t.Errorf("deviator should be traceless, got trace %g", d.Trace())
	}
	if d[2][2] != -2 {
		t.Errorf("expected -2, got %f", d[2][2])
	}
}

func TestOuterMulVec(t *testing.T) {
	a := r3.Vec{X: 1, Y: 2, Z: 3}
	b := r3.Vec{X: 0, Y: 1, Z: 0}
	m := Outer(a, b)
	got := m.MulVec(b)
	if got != a {
		t.Errorf("expected %v, got %v", a, got)
	}
}

func TestIsFinite(t *testing.T) {
	m := Identity()
	if !m.IsFinite() {
		t.Error("identity should be finite")
	}
	m[1][2] = math.NaN()
	if m.IsFinite() {
		t.Error("NaN entry should be detected")
	}
	if VecFinite(r3.Vec{X: math.Inf(1)}) {
		t.Error("Inf component should be detected")
	}
}
