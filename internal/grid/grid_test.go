package grid

import (
	"math/rand"
	"testing"

	"github.com/san-kum/mpmsim/internal/sched"
	"github.com/san-kum/mpmsim/internal/shape"
	"github.com/san-kum/mpmsim/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestNewRejects(t *testing.T) {
	_, err := New([3]int{1, 4, 4}, r3.Vec{X: 1, Y: 1, Z: 1})
	assert.Error(t, err)
	_, err = New([3]int{4, 4, 4}, r3.Vec{X: 1, Y: 0, Z: 1})
	assert.Error(t, err)
}

func TestIndexRoundTrip(t *testing.T) {
	g, err := New([3]int{3, 4, 5}, r3.Vec{X: 0.5, Y: 1, Z: 2})
	require.NoError(t, err)
	for n := 0; n < g.Len(); n++ {
		i, j, k := g.Coords(n)
		require.Equal(t, n, g.Index(i, j, k))
	}
	assert.Equal(t, r3.Vec{X: 1, Y: 3, Z: 8}, g.Position(g.Index(2, 3, 4)))
	assert.Equal(t, r3.Vec{X: 1, Y: 3, Z: 8}, g.Extent())
}

func TestBox(t *testing.T) {
	b := EmptyBox()
	assert.True(t, b.Empty())
	assert.Zero(t, b.Len())

	s := shape.Stencil{Base: [3]int{2, 3, 4}, Width: 3}
	b = b.ExtendStencil(&s)
	assert.Equal(t, Box{Lo: [3]int{2, 3, 4}, Hi: [3]int{5, 6, 7}}, b)
	assert.Equal(t, 27, b.Len())

	for n := 0; n < b.Len(); n++ {
		i, j, k := b.Coord(n)
		require.Equal(t, n, b.Local(i, j, k))
	}

	u := b.Union(Box{Lo: [3]int{0, 5, 5}, Hi: [3]int{1, 9, 6}})
	assert.Equal(t, Box{Lo: [3]int{0, 3, 4}, Hi: [3]int{5, 9, 7}}, u)
	assert.Equal(t, b, b.Union(EmptyBox()))
	assert.Equal(t, b, EmptyBox().Union(b))
}

// scatterAll splits particles into one partial per chunk and reduces.
func scatterAll(t *testing.T, pool *sched.Pool, g *Grid, f *shape.Func, xs, vs []r3.Vec, m float64) Box {
	t.Helper()
	stencils := make([]shape.Stencil, len(xs))
	box := EmptyBox()
	for i, x := range xs {
		require.NoError(t, f.Compute(x, &stencils[i]))
		box = box.ExtendStencil(&stencils[i])
	}

	pp := NewPartialPool()
	parts := make([]*Partial, pool.Workers())
	for w := range parts {
		parts[w] = pp.Get()
		parts[w].Reset(box)
	}
	pool.For(len(xs), func(w, lo, hi int) {
		for i := lo; i < hi; i++ {
			parts[w].Scatter(&stencils[i], &Contribution{
				Mass:     m,
				Momentum: r3.Scale(m, vs[i]),
			})
		}
	})
	g.Reduce(pool, box, parts)
	for _, p := range parts {
		pp.Put(p)
	}
	return box
}

func TestScatterConservesMassAndMomentum(t *testing.T) {
	for _, kind := range []shape.Kind{shape.Linear, shape.Quadratic, shape.Cubic} {
		t.Run(kind.String(), func(t *testing.T) {
			pool := sched.New(4)
			defer pool.Close()
			pool.SetMinChunk(8)

			cell := r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
			g, err := New([3]int{12, 12, 12}, cell)
			require.NoError(t, err)
			f, err := shape.New(kind, g.Dims, cell)
			require.NoError(t, err)

			rng := rand.New(rand.NewSource(11))
			n := 200
			xs := make([]r3.Vec, n)
			vs := make([]r3.Vec, n)
			var want r3.Vec
			for i := range xs {
				xs[i] = r3.Vec{X: 1.5 + 2*rng.Float64(), Y: 1.5 + 2*rng.Float64(), Z: 1.5 + 2*rng.Float64()}
				vs[i] = r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
				want = r3.Add(want, r3.Scale(0.3, vs[i]))
			}

			box := scatterAll(t, pool, g, f, xs, vs, 0.3)
			assert.InDelta(t, 0.3*float64(n), g.TotalMass(box), 1e-10)
			got := g.TotalMomentum(box)
			assert.InDelta(t, want.X, got.X, 1e-10)
			assert.InDelta(t, want.Y, got.Y, 1e-10)
			assert.InDelta(t, want.Z, got.Z, 1e-10)
		})
	}
}

func TestReduceIsDeterministic(t *testing.T) {
	cell := r3.Vec{X: 1, Y: 1, Z: 1}
	f, err := shape.New(shape.Quadratic, [3]int{10, 10, 10}, cell)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(5))
	xs := make([]r3.Vec, 300)
	vs := make([]r3.Vec, 300)
	for i := range xs {
		xs[i] = r3.Vec{X: 2 + 5*rng.Float64(), Y: 2 + 5*rng.Float64(), Z: 2 + 5*rng.Float64()}
		vs[i] = r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
	}

	run := func() []r3.Vec {
		pool := sched.New(3)
		defer pool.Close()
		pool.SetMinChunk(10)
		g, err := New([3]int{10, 10, 10}, cell)
		require.NoError(t, err)
		scatterAll(t, pool, g, f, xs, vs, 1)
		return append([]r3.Vec(nil), g.Mom...)
	}

	a, b := run(), run()
	assert.Equal(t, a, b)
}

func TestInternalForceOfUniformStressVanishesInside(t *testing.T) {
	cell := r3.Vec{X: 1, Y: 1, Z: 1}
	g, err := New([3]int{8, 8, 8}, cell)
	require.NoError(t, err)
	f, err := shape.New(shape.Linear, g.Dims, cell)
	require.NoError(t, err)

	pool := sched.New(1)
	defer pool.Close()

	var p Partial
	box := Box{Lo: [3]int{0, 0, 0}, Hi: [3]int{8, 8, 8}}
	p.Reset(box)
	sigma := tensor.Diag(-1, -2, -3)
	var s shape.Stencil
	// two particles per cell axis over [2,6)^3
	for k := 0; k < 8; k++ {
		for j := 0; j < 8; j++ {
			for i := 0; i < 8; i++ {
				x := r3.Vec{X: 2.25 + 0.5*float64(i), Y: 2.25 + 0.5*float64(j), Z: 2.25 + 0.5*float64(k)}
				require.NoError(t, f.Compute(x, &s))
				p.Scatter(&s, &Contribution{Mass: 1, VolStress: sigma.Scale(0.125)})
			}
		}
	}
	g.Reduce(pool, box, []*Partial{&p})

	inner := g.Force[g.Index(4, 4, 4)]
	assert.InDelta(t, 0, r3.Norm(inner), 1e-12)

	var total r3.Vec
	for n := range g.Force {
		total = r3.Add(total, g.Force[n])
	}
	assert.InDelta(t, 0, r3.Norm(total), 1e-12)
}

func TestClearOnlyTouchesBox(t *testing.T) {
	g, err := New([3]int{4, 4, 4}, r3.Vec{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)
	for n := range g.Mass {
		g.Mass[n] = 1
	}
	pool := sched.New(2)
	defer pool.Close()

	g.Clear(pool, Box{Lo: [3]int{0, 0, 0}, Hi: [3]int{2, 4, 4}})
	assert.Zero(t, g.Mass[g.Index(1, 3, 3)])
	assert.Equal(t, 1.0, g.Mass[g.Index(2, 0, 0)])
	assert.False(t, g.Active(g.Index(0, 0, 0)))
	assert.True(t, g.Active(g.Index(3, 3, 3)))
}
