package material

import (
	"math"
	"sort"

	"github.com/san-kum/mpmsim/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// Principal returns the principal values of the symmetric stress s in
// ascending order (most compressive first).
func Principal(s tensor.Mat3) ([3]float64, bool) {
	sym := mat.NewSymDense(3, []float64{
		s[0][0], s[0][1], s[0][2],
		s[0][1], s[1][1], s[1][2],
		s[0][2], s[1][2], s[2][2],
	})
	var es mat.EigenSym
	if ok := es.Factorize(sym, false); !ok {
		return [3]float64{}, false
	}
	vals := es.Values(nil)
	sort.Float64s(vals)
	return [3]float64{vals[0], vals[1], vals[2]}, true
}

// Mobilized returns the Mohr-Coulomb friction angle mobilized by the
// stress, from its extreme principal values. It is zero for stress states
// without compression.
func Mobilized(s tensor.Mat3) float64 {
	p, ok := Principal(s)
	if !ok {
		return 0
	}
	s1, s3 := -p[0], -p[2] // compression positive
	if s1 <= 0 || s1+s3 <= 0 {
		return 0
	}
	return math.Asin(math.Min(1, (s1-s3)/(s1+s3)))
}
