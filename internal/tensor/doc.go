// Package tensor provides the small fixed-size linear algebra used by the
// solver: 3x3 matrices as values and helpers on gonum r3 vectors.
//
// Mat3 is a value type; every operation returns a new matrix and never
// allocates, which keeps per-particle updates free of heap traffic.
package tensor
