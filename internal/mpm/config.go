package mpm

import (
	"fmt"
	"math"

	"github.com/san-kum/mpmsim/internal/shape"
	"gonum.org/v1/gonum/spatial/r3"
)

// Config describes the lattice and integration settings of a domain.
type Config struct {
	Nx, Ny, Nz int        // node counts
	Cell       r3.Vec     // cell size per axis
	Kernel     shape.Kind // interpolation kernel
	Dt         float64    // time step
	Damping    float64    // global local-damping coefficient, in [0, 1)
	Workers    int        // <= 0 means one per CPU
}

func DefaultConfig() Config {
	return Config{
		Nx:      16,
		Ny:      16,
		Nz:      16,
		Cell:    r3.Vec{X: 1, Y: 1, Z: 1},
		Kernel:  shape.Cubic,
		Dt:      1,
		Damping: 0,
		Workers: 0,
	}
}

// Dims returns the node counts as an array.
func (c Config) Dims() [3]int { return [3]int{c.Nx, c.Ny, c.Nz} }

func (c Config) Validate() error {
	if !c.Kernel.Valid() {
		return fmt.Errorf("%w: unknown kernel %d", ErrInvalidConfig, int(c.Kernel))
	}
	for a, n := range c.Dims() {
		if n < 2 || n < c.Kernel.Width() {
			return fmt.Errorf("%w: axis %d has %d nodes, %s kernel needs at least %d",
				ErrInvalidConfig, a, n, c.Kernel, max(2, c.Kernel.Width()))
		}
	}
	if !(c.Cell.X > 0 && c.Cell.Y > 0 && c.Cell.Z > 0) || math.IsInf(c.Cell.X+c.Cell.Y+c.Cell.Z, 0) {
		return fmt.Errorf("%w: cell size must be positive and finite, got %v", ErrInvalidConfig, c.Cell)
	}
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidConfig, c.Dt)
	}
	if !(c.Damping >= 0 && c.Damping < 1) {
		return fmt.Errorf("%w: damping must lie in [0, 1), got %g", ErrInvalidConfig, c.Damping)
	}
	return nil
}
