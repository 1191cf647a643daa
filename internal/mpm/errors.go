package mpm

import (
	"errors"
	"fmt"

	"github.com/san-kum/mpmsim/internal/shape"
)

// Domain errors for solver operations.
var (
	// ErrInvalidConfig indicates a domain configuration that cannot be built.
	ErrInvalidConfig = errors.New("mpm: invalid configuration")

	// ErrOutOfBounds indicates a particle whose stencil leaves the grid.
	ErrOutOfBounds = shape.ErrOutOfBounds

	// ErrUnstable indicates the run diverged (NaN/Inf or inverted elements).
	ErrUnstable = errors.New("mpm: simulation unstable (state diverged)")

	// ErrInvalidState indicates particle data rejected at setup time.
	ErrInvalidState = errors.New("mpm: invalid particle state")
)

// StepError wraps a runtime failure with the step, phase and particle that
// produced it. Particle is -1 for failures not tied to one particle.
type StepError struct {
	Step     int
	Phase    string
	Particle int
	Err      error
}

func (e *StepError) Error() string {
	if e.Particle < 0 {
		return fmt.Sprintf("step %d (%s): %v", e.Step, e.Phase, e.Err)
	}
	return fmt.Sprintf("step %d (%s), particle %d: %v", e.Step, e.Phase, e.Particle, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
