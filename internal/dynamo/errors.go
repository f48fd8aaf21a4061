package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for equilibrium and continuation operations.
var (
	// ErrConvergence indicates Newton did not reach the residual tolerance.
	ErrConvergence = errors.New("dynamo: newton iteration did not converge")

	// ErrSingularJacobian indicates an ill-conditioned Jacobian that no damped step could get past.
	ErrSingularJacobian = errors.New("dynamo: jacobian is numerically singular")

	// ErrNoEquilibrium indicates an initial guess did not converge to a steady state.
	ErrNoEquilibrium = errors.New("dynamo: no equilibrium found from guess")

	// ErrStepSizeExhausted indicates continuation could not proceed at the minimum step.
	ErrStepSizeExhausted = errors.New("dynamo: continuation step size below minimum")

	// ErrBoundaryReached indicates continuation left the configured box.
	ErrBoundaryReached = errors.New("dynamo: continuation boundary reached")

	// ErrInvalidConfig indicates a malformed solver or continuation request.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrUnknownParam indicates a parameter name the system does not define.
	ErrUnknownParam = errors.New("dynamo: unknown parameter")

	// ErrInvalidState indicates a state vector with NaN or Inf values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched state and system dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")
)

// SolveError wraps a Newton failure with the iterate it stopped at.
type SolveError struct {
	Iterations int
	Residual   float64
	State      []float64
	Wrapped    error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("%v (iterations=%d, residual=%.3e)", e.Wrapped, e.Iterations, e.Residual)
}

func (e *SolveError) Unwrap() error {
	return e.Wrapped
}
