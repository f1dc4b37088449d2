package bayesopt

import (
	"errors"
	"fmt"
)

//////
// Errors.
//////

var (
	// ErrNotFitted is returned when a Gaussian Process is queried before a
	// successful Fit. It signals a sequencing bug in the caller.
	ErrNotFitted = errors.New("gaussian process is not fitted")

	// ErrNotPositiveDefinite is the cause wrapped by ErrNumericalInstability.
	ErrNotPositiveDefinite = errors.New("covariance matrix is not positive definite")

	// ErrInvalidBounds is returned when a range has Low > High or a
	// non-finite limit.
	ErrInvalidBounds = errors.New("invalid bounds")

	// ErrInvalidKernel is returned for a nil kernel or non-positive kernel
	// hyperparameters.
	ErrInvalidKernel = errors.New("invalid kernel")

	// ErrInvalidConfig is returned when an optimizer configuration value is
	// out of range.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidBest is returned when the incumbent value handed to an
	// acquisition function is not finite.
	ErrInvalidBest = errors.New("best value must be finite")

	// ErrInvalidObservation is returned by Tell for a NaN or infinite objective
	// value.
	ErrInvalidObservation = errors.New("invalid observation")
)

// ErrDimensionMismatch indicates an input/output length or rank mismatch.
type ErrDimensionMismatch struct {
	Op       string
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("%s: dimension mismatch: expected %d, got %d", e.Op, e.Expected, e.Actual)
}

// ErrNumericalInstability indicates that the Cholesky factorization of the
// training covariance failed. Callers usually react by increasing the noise
// or by removing near-duplicate training points.
//
// errors.Is(err, ErrNotPositiveDefinite) reports true.
type ErrNumericalInstability struct {
	Op      string
	Samples int
	Noise   float64
	cause   error
}

func (e *ErrNumericalInstability) Error() string {
	return fmt.Sprintf("%s: numerical instability with %d samples (noise=%g): %v", e.Op, e.Samples, e.Noise, e.cause)
}

func (e *ErrNumericalInstability) Unwrap() error { return e.cause }
