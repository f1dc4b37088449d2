package bayesopt

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

//////
// Exported functionalities.
//////

// OptimizeParameters minimizes objective over typed parameter ranges with
// Bayesian optimization and returns the best parameters found and their
// value.
//
// Type Parameter:
//   - T: The numeric type for parameters (any integer or float type)
//
// Usage example:
//
//	ranges := []ParameterRange[int64]{
//	    {Min: 1024, Max: 1048576},  // Buffer size (1KB to 1MB)
//	    {Min: 1, Max: 32},          // Worker count
//	}
//
//	kernel, _ := NewSquaredExponential(50000, 1.0)
//	best, elapsed, err := OptimizeParameters(
//	    DefaultConfig(),
//	    kernel,
//	    30,
//	    BenchmarkObjective(BenchmarkFunc[int64](func(params ...int64) error {
//	        return runWorkload(params[0], params[1])
//	    })),
//	    ranges...,
//	)
//
// How it works:
//  1. The ranges are turned into Bounds and an Optimizer is built
//  2. For each of the nIter steps:
//     - Ask proposes a point
//     - The point is converted to T; integer types are rounded and clamped
//       to their range
//     - The objective is evaluated and the converted point is told, so the
//       surrogate learns from what was actually evaluated
//  3. The best parameters of the history are returned
//
// Important notes:
// - Integer ranges revisit points; keep Noise or JitterRetries large enough
//   for the surrogate to absorb repeated inputs
// - Progress updates are sent on cfg.ProgressChan like in Optimize
func OptimizeParameters[T constraints.Integer | constraints.Float](
	cfg Config,
	kernel Kernel,
	nIter int,
	objective ParamObjective[T],
	ranges ...ParameterRange[T],
) ([]T, float64, error) {
	if nIter < 1 {
		return nil, 0, fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalidConfig, nIter)
	}

	opt, err := New(BoundsFrom(ranges...), kernel, cfg)
	if err != nil {
		return nil, 0, err
	}

	for i := 0; i < nIter; i++ {
		phase := opt.Phase()

		x, err := opt.Ask()
		if err != nil {
			return nil, 0, err
		}

		params := toParams(x, ranges)
		evaluated := paramsToFloat64s(params)
		y := objective(params...)

		if err := opt.Tell(evaluated, y); err != nil {
			return nil, 0, err
		}

		opt.sendProgress(phase, i+1, nIter, evaluated, y)
	}

	best, _ := opt.Best()

	return toParams(best.X, ranges), best.Y, nil
}

// BenchmarkObjective turns a benchmark into an objective whose value is the
// benchmark's execution time in nanoseconds. Failing runs are penalized, see
// measureExecutionTime.
func BenchmarkObjective[T constraints.Integer | constraints.Float](fn BenchmarkFunc[T]) ParamObjective[T] {
	return func(params ...T) float64 {
		return measureExecutionTime(fn, params)
	}
}

// toParams converts a point to typed parameters. Integer types are rounded
// to the nearest value and clamped to their range.
func toParams[T constraints.Integer | constraints.Float](x []float64, ranges []ParameterRange[T]) []T {
	integer := T(1)/T(2) == 0

	params := make([]T, len(x))
	for i, v := range x {
		if integer {
			v = math.Min(math.Max(math.Round(v), float64(ranges[i].Min)), float64(ranges[i].Max))
		}

		params[i] = T(v)
	}

	return params
}

// paramsToFloat64s converts typed parameters back to a point.
func paramsToFloat64s[T constraints.Integer | constraints.Float](params []T) []float64 {
	floats := make([]float64, len(params))
	for i, v := range params {
		floats[i] = float64(v)
	}

	return floats
}
