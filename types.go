package bayesopt

import (
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
	"golang.org/x/exp/constraints"
)

// Phase names the two states of an Optimizer. The transition from
// PhaseColdStart to PhaseSurrogate happens once and never reverts.
type Phase string

const (
	// PhaseColdStart proposes uniformly random points without consulting
	// the surrogate.
	PhaseColdStart Phase = "ColdStart"

	// PhaseSurrogate proposes the candidate that maximizes the acquisition
	// function under the fitted Gaussian Process.
	PhaseSurrogate Phase = "Surrogate"
)

// ProgressUpdate represents the state of an Optimize run after one
// ask/evaluate/tell step.
type ProgressUpdate struct {
	// Phase the step was proposed in.
	Phase Phase

	// CurrentIteration is the 1-based step number within the run.
	CurrentIteration int

	// TotalIterations is the number of steps the run will take.
	TotalIterations int

	// CurrentParams holds the point evaluated in this step.
	CurrentParams []float64

	// CurrentValue holds the objective value of CurrentParams.
	CurrentValue float64

	// CurrentBestParams holds the best point found so far.
	CurrentBestParams []float64

	// CurrentBestValue holds the best objective value found so far. It is
	// non-increasing over a run.
	CurrentBestValue float64
}

// Range is the closed-open interval [Low, High) of one search dimension.
type Range struct {
	Low  float64
	High float64
}

// Bounds is an axis-aligned box, one Range per dimension.
type Bounds []Range

// Dim returns the dimensionality of the box.
func (b Bounds) Dim() int { return len(b) }

// Validate checks that the box is non-empty and every range is finite with
// Low <= High.
func (b Bounds) Validate() error {
	if len(b) == 0 {
		return &ErrDimensionMismatch{Op: "bounds", Expected: 1, Actual: 0}
	}

	for i, r := range b {
		if math.IsNaN(r.Low) || math.IsNaN(r.High) || math.IsInf(r.Low, 0) || math.IsInf(r.High, 0) {
			return fmt.Errorf("%w: dimension %d is not finite: [%v, %v]", ErrInvalidBounds, i, r.Low, r.High)
		}

		if r.Low > r.High {
			return fmt.Errorf("%w: dimension %d has low %v > high %v", ErrInvalidBounds, i, r.Low, r.High)
		}
	}

	return nil
}

// Contains reports whether x has the box dimensionality and lies inside
// every [Low, High] range.
func (b Bounds) Contains(x []float64) bool {
	if len(x) != len(b) {
		return false
	}

	for i, r := range b {
		if x[i] < r.Low || x[i] > r.High {
			return false
		}
	}

	return true
}

func (b Bounds) clone() Bounds {
	out := make(Bounds, len(b))
	copy(out, b)

	return out
}

// ParameterRange defines the valid range for a typed parameter. It is the
// typed counterpart of Range used by OptimizeParameters.
//
// Usage:
//
//	// Buffer size range from 1KB to 1MB
//	bufferSizeRange := ParameterRange[int64]{Min: 1024, Max: 1048576}
//
//	// Learning rate range from 0.0001 to 0.1
//	learningRateRange := ParameterRange[float64]{Min: 0.0001, Max: 0.1}
//
// Validation:
// - Min must be less than or equal to Max
// - Both ends are inclusive for integer types
type ParameterRange[T constraints.Integer | constraints.Float] struct {
	// Min defines the minimum allowed value (inclusive).
	Min T

	// Max defines the maximum allowed value (inclusive).
	Max T
}

// BoundsFrom converts typed parameter ranges into Bounds.
func BoundsFrom[T constraints.Integer | constraints.Float](ranges ...ParameterRange[T]) Bounds {
	b := make(Bounds, len(ranges))
	for i, r := range ranges {
		b[i] = Range{Low: float64(r.Min), High: float64(r.Max)}
	}

	return b
}

// Observation is one evaluated point of the history.
type Observation struct {
	X []float64
	Y float64
}

// ObjectiveFunc is the black-box function being minimized. It must accept
// points of the bounds dimensionality. Failures are the function's own
// business: the optimizer neither recovers panics nor retries.
type ObjectiveFunc func(x []float64) float64

// BenchmarkFunc is a task whose typed parameters are tuned by measuring how
// long it takes. See BenchmarkObjective.
//
// Usage example:
//
//	intBenchmark := BenchmarkFunc[int64](func(params ...int64) error {
//	    bufferSize := params[0]
//	    workerCount := params[1]
//
//	    return runYourWorkload(bufferSize, workerCount)
//	})
type BenchmarkFunc[T constraints.Integer | constraints.Float] func(params ...T) error

// ParamObjective is an objective over typed parameters, used by
// OptimizeParameters. Lower is better.
type ParamObjective[T constraints.Integer | constraints.Float] func(params ...T) float64

// AcquisitionFunc scores a candidate from its posterior mean and variance.
// Higher scores are more promising. The Optimizer proposes the candidate with
// the highest score.
//
// Built-in acquisition functions:
// - EI: Expected Improvement (default)
// - PI: Probability of Improvement
// - UCB: confidence bound, negated so that higher is better
// - ThompsonSampling: random draw from the marginal posterior
//
// Custom functions should handle zero variance and be deterministic unless
// they draw from params.RandomState.
type AcquisitionFunc func(mean, variance float64, params AcquisitionParams) float64

// AcquisitionParams holds the parameters of the built-in acquisition
// functions.
type AcquisitionParams struct {
	// Beta weighs the standard deviation in UCB. Higher values explore more.
	// Typical values range from 0.1 to 5.0.
	Beta float64

	// Xi is the exploration bonus of EI and PI: the improvement over the
	// incumbent that is taken for granted. Typical values range from 0.01 to
	// 0.1.
	Xi float64

	// BestSoFar is the incumbent (lowest) observed value. The Optimizer sets
	// it before scoring candidates.
	BestSoFar float64

	// RandomState is the generator ThompsonSampling draws from. The
	// Optimizer sets it to its own generator so a run stays reproducible.
	RandomState *rand.Rand
}

// Config holds the configuration of an Optimizer. Start from DefaultConfig
// and override what you need.
//
// Usage example:
//
//	cfg := DefaultConfig()
//	cfg.InitPoints = 10
//	cfg.RandomState = 42
//	cfg.AcquisitionFunc = UCB
//	cfg.AcqParams.Beta = 3.0
type Config struct {
	// InitPoints is the number of observations below which Ask samples
	// uniformly instead of consulting the surrogate.
	InitPoints int

	// AcqSamples is the size of the random candidate pool scored by the
	// acquisition function on every surrogate-driven Ask.
	AcqSamples int

	// Noise is the homoskedastic noise level of the Gaussian Process. Noise²
	// is added to the diagonal of the training covariance.
	Noise float64

	// JitterRetries is how many times Fit retries a failed Cholesky
	// factorization with growing diagonal jitter. Zero disables retries.
	JitterRetries int

	// AcquisitionFunc selects the next point. Defaults to EI.
	AcquisitionFunc AcquisitionFunc

	// AcqParams holds the parameters for the acquisition function.
	AcqParams AcquisitionParams

	// RandomState seeds the generator owned by the Optimizer. Two
	// optimizers with the same seed, bounds, kernel and config produce the
	// same trajectory on the same deterministic objective.
	RandomState uint64

	// ProgressChan receives one update per Optimize step. Sends never block:
	// updates are dropped when the channel is full. If nil, no updates are
	// sent.
	ProgressChan chan<- ProgressUpdate

	// Logger receives debug output. If nil, logging is disabled.
	Logger *zap.Logger
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.InitPoints < 1 {
		return fmt.Errorf("%w: init points must be at least 1, got %d", ErrInvalidConfig, c.InitPoints)
	}

	if c.AcqSamples < 1 {
		return fmt.Errorf("%w: acquisition samples must be at least 1, got %d", ErrInvalidConfig, c.AcqSamples)
	}

	if c.Noise < 0 || math.IsNaN(c.Noise) || math.IsInf(c.Noise, 0) {
		return fmt.Errorf("%w: noise must be finite and non-negative, got %v", ErrInvalidConfig, c.Noise)
	}

	if c.JitterRetries < 0 {
		return fmt.Errorf("%w: jitter retries must be non-negative, got %d", ErrInvalidConfig, c.JitterRetries)
	}

	if c.AcqParams.Xi < 0 || math.IsNaN(c.AcqParams.Xi) {
		return fmt.Errorf("%w: xi must be non-negative, got %v", ErrInvalidConfig, c.AcqParams.Xi)
	}

	return nil
}
