package bayesopt

import (
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

//////
// Const, vars, types.
//////

// Optimizer is an ask/tell Bayesian optimizer minimizing a black-box function
// over a box. It owns the observation history, the Gaussian Process surrogate
// and the random generator that drives candidate sampling.
//
// While the history holds fewer than InitPoints observations, Ask proposes
// uniformly random points. From then on it proposes the candidate with the
// highest acquisition score among AcqSamples uniformly random candidates.
// Every Tell refits the surrogate on the whole history.
//
// An Optimizer is meant for a single caller: it is not safe for concurrent
// use.
type Optimizer struct {
	bounds      Bounds
	cfg         Config
	acquisition AcquisitionFunc
	gp          *GaussianProcess
	rng         *rand.Rand
	logger      *zap.Logger

	// x and y are the append-only observation history.
	x [][]float64
	y []float64
}

//////
// Methods.
//////

// Phase reports the current state: PhaseColdStart until the history holds
// InitPoints observations, PhaseSurrogate afterwards.
func (o *Optimizer) Phase() Phase {
	if len(o.y) < o.cfg.InitPoints {
		return PhaseColdStart
	}

	return PhaseSurrogate
}

// Ask proposes the next point to evaluate. It never modifies the history.
//
// In the cold-start phase the point only depends on the bounds and the state
// of the random generator. In the surrogate phase it is the first candidate
// with the highest acquisition score.
//
// Errors:
// - ErrNotFitted if the surrogate phase is reached without any successful fit
func (o *Optimizer) Ask() ([]float64, error) {
	if o.Phase() == PhaseColdStart {
		x := mat.Row(nil, 0, SampleUniform(o.bounds, 1, o.rng))

		o.logger.Debug("Proposed random point", zap.Float64s("x", x))

		return x, nil
	}

	candidates := SampleUniform(o.bounds, o.cfg.AcqSamples, o.rng)

	params := o.cfg.AcqParams
	params.BestSoFar = o.y[floats.MinIdx(o.y)]
	params.RandomState = o.rng

	scores, err := Acquire(candidates, o.gp, o.acquisition, params)
	if err != nil {
		return nil, fmt.Errorf("optimizer: ask: %w", err)
	}

	idx := argmax(scores)
	x := mat.Row(nil, idx, candidates)

	o.logger.Debug("Proposed surrogate point",
		zap.Float64s("x", x),
		zap.Float64("score", scores[idx]),
		zap.Float64("best", params.BestSoFar),
	)

	return x, nil
}

// Tell records the value y of the objective at x and refits the surrogate on
// the entire history.
//
// Errors:
// - *ErrDimensionMismatch if len(x) differs from the bounds dimensionality;
//   nothing is recorded
// - ErrInvalidObservation if y is NaN or infinite; nothing is recorded
// - the refit error (for example *ErrNumericalInstability); the observation
//   stays recorded and the surrogate keeps its previous fit
func (o *Optimizer) Tell(x []float64, y float64) error {
	if len(x) != o.bounds.Dim() {
		return &ErrDimensionMismatch{Op: "optimizer: tell", Expected: o.bounds.Dim(), Actual: len(x)}
	}

	if math.IsNaN(y) || math.IsInf(y, 0) {
		return fmt.Errorf("optimizer: tell: %w: value must be finite, got %v", ErrInvalidObservation, y)
	}

	o.x = append(o.x, clonePoint(x))
	o.y = append(o.y, y)

	if err := o.gp.Fit(pointsToDense(o.x, o.bounds.Dim()), o.y); err != nil {
		return fmt.Errorf("optimizer: refit with %d observations: %w", len(o.y), err)
	}

	return nil
}

// Optimize runs exactly nIter ask/evaluate/tell steps against objective and
// returns the best observation of the whole history.
//
// Usage example:
//
//	bounds := Bounds{{Low: -5, High: 10}, {Low: 0, High: 15}}
//	kernel, _ := NewSquaredExponential(2.0, 1.0)
//	opt, err := New(bounds, kernel, DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	best, err := opt.Optimize(branin, 25)
//
// How it works:
// 1. Ask proposes a point (random during cold start)
// 2. The objective is evaluated at that point
// 3. Tell records the result and refits the surrogate
// 4. A ProgressUpdate is sent if a ProgressChan is configured
//
// Errors from Ask or Tell stop the run and are returned as is.
func (o *Optimizer) Optimize(objective ObjectiveFunc, nIter int) (Observation, error) {
	if nIter < 1 {
		return Observation{}, fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalidConfig, nIter)
	}

	for i := 0; i < nIter; i++ {
		phase := o.Phase()

		x, err := o.Ask()
		if err != nil {
			return Observation{}, err
		}

		y := objective(clonePoint(x))

		if err := o.Tell(x, y); err != nil {
			return Observation{}, err
		}

		o.sendProgress(phase, i+1, nIter, x, y)
	}

	best, _ := o.Best()

	return best, nil
}

// Best returns the observation with the lowest value, the first one on ties.
// It reports false if the history is empty.
func (o *Optimizer) Best() (Observation, bool) {
	if len(o.y) == 0 {
		return Observation{}, false
	}

	i := floats.MinIdx(o.y)

	return Observation{X: clonePoint(o.x[i]), Y: o.y[i]}, true
}

// History returns a copy of all observations in the order they were told.
func (o *Optimizer) History() []Observation {
	out := make([]Observation, len(o.y))
	for i := range o.y {
		out[i] = Observation{X: clonePoint(o.x[i]), Y: o.y[i]}
	}

	return out
}

// Len returns the number of observations.
func (o *Optimizer) Len() int { return len(o.y) }

// Dim returns the dimensionality of the search space.
func (o *Optimizer) Dim() int { return o.bounds.Dim() }

// Bounds returns a copy of the search box.
func (o *Optimizer) Bounds() Bounds { return o.bounds.clone() }

// GP returns the surrogate. It is meant for diagnostics such as plotting the
// posterior; fitting it directly desynchronizes it from the history until
// the next Tell.
func (o *Optimizer) GP() *GaussianProcess { return o.gp }

// sendProgress sends a progress update without blocking.
func (o *Optimizer) sendProgress(phase Phase, iteration, total int, x []float64, y float64) {
	best, _ := o.Best()

	o.logger.Debug("Step done",
		zap.String("phase", string(phase)),
		zap.Int("iteration", iteration),
		zap.Float64("value", y),
		zap.Float64("best", best.Y),
	)

	if o.cfg.ProgressChan == nil {
		return
	}

	update := ProgressUpdate{
		Phase:             phase,
		CurrentIteration:  iteration,
		TotalIterations:   total,
		CurrentParams:     clonePoint(x),
		CurrentValue:      y,
		CurrentBestParams: best.X,
		CurrentBestValue:  best.Y,
	}

	select {
	case o.cfg.ProgressChan <- update:
	default:
		// Skip update if channel is full.
	}
}

// argmax returns the index of the first maximal score. NaN scores lose
// against any number.
func argmax(scores []float64) int {
	clean := make([]float64, len(scores))
	for i, s := range scores {
		if math.IsNaN(s) {
			s = math.Inf(-1)
		}

		clean[i] = s
	}

	return floats.MaxIdx(clean)
}

//////
// Exported functionalities.
//////

// DefaultConfig returns the default configuration: 5 cold-start points, 1000
// candidates per proposal, noise 1e-6, Expected Improvement with Xi = 0.01
// and seed 0.
func DefaultConfig() Config {
	return Config{
		InitPoints:      5,
		AcqSamples:      1000,
		Noise:           1e-6,
		AcquisitionFunc: EI,
		AcqParams: AcquisitionParams{
			Beta:      2.0,
			Xi:        0.01,
			BestSoFar: math.MaxFloat64,
		},
		RandomState:  0,
		ProgressChan: nil, // Default to no progress updates.
	}
}

//////
// Factory.
//////

// New returns an Optimizer over bounds using kernel for the surrogate.
//
// Errors:
// - *ErrDimensionMismatch for empty bounds
// - ErrInvalidBounds for a range with Low > High or a non-finite limit
// - ErrInvalidKernel for a nil kernel
// - ErrInvalidConfig for out of range configuration values
func New(bounds Bounds, kernel Kernel, cfg Config) (*Optimizer, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}

	if kernel == nil {
		return nil, fmt.Errorf("%w: kernel is nil", ErrInvalidKernel)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	acquisition := cfg.AcquisitionFunc
	if acquisition == nil {
		acquisition = EI
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Optimizer{
		bounds:      bounds.clone(),
		cfg:         cfg,
		acquisition: acquisition,
		gp: NewGaussianProcess(kernel, cfg.Noise,
			WithJitterRetries(cfg.JitterRetries),
			WithLogger(logger),
		),
		rng:    rand.New(rand.NewPCG(cfg.RandomState, cfg.RandomState)),
		logger: logger.Named("optimizer"),
	}, nil
}
