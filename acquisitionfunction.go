package bayesopt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SigmaThreshold is the predictive standard deviation below which EI and PI
// are exactly zero: a point the surrogate is certain about offers no
// expected improvement.
const SigmaThreshold = 1e-12

//////
// Available acquisition functions for Bayesian optimization.
// Each function helps decide which points to evaluate next by balancing
// exploration (trying new areas) and exploitation (focusing on known good areas).
// All of them score higher for more promising points of a minimization.
//////

// EI calculates the Expected Improvement over the current best value:
//
//	improvement = BestSoFar - mean - Xi
//	Z           = improvement / sigma
//	EI          = improvement * Φ(Z) + sigma * φ(Z)
//
// EI is zero wherever sigma is below SigmaThreshold.
//
// Example:
//
//	params := AcquisitionParams{
//	    BestSoFar: 1.0,  // Current best value
//	    Xi: 0.01,        // Exploration bonus
//	}
//	expected := EI(0.9, 0.2, params)
func EI(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(variance)
	if !(sigma >= SigmaThreshold) {
		return 0
	}

	imp := params.BestSoFar - mean - params.Xi
	z := imp / sigma

	return imp*normalCDF(z) + sigma*normalPDF(z)
}

// PI calculates the Probability of Improvement: the probability that a point
// beats the current best value by at least Xi.
//
// When to use:
// - When you want to be conservative in exploring new points
// - When being "probably better" matters more than "how much better"
func PI(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(variance)
	if !(sigma >= SigmaThreshold) {
		return 0
	}

	return normalCDF((params.BestSoFar - mean - params.Xi) / sigma)
}

// UCB implements the confidence bound strategy for minimization. The lower
// confidence bound mean - Beta*sigma is negated so that higher is better.
//
// Example:
//
//	params := AcquisitionParams{
//	    Beta: 2.0,  // Balance between exploration and exploitation
//	}
//	value := UCB(0.5, 0.2, params)
func UCB(mean, variance float64, params AcquisitionParams) float64 {
	return -(mean - params.Beta*math.Sqrt(variance))
}

// ThompsonSampling draws one sample from the marginal posterior at the point
// and returns it negated. The Optimizer sets params.RandomState to its own
// generator; without one the draw degenerates to the negated mean.
func ThompsonSampling(mean, variance float64, params AcquisitionParams) float64 {
	if params.RandomState == nil {
		return -mean
	}

	return -(mean + math.Sqrt(variance)*params.RandomState.NormFloat64())
}

// Acquire scores every row of candidates with fn under the posterior of gp.
//
// Errors:
// - ErrNotFitted if gp has no training points
// - any Predict error
func Acquire(candidates *mat.Dense, gp *GaussianProcess, fn AcquisitionFunc, params AcquisitionParams) ([]float64, error) {
	if gp == nil || gp.NumSamples() == 0 {
		return nil, ErrNotFitted
	}

	mean, variance, err := gp.Predict(candidates, true)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(mean))
	for i := range mean {
		scores[i] = fn(mean[i], variance[i], params)
	}

	return scores, nil
}

// ExpectedImprovement scores every row of candidates by its expected
// improvement over yBest, with exploration bonus xi.
//
// Errors:
// - ErrNotFitted if gp has no training points
// - ErrInvalidBest if yBest is NaN or infinite
func ExpectedImprovement(candidates *mat.Dense, gp *GaussianProcess, yBest, xi float64) ([]float64, error) {
	if math.IsNaN(yBest) || math.IsInf(yBest, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidBest, yBest)
	}

	return Acquire(candidates, gp, EI, AcquisitionParams{BestSoFar: yBest, Xi: xi})
}
