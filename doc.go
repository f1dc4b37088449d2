// Package bayesopt provides sequential black-box minimization over a box
// using Bayesian optimization: a Gaussian Process surrogate and an
// acquisition function, Expected Improvement by default, driven through an
// ask/tell loop.
//
// # Features
//
// The package includes the following key features:
//
//   - Gaussian Process regression with Cholesky-based inference: two
//     triangular solves, never an explicit inverse
//   - Interchangeable kernels behind the Kernel interface: SquaredExponential
//     and Matern52, evaluated in batch
//   - Acquisition functions: Expected Improvement (EI), Probability of
//     Improvement (PI), confidence bound (UCB) and Thompson Sampling
//   - Ask/tell protocol: the caller evaluates the objective, so evaluation
//     can live anywhere
//   - Reproducible runs: the random generator is owned by the Optimizer and
//     seeded from Config.RandomState
//   - Typed parameters: OptimizeParameters works with any integer or float
//     parameter type and BenchmarkObjective tunes parameters by execution time
//   - Progress Monitoring: updates via channels
//
// # Ask/tell
//
//	bounds := bayesopt.Bounds{{Low: -5, High: 10}, {Low: 0, High: 15}}
//	kernel, _ := bayesopt.NewSquaredExponential(2.0, 1.0)
//
//	opt, err := bayesopt.New(bounds, kernel, bayesopt.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//
//	for i := 0; i < 25; i++ {
//	    x, err := opt.Ask()
//	    if err != nil {
//	        return err
//	    }
//
//	    if err := opt.Tell(x, objective(x)); err != nil {
//	        return err
//	    }
//	}
//
//	best, _ := opt.Best()
//
// Optimize runs the same loop for a given number of iterations.
//
// # Phases
//
// While fewer than Config.InitPoints observations exist the Optimizer is in
// the cold-start phase and proposes uniformly random points without looking
// at the surrogate. Afterwards it draws Config.AcqSamples random candidates,
// scores them under the posterior and proposes the best scoring one. The
// surrogate is refit on the whole history after every Tell: there is no
// incremental update.
//
// # Acquisition Functions
//
// All acquisition functions score higher for more promising points.
//
// 1. Expected Improvement (EI):
//
//   - Balances improvement probability and magnitude
//
//   - Exactly zero where the posterior standard deviation is below
//     SigmaThreshold
//
//     cfg := DefaultConfig()  // Uses EI by default
//     cfg.AcqParams.Xi = 0.01 // Exploration bonus
//
// 2. Probability of Improvement (PI):
//
//   - Conservative exploration strategy
//
//     cfg.AcquisitionFunc = PI
//
// 3. Upper Confidence Bound (UCB):
//
//   - Controlled by Beta parameter (higher = more exploration)
//
//     cfg.AcquisitionFunc = UCB
//     cfg.AcqParams.Beta = 2.0
//
// 4. Thompson Sampling:
//
//   - Draws from the optimizer's own generator, runs stay reproducible
//
//     cfg.AcquisitionFunc = ThompsonSampling
//
// # Errors
//
// Fit and Tell return *ErrDimensionMismatch for inputs of the wrong shape and
// *ErrNumericalInstability when the training covariance is not positive
// definite. Predict returns ErrNotFitted before the first successful Fit.
// A failed factorization is not retried unless Config.JitterRetries is set.
//
// # Thread Safety
//
// An Optimizer is meant for a single caller. The GaussianProcess uses an
// RWMutex so that diagnostic readers never observe a partially updated fit.
package bayesopt
