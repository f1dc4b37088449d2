package bayesopt

import (
	"errors"
	"math"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

//////
// Const, vars, types.
//////

// VarianceFloor is the smallest posterior variance Predict returns. It keeps
// the variance positive when floating-point cancellation would make it
// negative.
const VarianceFloor = 1e-12

// jitterBase is the first diagonal jitter tried by Fit when jitter retries
// are enabled. Every further retry multiplies it by 10.
const jitterBase = 1e-10

// GaussianProcess is a zero-mean Gaussian Process regressor with
// homoskedastic Gaussian noise. The zero mean function and the constant noise
// are deliberate simplifications: there is no trend term and no per-point
// noise.
//
// Fit computes, from the training inputs X and targets y:
//
//	K = kernel(X, X) + noise² I
//	L = cholesky(K)            (lower triangular)
//	α = Lᵀ \ (L \ y)
//
// L and α are always derived from the current X and y. A Fit that fails leaves
// the previous state untouched.
//
// Thread safety:
// - All fields are protected by the RWMutex
// - Predict takes the read lock, Fit swaps the whole state under the write lock
type GaussianProcess struct {
	// mu protects access to all fields below.
	mu sync.RWMutex

	kernel Kernel
	noise  float64

	// jitterRetries bounds the number of jittered refactorizations.
	jitterRetries int

	// x stores the training inputs, one point per row.
	x *mat.Dense

	// y stores the training targets.
	y []float64

	// chol is the lower Cholesky factor of K.
	chol *mat.TriDense

	// alpha is K⁻¹ y.
	alpha *mat.VecDense

	logger *zap.Logger
}

// GPOption configures a GaussianProcess.
type GPOption func(*GaussianProcess)

// WithJitterRetries makes Fit retry a failed factorization up to n times,
// adding 1e-10, 1e-9, ... to the diagonal. The default is no retry, in which
// case a non positive-definite covariance is reported straight away.
func WithJitterRetries(n int) GPOption {
	return func(gp *GaussianProcess) {
		if n > 0 {
			gp.jitterRetries = n
		}
	}
}

// WithLogger sets the logger. The GP logs under the "gaussian_process" name.
func WithLogger(logger *zap.Logger) GPOption {
	return func(gp *GaussianProcess) {
		if logger != nil {
			gp.logger = logger.Named("gaussian_process")
		}
	}
}

//////
// Methods.
//////

// Fit conditions the process on the training set. X holds one point per row
// and must have exactly len(y) rows.
//
// Errors:
// - *ErrDimensionMismatch when X is nil or empty, or rows(X) != len(y)
// - *ErrNumericalInstability when K is not positive definite, typically
//   because of near-duplicate points with negligible noise
//
// Usage example:
//
//	kernel, _ := NewSquaredExponential(1.0, 1.0)
//	gp := NewGaussianProcess(kernel, 1e-6)
//	X := mat.NewDense(2, 1, []float64{0, 1})
//	if err := gp.Fit(X, []float64{0.5, 1.5}); err != nil {
//	    return err
//	}
func (gp *GaussianProcess) Fit(X *mat.Dense, y []float64) error {
	const op = "gaussian_process: fit"

	if X == nil || X.IsEmpty() {
		return &ErrDimensionMismatch{Op: op, Expected: len(y), Actual: 0}
	}

	n, d := X.Dims()
	if n != len(y) {
		return &ErrDimensionMismatch{Op: op, Expected: n, Actual: len(y)}
	}

	// Training covariance, symmetrized from its upper triangle.
	kxx := gp.kernel.Covariance(X, X)
	base := mat.NewSymDense(n, nil)

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			base.SetSym(i, j, kxx.At(i, j))
		}
	}

	var (
		chol   mat.Cholesky
		jitter float64
		ok     bool
	)

	for attempt := 0; attempt <= gp.jitterRetries; attempt++ {
		K := mat.NewSymDense(n, nil)
		K.CopySym(base)

		for i := 0; i < n; i++ {
			K.SetSym(i, i, K.At(i, i)+gp.noise*gp.noise+jitter)
		}

		if ok = chol.Factorize(K); ok {
			break
		}

		gp.logger.Debug("Cholesky factorization failed",
			zap.Int("samples", n),
			zap.Int("attempt", attempt),
			zap.Float64("jitter", jitter),
		)

		jitter = jitterBase * math.Pow(10, float64(attempt))
	}

	if !ok {
		return &ErrNumericalInstability{
			Op:      op,
			Samples: n,
			Noise:   gp.noise,
			cause:   ErrNotPositiveDefinite,
		}
	}

	L := mat.NewTriDense(n, mat.Lower, nil)
	chol.LTo(L)

	yv := mat.NewDense(n, 1, append([]float64(nil), y...))

	// L z = y, then Lᵀ α = z.
	var z, alpha mat.Dense
	if err := solveTri(gp.logger, &z, L, false, yv); err != nil {
		return err
	}

	if err := solveTri(gp.logger, &alpha, L, true, &z); err != nil {
		return err
	}

	gp.mu.Lock()
	defer gp.mu.Unlock()

	gp.x = mat.DenseCopyOf(X)
	gp.y = append([]float64(nil), y...)
	gp.chol = L
	gp.alpha = mat.NewVecDense(n, mat.Col(nil, 0, &alpha))

	gp.logger.Debug("Fitted GP model",
		zap.Int("samples", n),
		zap.Int("features", d),
		zap.Float64("noise", gp.noise),
		zap.Float64("jitter", jitter),
	)

	return nil
}

// Predict returns the posterior mean at each row of Xs and, if returnVar is
// true, the posterior variance. Variances are never below VarianceFloor.
//
// Errors:
// - ErrNotFitted before a successful Fit
// - *ErrDimensionMismatch when Xs has a different number of columns than
//   the training inputs
func (gp *GaussianProcess) Predict(Xs *mat.Dense, returnVar bool) (mean, variance []float64, err error) {
	const op = "gaussian_process: predict"

	gp.mu.RLock()
	defer gp.mu.RUnlock()

	if gp.x == nil {
		return nil, nil, ErrNotFitted
	}

	_, d := gp.x.Dims()
	if Xs == nil || Xs.IsEmpty() {
		return nil, nil, &ErrDimensionMismatch{Op: op, Expected: d, Actual: 0}
	}

	m, ds := Xs.Dims()
	if ds != d {
		return nil, nil, &ErrDimensionMismatch{Op: op, Expected: d, Actual: ds}
	}

	// n×m cross-covariance.
	ks := gp.kernel.Covariance(gp.x, Xs)

	mu := mat.NewVecDense(m, nil)
	mu.MulVec(ks.T(), gp.alpha)
	mean = mu.RawVector().Data

	if !returnVar {
		return mean, nil, nil
	}

	// v = L⁻¹ K_s
	var v mat.Dense
	if err := solveTri(gp.logger, &v, gp.chol, false, ks); err != nil {
		return nil, nil, err
	}

	n, _ := v.Dims()
	variance = make([]float64, m)

	for j := 0; j < m; j++ {
		row := Xs.Slice(j, j+1, 0, d)
		prior := gp.kernel.Covariance(row, row).At(0, 0)

		var explained float64
		for i := 0; i < n; i++ {
			x := v.At(i, j)
			explained += x * x
		}

		variance[j] = math.Max(prior-explained, VarianceFloor)
	}

	return mean, variance, nil
}

// IsFitted reports whether Fit has succeeded at least once.
func (gp *GaussianProcess) IsFitted() bool {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	return gp.x != nil
}

// NumSamples returns the number of training points.
func (gp *GaussianProcess) NumSamples() int {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	return len(gp.y)
}

// TrainingInputs returns a copy of the inputs of the last successful fit, one
// point per row, or nil before any fit.
func (gp *GaussianProcess) TrainingInputs() *mat.Dense {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	if gp.x == nil {
		return nil
	}

	return mat.DenseCopyOf(gp.x)
}

// Noise returns the noise level.
func (gp *GaussianProcess) Noise() float64 { return gp.noise }

// Kernel returns the covariance function.
func (gp *GaussianProcess) Kernel() Kernel { return gp.kernel }

// solveTri solves t·x = b (or tᵀ·x = b) into dst. A mat.Condition error only
// warns about a large condition number and the solution is still usable, so
// it is logged and dropped.
func solveTri(logger *zap.Logger, dst *mat.Dense, t *mat.TriDense, trans bool, b mat.Matrix) error {
	err := t.SolveTo(dst, trans, b)
	if err == nil {
		return nil
	}

	var cond mat.Condition
	if errors.As(err, &cond) && !math.IsInf(float64(cond), 1) {
		logger.Debug("Ill-conditioned triangular solve", zap.Float64("condition", float64(cond)))

		return nil
	}

	n, _ := t.Triangle()

	return &ErrNumericalInstability{Op: "gaussian_process: solve", Samples: n, cause: err}
}

//////
// Factory.
//////

// NewGaussianProcess returns an unfitted process with the given kernel and
// noise level. Noise² is added to the diagonal of the training covariance.
//
// Best practices:
// - Create a new instance for each optimization run
// - Use a noise of at least 1e-6 for exact objectives
// - Increase the noise for noisy objectives
func NewGaussianProcess(kernel Kernel, noise float64, opts ...GPOption) *GaussianProcess {
	gp := &GaussianProcess{
		kernel: kernel,
		noise:  noise,
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(gp)
	}

	return gp
}
