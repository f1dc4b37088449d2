package bayesopt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

//////
// Const, vars, types.
//////

// Kernel is a covariance function. Covariance maps an n×d and an m×d set of
// points (one point per row) to the n×m matrix of pairwise covariances. The
// result must be symmetric positive semi-definite when a and b are the same
// set, and deterministic for equal inputs.
type Kernel interface {
	Covariance(a, b mat.Matrix) *mat.Dense
}

// SquaredExponential is the squared-exponential (RBF, Gaussian) kernel:
//
//	k(x, y) = Variance * exp(-|x-y|^2 / (2 * LengthScale^2))
//
// Larger LengthScale values give smoother surrogates. Hyperparameters are
// fixed at construction.
type SquaredExponential struct {
	lengthScale float64
	variance    float64
}

// Matern52 is the Matérn 5/2 kernel:
//
//	k(x, y) = Variance * (1 + √5 r + 5/3 r^2) * exp(-√5 r),  r = |x-y| / LengthScale
//
// It produces rougher surrogates than SquaredExponential and is a drop-in
// replacement for it.
type Matern52 struct {
	lengthScale float64
	variance    float64
}

//////
// Methods.
//////

// Covariance implements Kernel.
func (k *SquaredExponential) Covariance(a, b mat.Matrix) *mat.Dense {
	d := sqDist(a, b)
	scale := -0.5 / (k.lengthScale * k.lengthScale)

	d.Apply(func(_, _ int, v float64) float64 {
		return k.variance * math.Exp(v*scale)
	}, d)

	return d
}

// LengthScale returns the kernel length-scale.
func (k *SquaredExponential) LengthScale() float64 { return k.lengthScale }

// Variance returns the kernel signal variance.
func (k *SquaredExponential) Variance() float64 { return k.variance }

// Covariance implements Kernel.
func (k *Matern52) Covariance(a, b mat.Matrix) *mat.Dense {
	d := sqDist(a, b)

	d.Apply(func(_, _ int, v float64) float64 {
		r := math.Sqrt(v) / k.lengthScale
		s5r := math.Sqrt(5) * r

		return k.variance * (1 + s5r + 5.0/3.0*r*r) * math.Exp(-s5r)
	}, d)

	return d
}

// LengthScale returns the kernel length-scale.
func (k *Matern52) LengthScale() float64 { return k.lengthScale }

// Variance returns the kernel signal variance.
func (k *Matern52) Variance() float64 { return k.variance }

// sqDist returns the n×m matrix of squared Euclidean distances between the
// rows of a and b, computed as |a|^2 + |b|^2 - 2 a·bᵀ with a single matrix
// product. Round-off can push the result slightly below zero; it is clamped.
func sqDist(a, b mat.Matrix) *mat.Dense {
	n, da := a.Dims()
	m, db := b.Dims()

	if da != db {
		panic(fmt.Sprintf("kernel: point sets have %d and %d columns", da, db))
	}

	an := rowSqNorms(a)
	bn := rowSqNorms(b)

	d := mat.NewDense(n, m, nil)
	d.Mul(a, b.T())

	d.Apply(func(i, j int, v float64) float64 {
		return math.Max(an[i]+bn[j]-2*v, 0)
	}, d)

	return d
}

func rowSqNorms(a mat.Matrix) []float64 {
	r, _ := a.Dims()

	out := make([]float64, r)
	for i := range out {
		row := mat.Row(nil, i, a)
		out[i] = floats.Dot(row, row)
	}

	return out
}

//////
// Factory.
//////

// NewSquaredExponential returns a squared-exponential kernel. Both
// hyperparameters must be positive and finite.
func NewSquaredExponential(lengthScale, variance float64) (*SquaredExponential, error) {
	if err := validateKernelParams(lengthScale, variance); err != nil {
		return nil, err
	}

	return &SquaredExponential{lengthScale: lengthScale, variance: variance}, nil
}

// NewMatern52 returns a Matérn 5/2 kernel. Both hyperparameters must be
// positive and finite.
func NewMatern52(lengthScale, variance float64) (*Matern52, error) {
	if err := validateKernelParams(lengthScale, variance); err != nil {
		return nil, err
	}

	return &Matern52{lengthScale: lengthScale, variance: variance}, nil
}

func validateKernelParams(lengthScale, variance float64) error {
	if !(lengthScale > 0) || math.IsInf(lengthScale, 1) {
		return fmt.Errorf("%w: length scale must be positive, got %v", ErrInvalidKernel, lengthScale)
	}

	if !(variance > 0) || math.IsInf(variance, 1) {
		return fmt.Errorf("%w: variance must be positive, got %v", ErrInvalidKernel, variance)
	}

	return nil
}
