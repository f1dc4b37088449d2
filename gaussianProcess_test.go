package bayesopt

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newTestGP(t *testing.T, noise float64, opts ...GPOption) *GaussianProcess {
	t.Helper()

	k, err := NewSquaredExponential(1.0, 1.0)
	require.NoError(t, err)

	return NewGaussianProcess(k, noise, opts...)
}

func TestGaussianProcessSinglePointInterpolation(t *testing.T) {
	gp := newTestGP(t, 1e-6)

	require.NoError(t, gp.Fit(mat.NewDense(1, 1, []float64{0}), []float64{1.23}))

	mean, variance, err := gp.Predict(mat.NewDense(1, 1, []float64{0}), true)
	require.NoError(t, err)

	assert.InDelta(t, 1.23, mean[0], 1e-9)
	assert.Less(t, variance[0], 1e-9)
	assert.GreaterOrEqual(t, variance[0], VarianceFloor)
}

func TestGaussianProcessInterpolatesTrainingData(t *testing.T) {
	gp := newTestGP(t, 1e-6)

	X := mat.NewDense(4, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
		2, 2,
	})
	y := []float64{0.5, -1.0, 2.0, 0.25}

	require.NoError(t, gp.Fit(X, y))
	assert.True(t, gp.IsFitted())
	assert.Equal(t, 4, gp.NumSamples())

	mean, variance, err := gp.Predict(X, true)
	require.NoError(t, err)

	for i := range y {
		assert.InDelta(t, y[i], mean[i], 1e-4)
		assert.Less(t, variance[i], 1e-6)
	}

	// Far from the data the posterior reverts to the prior.
	far, farVar, err := gp.Predict(mat.NewDense(1, 2, []float64{50, 50}), true)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, far[0], 1e-9)
	assert.InDelta(t, 1.0, farVar[0], 1e-9)
}

func TestGaussianProcessPredictMeanOnly(t *testing.T) {
	gp := newTestGP(t, 1e-6)

	require.NoError(t, gp.Fit(mat.NewDense(2, 1, []float64{0, 1}), []float64{1, 2}))

	mean, variance, err := gp.Predict(mat.NewDense(3, 1, []float64{0, 0.5, 1}), false)
	require.NoError(t, err)

	assert.Len(t, mean, 3)
	assert.Nil(t, variance)
}

func TestGaussianProcessPredictBeforeFit(t *testing.T) {
	gp := newTestGP(t, 1e-6)

	assert.False(t, gp.IsFitted())

	_, _, err := gp.Predict(mat.NewDense(1, 1, []float64{0}), true)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestGaussianProcessFitDimensionMismatch(t *testing.T) {
	gp := newTestGP(t, 1e-6)

	err := gp.Fit(mat.NewDense(3, 1, []float64{0, 1, 2}), []float64{1, 2})

	var dimErr *ErrDimensionMismatch
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Actual)

	err = gp.Fit(nil, []float64{1})
	assert.True(t, errors.As(err, &dimErr))

	assert.False(t, gp.IsFitted())
}

func TestGaussianProcessPredictDimensionMismatch(t *testing.T) {
	gp := newTestGP(t, 1e-6)

	require.NoError(t, gp.Fit(mat.NewDense(2, 2, []float64{0, 0, 1, 1}), []float64{1, 2}))

	_, _, err := gp.Predict(mat.NewDense(1, 3, []float64{0, 0, 0}), true)

	var dimErr *ErrDimensionMismatch
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Actual)
}

func TestGaussianProcessDuplicatePointsWithoutNoise(t *testing.T) {
	gp := newTestGP(t, 0)

	err := gp.Fit(mat.NewDense(2, 1, []float64{0.5, 0.5}), []float64{1, 1})

	var numErr *ErrNumericalInstability
	require.True(t, errors.As(err, &numErr))
	assert.Equal(t, 2, numErr.Samples)
	assert.ErrorIs(t, err, ErrNotPositiveDefinite)
	assert.False(t, gp.IsFitted())
}

func TestGaussianProcessJitterRetry(t *testing.T) {
	gp := newTestGP(t, 0, WithJitterRetries(3))

	require.NoError(t, gp.Fit(mat.NewDense(2, 1, []float64{0.5, 0.5}), []float64{1, 1}))

	mean, variance, err := gp.Predict(mat.NewDense(1, 1, []float64{0.5}), true)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, mean[0], 1e-6)
	assert.GreaterOrEqual(t, variance[0], VarianceFloor)
}

func TestGaussianProcessFailedFitKeepsPreviousState(t *testing.T) {
	gp := newTestGP(t, 0)

	require.NoError(t, gp.Fit(mat.NewDense(2, 1, []float64{0, 1}), []float64{3, 4}))

	err := gp.Fit(mat.NewDense(3, 1, []float64{0, 1, 1}), []float64{3, 4, 4})
	require.Error(t, err)

	assert.Equal(t, 2, gp.NumSamples())

	mean, _, err := gp.Predict(mat.NewDense(1, 1, []float64{0}), false)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, mean[0], 1e-9)
}

func TestGaussianProcessTrainingInputsIsACopy(t *testing.T) {
	gp := newTestGP(t, 1e-6)
	assert.Nil(t, gp.TrainingInputs())

	X := mat.NewDense(1, 1, []float64{0.5})
	require.NoError(t, gp.Fit(X, []float64{1}))

	// Neither the fitted matrix nor the returned copy alias the GP state.
	X.Set(0, 0, 0.1)

	inputs := gp.TrainingInputs()
	require.NotNil(t, inputs)
	assert.Equal(t, 0.5, inputs.At(0, 0))
	inputs.Set(0, 0, 0.1)

	mean, _, err := gp.Predict(mat.NewDense(1, 1, []float64{0.5}), false)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mean[0], 1e-9)
	assert.Equal(t, 0.5, gp.TrainingInputs().At(0, 0))
}

func TestGaussianProcessVarianceFloor(t *testing.T) {
	gp := newTestGP(t, 1e-6, WithJitterRetries(8))

	X := mat.NewDense(4, 1, []float64{0, 1e-4, 2e-4, 1})
	require.NoError(t, gp.Fit(X, []float64{1, 1.0001, 0.9999, 2}))

	Xs := mat.NewDense(6, 1, []float64{0, 1e-4, 5e-5, 0.5, 1, 3})

	_, variance, err := gp.Predict(Xs, true)
	require.NoError(t, err)

	for _, v := range variance {
		assert.False(t, math.IsNaN(v))
		assert.GreaterOrEqual(t, v, VarianceFloor)
	}
}

func TestGaussianProcessConcurrentPredict(t *testing.T) {
	gp := newTestGP(t, 1e-6)

	require.NoError(t, gp.Fit(mat.NewDense(3, 1, []float64{0, 1, 2}), []float64{0, 1, 4}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, _, err := gp.Predict(mat.NewDense(2, 1, []float64{0.5, 1.5}), true)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
}
