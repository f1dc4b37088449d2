package bayesopt

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/functions"
)

var braninBounds = Bounds{{Low: -5, High: 10}, {Low: 0, High: 15}}

func newTestOptimizer(t *testing.T, bounds Bounds, cfg Config) *Optimizer {
	t.Helper()

	k, err := NewSquaredExponential(2.0, 1.0)
	require.NoError(t, err)

	opt, err := New(bounds, k, cfg)
	require.NoError(t, err)

	return opt
}

func TestNewValidation(t *testing.T) {
	k, err := NewSquaredExponential(1.0, 1.0)
	require.NoError(t, err)

	t.Run("empty bounds", func(t *testing.T) {
		_, err := New(Bounds{}, k, DefaultConfig())

		var dimErr *ErrDimensionMismatch
		assert.True(t, errors.As(err, &dimErr))
	})

	t.Run("inverted bounds", func(t *testing.T) {
		_, err := New(Bounds{{Low: 1, High: 0}}, k, DefaultConfig())
		assert.ErrorIs(t, err, ErrInvalidBounds)
	})

	t.Run("infinite bounds", func(t *testing.T) {
		_, err := New(Bounds{{Low: 0, High: math.Inf(1)}}, k, DefaultConfig())
		assert.ErrorIs(t, err, ErrInvalidBounds)
	})

	t.Run("nil kernel", func(t *testing.T) {
		_, err := New(braninBounds, nil, DefaultConfig())
		assert.ErrorIs(t, err, ErrInvalidKernel)
	})

	t.Run("invalid config", func(t *testing.T) {
		for name, mutate := range map[string]func(*Config){
			"init points":    func(c *Config) { c.InitPoints = 0 },
			"acq samples":    func(c *Config) { c.AcqSamples = 0 },
			"negative noise": func(c *Config) { c.Noise = -1 },
			"nan noise":      func(c *Config) { c.Noise = math.NaN() },
			"jitter retries": func(c *Config) { c.JitterRetries = -1 },
			"negative xi":    func(c *Config) { c.AcqParams.Xi = -0.1 },
		} {
			cfg := DefaultConfig()
			mutate(&cfg)

			_, err := New(braninBounds, k, cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig, name)
		}
	})
}

func TestColdStartIgnoresObservedValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RandomState = 11

	a := newTestOptimizer(t, braninBounds, cfg)
	b := newTestOptimizer(t, braninBounds, cfg)

	for i := 0; i < cfg.InitPoints; i++ {
		assert.Equal(t, PhaseColdStart, a.Phase())

		xa, err := a.Ask()
		require.NoError(t, err)

		xb, err := b.Ask()
		require.NoError(t, err)

		assert.Equal(t, xa, xb)
		assert.True(t, braninBounds.Contains(xa))

		require.NoError(t, a.Tell(xa, float64(i)))
		require.NoError(t, b.Tell(xb, -3*float64(i)+100))
	}

	assert.Equal(t, PhaseSurrogate, a.Phase())
}

func TestAskDoesNotChangeHistory(t *testing.T) {
	opt := newTestOptimizer(t, braninBounds, DefaultConfig())

	for i := 0; i < 7; i++ {
		x, err := opt.Ask()
		require.NoError(t, err)

		assert.Equal(t, i, opt.Len())
		require.NoError(t, opt.Tell(x, functions.BraninHoo{}.Func(x)))
	}

	before := opt.History()

	_, err := opt.Ask()
	require.NoError(t, err)

	assert.Equal(t, before, opt.History())
}

func TestTellDimensionMismatch(t *testing.T) {
	opt := newTestOptimizer(t, braninBounds, DefaultConfig())

	err := opt.Tell([]float64{1, 2, 3}, 1.0)

	var dimErr *ErrDimensionMismatch
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Actual)
	assert.Equal(t, 0, opt.Len())
}

func TestTellRejectsNonFiniteValues(t *testing.T) {
	opt := newTestOptimizer(t, braninBounds, DefaultConfig())

	for _, y := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.ErrorIs(t, opt.Tell([]float64{0, 0}, y), ErrInvalidObservation)
	}

	assert.Equal(t, 0, opt.Len())
}

func TestTellKeepsObservationWhenRefitFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Noise = 0

	opt := newTestOptimizer(t, braninBounds, cfg)

	require.NoError(t, opt.Tell([]float64{1, 1}, 3))

	err := opt.Tell([]float64{1, 1}, 3)
	assert.ErrorIs(t, err, ErrNotPositiveDefinite)
	assert.Equal(t, 2, opt.Len())
	assert.Equal(t, 1, opt.GP().NumSamples())
}

func TestBestTieBreak(t *testing.T) {
	opt := newTestOptimizer(t, braninBounds, DefaultConfig())

	_, ok := opt.Best()
	assert.False(t, ok)

	require.NoError(t, opt.Tell([]float64{1, 1}, 5))
	require.NoError(t, opt.Tell([]float64{2, 2}, 2))
	require.NoError(t, opt.Tell([]float64{3, 3}, 2))

	best, ok := opt.Best()
	require.True(t, ok)
	assert.Equal(t, []float64{2, 2}, best.X)
	assert.Equal(t, 2.0, best.Y)
}

func TestHistoryIsACopy(t *testing.T) {
	opt := newTestOptimizer(t, braninBounds, DefaultConfig())

	x := []float64{1, 1}
	require.NoError(t, opt.Tell(x, 5))

	x[0] = 100

	history := opt.History()
	history[0].X[1] = 100

	best, ok := opt.Best()
	require.True(t, ok)
	best.X[0] = 100

	assert.Equal(t, []float64{1, 1}, opt.History()[0].X)

	// The surrogate is refitted on the untouched history.
	require.NoError(t, opt.Tell([]float64{2, 2}, 4))

	inputs := opt.GP().TrainingInputs()
	require.NotNil(t, inputs)
	assert.Equal(t, []float64{1, 1}, mat.Row(nil, 0, inputs))
	assert.Equal(t, []float64{2, 2}, mat.Row(nil, 1, inputs))
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 1, argmax([]float64{0, 3, 3, 1}))
	assert.Equal(t, 2, argmax([]float64{math.NaN(), -1, 0}))
	assert.Equal(t, 0, argmax([]float64{0, 0, 0}))
}

func TestOptimizeInvalidIterations(t *testing.T) {
	opt := newTestOptimizer(t, braninBounds, DefaultConfig())

	_, err := opt.Optimize(functions.BraninHoo{}.Func, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOptimizeIsReproducible(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AcqSamples = 200
	cfg.RandomState = 5

	run := func() []Observation {
		opt := newTestOptimizer(t, braninBounds, cfg)

		_, err := opt.Optimize(functions.BraninHoo{}.Func, 12)
		require.NoError(t, err)

		return opt.History()
	}

	assert.Equal(t, run(), run())
}

func TestOptimizeBranin(t *testing.T) {
	opt := newTestOptimizer(t, braninBounds, DefaultConfig())

	best, err := opt.Optimize(functions.BraninHoo{}.Func, 25)
	require.NoError(t, err)

	assert.Equal(t, 25, opt.Len())
	assert.True(t, braninBounds.Contains(best.X))
	assert.Less(t, best.Y-functions.BraninHoo{}.Minima()[0].F, 1.0)

	assert.GreaterOrEqual(t, best.Y, 0.0)

	for _, o := range opt.History() {
		assert.True(t, braninBounds.Contains(o.X))
		assert.LessOrEqual(t, best.Y, o.Y)
	}
}

func TestOptimizeProgress(t *testing.T) {
	const nIter = 15

	progress := make(chan ProgressUpdate, nIter)

	cfg := DefaultConfig()
	cfg.AcqSamples = 200
	cfg.ProgressChan = progress

	opt := newTestOptimizer(t, braninBounds, cfg)

	_, err := opt.Optimize(functions.BraninHoo{}.Func, nIter)
	require.NoError(t, err)

	close(progress)

	var (
		count int
		prev  = math.Inf(1)
	)

	for update := range progress {
		count++

		assert.Equal(t, count, update.CurrentIteration)
		assert.Equal(t, nIter, update.TotalIterations)
		assert.LessOrEqual(t, update.CurrentBestValue, prev)
		assert.LessOrEqual(t, update.CurrentBestValue, update.CurrentValue)

		if count <= cfg.InitPoints {
			assert.Equal(t, PhaseColdStart, update.Phase)
		} else {
			assert.Equal(t, PhaseSurrogate, update.Phase)
		}

		prev = update.CurrentBestValue
	}

	assert.Equal(t, nIter, count)
}

func TestOptimizeProgressNeverBlocks(t *testing.T) {
	progress := make(chan ProgressUpdate)

	cfg := DefaultConfig()
	cfg.AcqSamples = 50
	cfg.ProgressChan = progress

	opt := newTestOptimizer(t, braninBounds, cfg)

	_, err := opt.Optimize(functions.BraninHoo{}.Func, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, opt.Len())
}

func TestOptimizeAlternativeAcquisitions(t *testing.T) {
	for name, fn := range map[string]AcquisitionFunc{
		"pi":       PI,
		"ucb":      UCB,
		"thompson": ThompsonSampling,
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AcquisitionFunc = fn
			cfg.AcqSamples = 200
			cfg.Noise = 1e-3
			cfg.JitterRetries = 6

			k, err := NewMatern52(2.0, 1.0)
			require.NoError(t, err)

			opt, err := New(braninBounds, k, cfg)
			require.NoError(t, err)

			best, err := opt.Optimize(functions.BraninHoo{}.Func, 12)
			require.NoError(t, err)

			assert.Equal(t, 12, opt.Len())
			assert.True(t, braninBounds.Contains(best.X))
		})
	}
}
