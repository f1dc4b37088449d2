package bayesopt

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// SampleUniform draws n points uniformly from the box, one point per row of
// the returned n×d matrix. Coordinates are drawn independently, point by
// point and dimension by dimension, as Low + u*(High-Low) with u in [0, 1)
// from rng. A degenerate range (Low == High) always yields Low.
//
// The result is fully determined by the bounds and the state of rng. It
// returns nil when n < 1 or the bounds are empty.
func SampleUniform(bounds Bounds, n int, rng *rand.Rand) *mat.Dense {
	d := bounds.Dim()
	if n < 1 || d == 0 {
		return nil
	}

	data := make([]float64, n*d)
	for i := 0; i < n; i++ {
		for j, r := range bounds {
			data[i*d+j] = r.Low + rng.Float64()*(r.High-r.Low)
		}
	}

	return mat.NewDense(n, d, data)
}
