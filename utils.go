package bayesopt

import (
	"time"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// benchmarkFailurePenalty is the value of a failed benchmark run, one day in
// nanoseconds. It has to stay finite for the surrogate to fit it.
const benchmarkFailurePenalty = float64(24 * time.Hour)

//////
// Helper functions.
//////

// normalCDF is the cumulative distribution function of the standard normal
// distribution, used by PI and EI.
func normalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// normalPDF is the probability density function of the standard normal
// distribution, used by EI.
func normalPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// measureExecutionTime runs a benchmark function with the given parameters and
// returns its wall-clock duration in nanoseconds.
//
// Important notes:
// - Only the execution of f is timed
// - A failing benchmark returns benchmarkFailurePenalty so the surrogate
//   learns to avoid failing configurations
func measureExecutionTime[T constraints.Integer | constraints.Float](f BenchmarkFunc[T], params []T) float64 {
	start := time.Now()

	err := f(params...)

	duration := time.Since(start)

	if err != nil {
		return benchmarkFailurePenalty
	}

	return float64(duration.Nanoseconds())
}

// pointsToDense stacks points as the rows of an n×d matrix.
func pointsToDense(points [][]float64, d int) *mat.Dense {
	data := make([]float64, 0, len(points)*d)
	for _, p := range points {
		data = append(data, p...)
	}

	return mat.NewDense(len(points), d, data)
}

func clonePoint(x []float64) []float64 {
	return append([]float64(nil), x...)
}
