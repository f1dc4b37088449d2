// Package objective is a registry of benchmark problems for the optimizer:
// well known test functions with their usual search box and global minimum.
package objective

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize/functions"

	"github.com/thalesfsp/bayesopt"
)

// Problem is a benchmark objective with its search box.
type Problem struct {
	Name        string
	Description string
	Func        bayesopt.ObjectiveFunc
	Bounds      bayesopt.Bounds

	// Minimum is the known global minimum value.
	Minimum float64
}

// Regret returns how far value is above the known minimum.
func (p Problem) Regret(value float64) float64 {
	return value - p.Minimum
}

var registry = map[string]Problem{
	"branin": {
		Name:        "branin",
		Description: "Branin-Hoo, three global minima",
		Func:        functions.BraninHoo{}.Func,
		Bounds:      bayesopt.Bounds{{Low: -5, High: 10}, {Low: 0, High: 15}},
		Minimum:     0.397887,
	},
	"camelsix": {
		Name:        "camelsix",
		Description: "six-hump camel, two global minima",
		Func:        functions.CamelSix{}.Func,
		Bounds:      bayesopt.Bounds{{Low: -3, High: 3}, {Low: -2, High: 2}},
		Minimum:     -1.0316,
	},
	"camelthree": {
		Name:        "camelthree",
		Description: "three-hump camel, global minimum at the origin",
		Func:        functions.CamelThree{}.Func,
		Bounds:      bayesopt.Bounds{{Low: -5, High: 5}, {Low: -5, High: 5}},
		Minimum:     0,
	},
	"gramacylee": {
		Name:        "gramacylee",
		Description: "Gramacy-Lee, one-dimensional with many local minima",
		Func:        functions.GramacyLee{}.Func,
		Bounds:      bayesopt.Bounds{{Low: 0.5, High: 2.5}},
		Minimum:     -0.869011,
	},
	"ackley": {
		Name:        "ackley",
		Description: "two-dimensional Ackley, global minimum at the origin",
		Func:        functions.Ackley{}.Func,
		Bounds:      bayesopt.Bounds{{Low: -32.768, High: 32.768}, {Low: -32.768, High: 32.768}},
		Minimum:     0,
	},
	"rastrigin": {
		Name:        "rastrigin",
		Description: "two-dimensional Rastrigin, global minimum at the origin",
		Func:        functions.Rastrigin{}.Func,
		Bounds:      bayesopt.Bounds{{Low: -5.12, High: 5.12}, {Low: -5.12, High: 5.12}},
		Minimum:     0,
	},
}

// Lookup returns the problem registered under name.
func Lookup(name string) (Problem, error) {
	p, ok := registry[name]
	if !ok {
		return Problem{}, fmt.Errorf("unknown problem %q, available: %v", name, Names())
	}

	// Bounds are shared between lookups.
	p.Bounds = append(bayesopt.Bounds(nil), p.Bounds...)

	return p, nil
}

// Names returns the registered problem names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// All returns every registered problem sorted by name.
func All() []Problem {
	problems := make([]Problem, 0, len(registry))
	for _, name := range Names() {
		p, _ := Lookup(name)
		problems = append(problems, p)
	}

	return problems
}

// Counted wraps fn so that every call increments *calls. It is meant for
// single-goroutine runs.
func Counted(fn bayesopt.ObjectiveFunc, calls *int) bayesopt.ObjectiveFunc {
	return func(x []float64) float64 {
		*calls++
		return fn(x)
	}
}

// Finite wraps fn so that NaN and infinite values become penalty. Tell
// rejects non-finite values.
func Finite(fn bayesopt.ObjectiveFunc, penalty float64) bayesopt.ObjectiveFunc {
	return func(x []float64) float64 {
		v := fn(x)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return penalty
		}

		return v
	}
}
