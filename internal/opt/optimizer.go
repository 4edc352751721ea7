// Package opt runs black-box minimizers behind one interface so the
// differential evolution engine can be compared with other optimizers.
package opt

import (
	"fmt"
	"sync/atomic"
)

// Optimizer minimizes eval inside per-dimension bounds.
type Optimizer interface {
	// Name identifies the optimizer in reports.
	Name() string

	// Run minimizes eval over dim parameters. lower and upper must have
	// length dim.
	Run(eval func([]float64) float64, lower, upper []float64, dim int) (Result, error)
}

// Result is the outcome of one optimizer run.
type Result struct {
	Position    []float64
	Cost        float64
	Evaluations int64
}

func checkBounds(lower, upper []float64, dim int) error {
	if dim < 1 {
		return fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if len(lower) != dim || len(upper) != dim {
		return fmt.Errorf("bounds must have length %d, got %d and %d", dim, len(lower), len(upper))
	}
	for i := range lower {
		if !(lower[i] < upper[i]) {
			return fmt.Errorf("bound %d is empty: [%g, %g]", i, lower[i], upper[i])
		}
	}
	return nil
}

// counted wraps eval with an evaluation counter safe for parallel callers.
func counted(eval func([]float64) float64) (func([]float64) float64, *atomic.Int64) {
	var n atomic.Int64
	return func(x []float64) float64 {
		n.Add(1)
		return eval(x)
	}, &n
}
