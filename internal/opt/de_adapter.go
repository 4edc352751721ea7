package opt

import (
	"context"

	"github.com/cwbudde/plucktune/internal/de"
)

// DEAdapter runs the differential evolution engine for a fixed number of
// generations. The engine searches the unit cube; positions are mapped
// linearly onto the bounds before evaluation. Trials may leave the bounds.
type DEAdapter struct {
	generations int
	opts        []de.Option
}

// NewDE creates a differential evolution optimizer. opts are passed to
// de.New; the init policy and bound are fixed to the unit cube.
func NewDE(generations int, opts ...de.Option) Optimizer {
	return &DEAdapter{generations: generations, opts: opts}
}

func (d *DEAdapter) Name() string { return "de" }

func (d *DEAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) (Result, error) {
	if err := checkBounds(lower, upper, dim); err != nil {
		return Result{}, err
	}

	toBounds := func(u []float64) []float64 {
		x := make([]float64, dim)
		for i := range x {
			x[i] = lower[i] + u[i]*(upper[i]-lower[i])
		}
		return x
	}

	eval, evals := counted(eval)
	objective := func(u []float64) float64 { return eval(toBounds(u)) }

	opts := append([]de.Option{}, d.opts...)
	opts = append(opts, de.WithInitPolicy(de.InitUniform), de.WithInitBound(1))

	o, err := de.New(dim, objective, opts...)
	if err != nil {
		return Result{}, err
	}
	best, err := de.Run(context.Background(), o, de.MaxGenerations(d.generations))
	if err != nil {
		return Result{}, err
	}

	return Result{
		Position:    toBounds(best.Position),
		Cost:        best.Fitness,
		Evaluations: evals.Load(),
	}, nil
}
