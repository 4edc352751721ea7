package de

import (
	"context"
	"errors"
)

// Progress is passed to a Run predicate after every generation.
type Progress struct {
	Generation int
	Best       Candidate
}

// StopFunc decides whether Run should stop after the given progress.
type StopFunc func(Progress) bool

// MaxGenerations stops after n generations.
func MaxGenerations(n int) StopFunc {
	return func(p Progress) bool { return p.Generation >= n }
}

// TargetFitness stops once the best fitness is at or below target.
func TargetFitness(target float64) StopFunc {
	return func(p Progress) bool { return p.Best.Fitness <= target }
}

// Any stops when any of the given predicates does.
func Any(fns ...StopFunc) StopFunc {
	return func(p Progress) bool {
		for _, fn := range fns {
			if fn != nil && fn(p) {
				return true
			}
		}
		return false
	}
}

// Run pulls generations until stop returns true or ctx is done, and returns
// the best candidate seen. The context is checked between generations only;
// a generation that has started always completes. A nil stop runs until
// ctx is done. The optimizer is initialized first if needed.
func Run(ctx context.Context, o *Optimizer, stop StopFunc) (Candidate, error) {
	if err := o.Initialize(); err != nil && !errors.Is(err, ErrAlreadyInitialized) {
		return Candidate{}, err
	}

	best, err := o.Best()
	if err != nil {
		return Candidate{}, err
	}

	for {
		select {
		case <-ctx.Done():
			return best, ctx.Err()
		default:
		}

		best, err = o.Step()
		if err != nil {
			return best, err
		}

		if stop != nil && stop(Progress{Generation: o.Generation(), Best: best}) {
			return best, nil
		}
	}
}
