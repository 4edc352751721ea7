package de

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
)

// Strategy builds a trial position from a target candidate and the donors
// drawn for it.
type Strategy interface {
	// Name identifies the strategy in configs and logs.
	Name() string

	// Donors is the number of distinct donors the strategy consumes.
	Donors() int

	// Trial returns a new position. It must not modify target or donors.
	Trial(target Candidate, donors []Candidate, cr, f float64, rng *rand.Rand) []float64
}

// Classic is DE/rand/1/bin: mutant = a + F·(b − c).
type Classic struct{}

// Directional moves the target along the directions towards two donors,
// weighted by their relative fitness.
type Directional struct{}

func (Classic) Name() string { return "classic" }

func (Classic) Donors() int { return 3 }

func (Classic) Trial(target Candidate, donors []Candidate, cr, f float64, rng *rand.Rand) []float64 {
	a, b, c := donors[0].Position, donors[1].Position, donors[2].Position
	trial, _ := crossover(target.Position, cr, rng, func(i int) float64 {
		return a[i] + f*(b[i]-c[i])
	})
	return trial
}

func (Directional) Name() string { return "directional" }

func (Directional) Donors() int { return 2 }

func (Directional) Trial(target Candidate, donors []Candidate, cr, f float64, rng *rand.Rand) []float64 {
	x := target.Position
	a, b := donors[0], donors[1]
	wa, wb := directionalWeights(target.Fitness, a.Fitness, b.Fitness)

	trial, _ := crossover(x, cr, rng, func(i int) float64 {
		return x[i] + f*(wa*(a.Position[i]-x[i])+wb*(b.Position[i]-x[i]))
	})
	return trial
}

// directionalWeights returns the step weights for donors a and b. A zero
// fitness sum, or any weight that is not finite, gives a zero step.
func directionalWeights(fx, fa, fb float64) (wa, wb float64) {
	sum := fa + fb
	if sum == 0 {
		return 0, 0
	}
	wa = fb * sign(fx-fa) / sum
	wb = fa * sign(fx-fb) / sum
	if !isFinite(wa) || !isFinite(wb) {
		return 0, 0
	}
	return wa, wb
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// crossover is the binomial gate shared by all strategies. The forced
// dimension is always taken from the mutant; every other dimension is taken
// from the mutant with probability cr.
func crossover(target []float64, cr float64, rng *rand.Rand, mutant func(i int) float64) ([]float64, int) {
	trial := slices.Clone(target)
	forced := rng.IntN(len(trial))
	for i := range trial {
		u := rng.Float64()
		if i == forced || u < cr {
			trial[i] = mutant(i)
		}
	}
	return trial, forced
}

// Strategies lists the names accepted by ParseStrategy.
var Strategies = []string{Classic{}.Name(), Directional{}.Name()}

// ParseStrategy maps a strategy name to its implementation.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "classic", "rand1bin":
		return Classic{}, nil
	case "directional", "gradient":
		return Directional{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (want one of %s)", name, strings.Join(Strategies, ", "))
	}
}
