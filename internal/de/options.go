package de

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// Defaults used when an option is not given.
const (
	DefaultCrossoverProbability = 0.9
	DefaultDifferentialWeight   = 0.8
	DefaultInitBound            = 1.0
	DefaultPopulationFactor     = 10
)

// InitPolicy controls how initial positions are sampled.
type InitPolicy int

const (
	// InitUniform samples every coordinate from [0, bound].
	InitUniform InitPolicy = iota
	// InitCentered samples every coordinate from [1-bound, 1+bound].
	InitCentered
)

func (p InitPolicy) String() string {
	switch p {
	case InitUniform:
		return "uniform"
	case InitCentered:
		return "centered"
	default:
		return fmt.Sprintf("InitPolicy(%d)", int(p))
	}
}

// ParseInitPolicy maps "uniform" or "centered" to an InitPolicy.
func ParseInitPolicy(name string) (InitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "uniform":
		return InitUniform, nil
	case "centered", "centred":
		return InitCentered, nil
	default:
		return 0, fmt.Errorf("unknown init policy %q (want uniform or centered)", name)
	}
}

func (p InitPolicy) sample(rng *rand.Rand, bound float64) float64 {
	u := rng.Float64()
	if p == InitCentered {
		return 1 + bound*(2*u-1)
	}
	return bound * u
}

// Config holds the hyperparameters of a run. It is fixed once New returns.
type Config struct {
	Dimension            int
	PopulationSize       int
	CrossoverProbability float64
	DifferentialWeight   float64
	InitBound            float64
	InitPolicy           InitPolicy
	Strategy             Strategy
	Workers              int
	Seed                 uint64
}

// Option adjusts a Config before validation.
type Option func(*Config)

func WithPopulationSize(n int) Option {
	return func(c *Config) { c.PopulationSize = n }
}

func WithCrossoverProbability(cr float64) Option {
	return func(c *Config) { c.CrossoverProbability = cr }
}

func WithDifferentialWeight(f float64) Option {
	return func(c *Config) { c.DifferentialWeight = f }
}

func WithInitBound(b float64) Option {
	return func(c *Config) { c.InitBound = b }
}

func WithInitPolicy(p InitPolicy) Option {
	return func(c *Config) { c.InitPolicy = p }
}

func WithStrategy(s Strategy) Option {
	return func(c *Config) { c.Strategy = s }
}

// WithWorkers bounds the number of lanes evaluated concurrently. 1 runs the
// generation sequentially, 0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *Config) { c.Workers = n }
}

// WithSeed fixes the master random stream. Every lane derives its own
// stream from it at the start of a generation, so a deterministic objective
// with the same seed follows the same trajectory.
func WithSeed(seed uint64) Option {
	return func(c *Config) { c.Seed = seed }
}

func defaultConfig(dimension int) Config {
	return Config{
		Dimension:            dimension,
		PopulationSize:       DefaultPopulationFactor * dimension,
		CrossoverProbability: DefaultCrossoverProbability,
		DifferentialWeight:   DefaultDifferentialWeight,
		InitBound:            DefaultInitBound,
		InitPolicy:           InitUniform,
		Strategy:             Classic{},
		Seed:                 rand.Uint64(),
	}
}

// Validate checks that the configuration can run to completion.
func (c Config) Validate() error {
	if c.Dimension < 1 {
		return &ConfigError{Field: "dimension", Reason: fmt.Sprintf("must be at least 1, got %d", c.Dimension)}
	}
	if c.Strategy == nil {
		return &ConfigError{Field: "strategy", Reason: "cannot be nil"}
	}
	if need := c.Strategy.Donors() + 1; c.PopulationSize < need {
		return &ConfigError{
			Field:  "population size",
			Reason: fmt.Sprintf("%s strategy needs at least %d candidates, got %d", c.Strategy.Name(), need, c.PopulationSize),
		}
	}
	if math.IsNaN(c.CrossoverProbability) || c.CrossoverProbability < 0 || c.CrossoverProbability > 1 {
		return &ConfigError{Field: "crossover probability", Reason: fmt.Sprintf("must be in [0,1], got %v", c.CrossoverProbability)}
	}
	if !isFinite(c.DifferentialWeight) {
		return &ConfigError{Field: "differential weight", Reason: fmt.Sprintf("must be finite, got %v", c.DifferentialWeight)}
	}
	if !isFinite(c.InitBound) || c.InitBound <= 0 {
		return &ConfigError{Field: "init bound", Reason: fmt.Sprintf("must be positive, got %v", c.InitBound)}
	}
	if c.InitPolicy != InitUniform && c.InitPolicy != InitCentered {
		return &ConfigError{Field: "init policy", Reason: c.InitPolicy.String()}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "workers", Reason: fmt.Sprintf("cannot be negative, got %d", c.Workers)}
	}
	return nil
}
