package de

import (
	"iter"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/stat"
)

// Objective maps a position to a fitness. Lower is better. It is called
// concurrently from several lanes and must be safe for that; it should
// return a finite value.
type Objective func(position []float64) float64

// Optimizer drives a Differential Evolution run. Create it with New, call
// Initialize once, then advance it with Step or range over Generations.
type Optimizer struct {
	cfg       Config
	objective Objective
	exec      Executor

	mu         sync.Mutex
	rng        *rand.Rand
	pop        *Population
	generation int

	evaluations atomic.Int64
	rejected    atomic.Int64
}

// Stats summarizes the state of a run.
type Stats struct {
	Generation  int
	Evaluations int64
	Rejected    int64
	BestFitness float64
	MeanFitness float64
	Spread      float64
}

// New validates the configuration and returns an optimizer that still needs
// Initialize. Invalid settings are reported here, before any evaluation.
func New(dimension int, objective Objective, opts ...Option) (*Optimizer, error) {
	cfg := defaultConfig(dimension)
	for _, opt := range opts {
		opt(&cfg)
	}
	if objective == nil {
		return nil, &ConfigError{Field: "objective", Reason: "cannot be nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Optimizer{
		cfg:       cfg,
		objective: objective,
		exec:      executorFor(cfg.Workers),
		rng:       rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Config returns the validated configuration.
func (o *Optimizer) Config() Config {
	return o.cfg
}

// Initialize samples and evaluates the initial population. Each candidate
// is evaluated exactly once.
func (o *Optimizer) Initialize() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pop != nil {
		return ErrAlreadyInitialized
	}

	n, d := o.cfg.PopulationSize, o.cfg.Dimension
	members := make([]Candidate, n)
	for i := range members {
		pos := make([]float64, d)
		for j := range pos {
			pos[j] = o.cfg.InitPolicy.sample(o.rng, o.cfg.InitBound)
		}
		members[i].Position = pos
	}

	o.exec.ForEach(n, func(i int) {
		members[i].Fitness = o.evaluate(members[i].Position)
	})

	o.pop = newPopulation(members)

	slog.Debug("Population initialized",
		"dimension", d,
		"population", n,
		"strategy", o.cfg.Strategy.Name(),
		"init_policy", o.cfg.InitPolicy.String(),
		"best_fitness", o.pop.members[o.pop.best].Fitness,
	)
	return nil
}

// Initialized reports whether Initialize has completed.
func (o *Optimizer) Initialized() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pop != nil
}

// Best returns a copy of the current best candidate.
func (o *Optimizer) Best() (Candidate, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pop == nil {
		return Candidate{}, ErrNotInitialized
	}
	return o.pop.Best(), nil
}

// Population returns copies of all candidates in slot order.
func (o *Optimizer) Population() ([]Candidate, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pop == nil {
		return nil, ErrNotInitialized
	}
	out := make([]Candidate, o.pop.Len())
	for i := range out {
		out[i] = o.pop.At(i)
	}
	return out, nil
}

// Generation returns the number of completed generations.
func (o *Optimizer) Generation() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generation
}

// Stats returns counters and fitness statistics for the current population.
// Non-finite fitness values are left out of the mean and spread.
func (o *Optimizer) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Stats{
		Generation:  o.generation,
		Evaluations: o.evaluations.Load(),
		Rejected:    o.rejected.Load(),
	}
	if o.pop == nil {
		return s
	}

	s.BestFitness = o.pop.members[o.pop.best].Fitness
	finite := make([]float64, 0, o.pop.Len())
	for _, f := range o.pop.Fitnesses() {
		if isFinite(f) {
			finite = append(finite, f)
		}
	}
	if len(finite) > 0 {
		s.MeanFitness, s.Spread = stat.PopMeanStdDev(finite, nil)
	}
	return s
}

// Step advances the population by exactly one generation and returns a copy
// of the best candidate afterwards.
//
// Every lane reads the population as it was when the generation started and
// writes only its own slot of the next buffer, so lanes never observe each
// other's updates.
func (o *Optimizer) Step() (Candidate, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pop == nil {
		return Candidate{}, ErrNotInitialized
	}

	prev := o.pop.members
	n := len(prev)
	gen := uint64(o.generation + 1)

	seeds := make([]uint64, n)
	for i := range seeds {
		seeds[i] = o.rng.Uint64()
	}

	cr, f := o.cfg.CrossoverProbability, o.cfg.DifferentialWeight
	strategy := o.cfg.Strategy
	next := make([]Candidate, n)

	o.exec.ForEach(n, func(i int) {
		rng := rand.New(rand.NewPCG(seeds[i], gen))

		idx := chooseDonors(rng, strategy.Donors(), n, i)
		donors := make([]Candidate, len(idx))
		for k, j := range idx {
			donors[k] = prev[j]
		}

		pos := strategy.Trial(prev[i], donors, cr, f, rng)
		fitness := o.objective(slices.Clone(pos))
		o.evaluations.Add(1)
		if !isFinite(fitness) {
			o.rejected.Add(1)
		}

		if accepts(fitness, prev[i].Fitness) {
			next[i] = Candidate{Position: pos, Fitness: fitness}
		} else {
			next[i] = prev[i]
		}
	})

	o.pop.replace(next)
	o.generation++

	best := o.pop.Best()
	slog.Debug("Generation complete", "generation", o.generation, "best_fitness", best.Fitness)
	return best, nil
}

// Generations yields the best candidate after each generation, forever,
// until the caller stops ranging. On an uninitialized optimizer the sequence
// is empty.
func (o *Optimizer) Generations() iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for {
			best, err := o.Step()
			if err != nil {
				slog.Error("Generation sequence ended", "error", err)
				return
			}
			if !yield(best) {
				return
			}
		}
	}
}

// evaluate runs the objective once and records non-finite results.
func (o *Optimizer) evaluate(pos []float64) float64 {
	v := o.objective(slices.Clone(pos))
	o.evaluations.Add(1)
	if !isFinite(v) {
		o.rejected.Add(1)
	}
	return sanitize(v)
}
