package tune

import (
	"log/slog"
	"math"
)

// ConvergenceConfig controls early stopping on stagnation.
type ConvergenceConfig struct {
	Enabled bool

	// Patience is the number of consecutive generations without significant
	// improvement after which the run is considered converged.
	Patience int

	// Threshold is the minimum relative improvement that counts as progress,
	// measured against the last significant fitness. 0.001 means 0.1%.
	Threshold float64
}

// ConvergenceTracker watches the best fitness per generation and reports
// stagnation.
type ConvergenceTracker struct {
	config          ConvergenceConfig
	history         []float64
	best            float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker returns a tracker with an empty history.
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		best:            math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records the best fitness of a generation and returns true once
// patience is exhausted. A disabled tracker never converges.
func (c *ConvergenceTracker) Update(fitness float64) bool {
	if !c.config.Enabled {
		return false
	}

	c.history = append(c.history, fitness)
	if fitness < c.best {
		c.best = fitness
	}

	if len(c.history) == 1 {
		c.lastSignificant = fitness
		return false
	}

	improvement := relativeImprovement(c.lastSignificant, fitness)
	if improvement >= c.config.Threshold && improvement > 0 {
		c.lastSignificant = fitness
		c.staleCount = 0
		slog.Debug("Fitness improvement detected", "fitness", fitness, "relative_improvement", improvement)
		return false
	}

	c.staleCount++
	slog.Debug("No significant fitness improvement",
		"fitness", fitness,
		"last_significant", c.lastSignificant,
		"relative_improvement", improvement,
		"stale_count", c.staleCount,
		"patience", c.config.Patience,
	)

	if c.staleCount >= c.config.Patience {
		slog.Info("Convergence detected",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best_fitness", c.best,
		)
		return true
	}
	return false
}

// relativeImprovement is (from-to)/|from|. Leaving an infinite fitness for a
// finite one is always significant; at zero the absolute change is used.
func relativeImprovement(from, to float64) float64 {
	switch {
	case math.IsInf(from, 1) && !math.IsInf(to, 1) && !math.IsNaN(to):
		return math.Inf(1)
	case math.IsInf(from, 1) || math.IsNaN(to):
		return 0
	case from == 0:
		return from - to
	}
	return (from - to) / math.Abs(from)
}

// BestFitness returns the lowest fitness recorded.
func (c *ConvergenceTracker) BestFitness() float64 {
	return c.best
}

// History returns a copy of all recorded values.
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.history...)
}

// StaleCount returns the current number of generations without significant
// improvement.
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}

// Reset clears the tracker.
func (c *ConvergenceTracker) Reset() {
	c.history = nil
	c.best = math.Inf(1)
	c.lastSignificant = math.Inf(1)
	c.staleCount = 0
}
