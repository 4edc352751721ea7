// Package de implements a Differential Evolution optimizer over fixed
// dimensional real vectors. It minimizes an injected objective and knows
// nothing about what the vectors mean.
package de

import (
	"math"
	"slices"
)

// Candidate is a point in the search space plus its cached fitness.
// Lower fitness is better.
type Candidate struct {
	Position []float64 `json:"position"`
	Fitness  float64   `json:"fitness"`
}

// Clone returns a deep copy of the candidate.
func (c Candidate) Clone() Candidate {
	return Candidate{
		Position: slices.Clone(c.Position),
		Fitness:  c.Fitness,
	}
}

// Population is a fixed-size ordered set of candidates with the index of the
// current best one.
type Population struct {
	members []Candidate
	best    int
}

func newPopulation(members []Candidate) *Population {
	p := &Population{members: members}
	p.best = bestIndex(members)
	return p
}

// Len returns the number of candidates.
func (p *Population) Len() int {
	return len(p.members)
}

// At returns a copy of the candidate at index i.
func (p *Population) At(i int) Candidate {
	return p.members[i].Clone()
}

// BestIndex returns the index of the candidate with minimal fitness.
func (p *Population) BestIndex() int {
	return p.best
}

// Best returns a copy of the best candidate.
func (p *Population) Best() Candidate {
	return p.members[p.best].Clone()
}

// Fitnesses returns the fitness of every candidate in slot order.
func (p *Population) Fitnesses() []float64 {
	out := make([]float64, len(p.members))
	for i, m := range p.members {
		out[i] = m.Fitness
	}
	return out
}

// replace swaps in the next generation and recomputes the best index.
func (p *Population) replace(next []Candidate) {
	p.members = next
	p.best = bestIndex(next)
}

// bestIndex is the argmin over fitness. Ties keep the lowest index.
func bestIndex(members []Candidate) int {
	best := 0
	for i := 1; i < len(members); i++ {
		if members[i].Fitness < members[best].Fitness {
			best = i
		}
	}
	return best
}

// accepts reports whether trial replaces incumbent. Equal fitness favours the
// trial; a non-finite trial never wins.
func accepts(trial, incumbent float64) bool {
	if !isFinite(trial) {
		return false
	}
	return trial <= incumbent
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// sanitize maps a non-finite objective value to +Inf so it ranks below every
// finite candidate without poisoning comparisons.
func sanitize(v float64) float64 {
	if isFinite(v) {
		return v
	}
	return math.Inf(1)
}
