package store

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/plucktune/internal/config"
)

// Checkpoint is the persisted state of a run: the best body found so far and
// the settings that produced it. The population itself is not saved; runs are
// never continued from a checkpoint.
type Checkpoint struct {
	RunID string `json:"runId"`

	// BestPosition holds the body filter coefficients of the best candidate.
	BestPosition []float64 `json:"bestPosition"`
	BestFitness  float64   `json:"bestFitness"`

	// InitialFitness is the best fitness of the initial population.
	InitialFitness float64 `json:"initialFitness"`

	Generation  int       `json:"generation"`
	Evaluations int64     `json:"evaluations"`
	Timestamp   time.Time `json:"timestamp"`

	// Done is set once the run has stopped.
	Done       bool   `json:"done"`
	StopReason string `json:"stopReason,omitempty"`

	Config config.RunConfig `json:"config"`
}

// RunInfo is the listing view of a checkpoint without the coefficients.
type RunInfo struct {
	RunID       string    `json:"runId"`
	BestFitness float64   `json:"bestFitness"`
	Generation  int       `json:"generation"`
	Timestamp   time.Time `json:"timestamp"`
	Done        bool      `json:"done"`
	Metric      string    `json:"metric"`
	Strategy    string    `json:"strategy"`
	Dimension   int       `json:"dimension"`
	RefPath     string    `json:"refPath"`
}

// NewCheckpoint stamps the current time on a checkpoint.
func NewCheckpoint(runID string, bestPosition []float64, bestFitness, initialFitness float64, generation int, cfg config.RunConfig) *Checkpoint {
	return &Checkpoint{
		RunID:          runID,
		BestPosition:   bestPosition,
		BestFitness:    bestFitness,
		InitialFitness: initialFitness,
		Generation:     generation,
		Timestamp:      time.Now(),
		Config:         cfg,
	}
}

// ToInfo returns the listing view.
func (c *Checkpoint) ToInfo() RunInfo {
	return RunInfo{
		RunID:       c.RunID,
		BestFitness: c.BestFitness,
		Generation:  c.Generation,
		Timestamp:   c.Timestamp,
		Done:        c.Done,
		Metric:      c.Config.Metric,
		Strategy:    c.Config.Strategy,
		Dimension:   c.Config.Dimension,
		RefPath:     c.Config.RefPath,
	}
}

// Improvement returns the relative fitness reduction since initialization in
// percent, or 0 when the initial fitness is not positive.
func (c *Checkpoint) Improvement() float64 {
	if c.InitialFitness <= 0 {
		return 0
	}
	return (c.InitialFitness - c.BestFitness) / c.InitialFitness * 100
}

// Validate checks that the checkpoint is complete and serializable. JSON has
// no encoding for NaN or infinities, so fitness values must be finite.
func (c *Checkpoint) Validate() error {
	if c.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if len(c.BestPosition) == 0 {
		return &ValidationError{Field: "BestPosition", Reason: "cannot be empty"}
	}
	for _, v := range c.BestPosition {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: "BestPosition", Reason: "must be finite"}
		}
	}
	if math.IsNaN(c.BestFitness) || math.IsInf(c.BestFitness, 0) {
		return &ValidationError{Field: "BestFitness", Reason: "must be finite"}
	}
	if math.IsNaN(c.InitialFitness) || math.IsInf(c.InitialFitness, 0) {
		return &ValidationError{Field: "InitialFitness", Reason: "must be finite"}
	}
	if c.Generation < 0 {
		return &ValidationError{Field: "Generation", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.RefPath == "" {
		return &ValidationError{Field: "Config.RefPath", Reason: "cannot be empty"}
	}
	if len(c.BestPosition) != c.Config.Dimension {
		return &ValidationError{
			Field:  "BestPosition",
			Reason: fmt.Sprintf("length mismatch: expected %d coefficients", c.Config.Dimension),
		}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
