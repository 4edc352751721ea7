package score

import (
	"errors"
	"log/slog"
	"math"

	"github.com/cwbudde/plucktune/internal/de"
	"github.com/cwbudde/plucktune/internal/synth"
)

// Reference is the recording a tone is tuned against. It is loaded once and
// shared read-only by every evaluation.
type Reference struct {
	Samples    []float64
	SampleRate float64
}

// Validate reports whether the reference can be scored against.
func (r Reference) Validate() error {
	if len(r.Samples) < 2 {
		return errors.New("reference must contain at least two samples")
	}
	if r.SampleRate <= 0 {
		return errors.New("reference sample rate must be positive")
	}
	return nil
}

// NewObjective returns an objective that renders a pluck at freq Hz with the
// position as body coefficients, as long as the reference, and scores it with
// metric. A position the synthesizer rejects scores +Inf.
func NewObjective(ref Reference, metric Metric, freq float64) (de.Objective, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}

	n := len(ref.Samples)
	return func(body []float64) float64 {
		tone, err := synth.Pluck(body, freq, n, ref.SampleRate)
		if err != nil {
			slog.Debug("Pluck render failed", "error", err)
			return math.Inf(1)
		}
		return metric.Score(tone, ref.Samples)
	}, nil
}
