// Package tune drives a differential evolution run that fits the body
// filter of a plucked-string synthesizer to a reference recording.
package tune

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/plucktune/internal/audio"
	"github.com/cwbudde/plucktune/internal/config"
	"github.com/cwbudde/plucktune/internal/de"
	"github.com/cwbudde/plucktune/internal/metrics"
	"github.com/cwbudde/plucktune/internal/score"
	"github.com/cwbudde/plucktune/internal/store"
	"github.com/cwbudde/plucktune/internal/synth"
)

// StopReason tells why a run ended.
type StopReason string

const (
	StopGenerations StopReason = "generation limit"
	StopTimeBudget  StopReason = "time budget"
	StopConverged   StopReason = "converged"
	StopInterrupted StopReason = "interrupted"
)

// Options are the collaborators of a run.
type Options struct {
	// Store receives checkpoints, the trace and the rendered pluck. Required.
	Store *store.FSStore

	// Recorder is updated after every generation when set.
	Recorder *metrics.Recorder

	// RunID names the run directory. A new ID is generated when empty.
	RunID string
}

// Result summarizes a finished run.
type Result struct {
	RunID          string
	Best           de.Candidate
	InitialFitness float64
	Generations    int
	Evaluations    int64
	Rejected       int64
	Elapsed        time.Duration
	StopReason     StopReason
}

// Run tunes a body filter against ref until a stop condition in cfg is met
// or ctx is cancelled. Cancellation lets the running generation finish and
// is reported as StopInterrupted, not as an error.
func Run(ctx context.Context, cfg config.RunConfig, ref score.Reference, opts Options) (*Result, error) {
	if opts.Store == nil {
		return nil, errors.New("tune: store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	metric, err := score.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	objective, err := score.NewObjective(ref, metric, cfg.Frequency)
	if err != nil {
		return nil, fmt.Errorf("failed to build objective: %w", err)
	}
	deOpts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	optimizer, err := de.New(cfg.Dimension, objective, deOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create optimizer: %w", err)
	}

	// Store the seed actually used so the run can be repeated.
	cfg.Seed = optimizer.Config().Seed

	r := &run{
		cfg:       cfg,
		ref:       ref,
		opts:      opts,
		optimizer: optimizer,
		runID:     opts.RunID,
		tracker: NewConvergenceTracker(ConvergenceConfig{
			Enabled:   cfg.Patience > 0,
			Patience:  cfg.Patience,
			Threshold: cfg.Threshold,
		}),
		lastPluck: math.Inf(1),
	}
	if r.runID == "" {
		r.runID = store.NewRunID()
	}

	return r.execute(ctx)
}

type run struct {
	cfg       config.RunConfig
	ref       score.Reference
	opts      Options
	optimizer *de.Optimizer
	runID     string
	tracker   *ConvergenceTracker
	trace     *store.TraceWriter

	start     time.Time
	initial   float64
	lastPluck float64
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	trace, err := store.NewTraceWriter(r.opts.Store.BaseDir(), r.runID, false)
	if err != nil {
		return nil, err
	}
	r.trace = trace
	defer func() {
		if err := trace.Close(); err != nil {
			slog.Error("Failed to close trace", "runID", r.runID, "error", err)
		}
	}()

	slog.Info("Starting tuning run",
		"runID", r.runID,
		"ref", r.cfg.RefPath,
		"frequency", r.cfg.Frequency,
		"metric", r.cfg.Metric,
		"dimension", r.cfg.Dimension,
		"population", r.optimizer.Config().PopulationSize,
		"strategy", r.cfg.Strategy,
		"workers", r.cfg.EffectiveWorkers(),
		"seed", r.cfg.Seed,
	)

	r.start = time.Now()
	if err := r.optimizer.Initialize(); err != nil {
		return nil, err
	}
	best, err := r.optimizer.Best()
	if err != nil {
		return nil, err
	}
	r.initial = best.Fitness
	r.record(0, best)
	slog.Info("Population initialized", "best_fitness", best.Fitness, "elapsed", time.Since(r.start))

	reason := r.stopReason(ctx, 0, best)
	if reason == "" {
		for b := range r.optimizer.Generations() {
			best = b
			gen := r.optimizer.Generation()
			r.record(gen, best)
			if reason = r.stopReason(ctx, gen, best); reason != "" {
				break
			}
		}
	}

	stats := r.optimizer.Stats()
	res := &Result{
		RunID:          r.runID,
		Best:           best,
		InitialFitness: r.initial,
		Generations:    stats.Generation,
		Evaluations:    stats.Evaluations,
		Rejected:       stats.Rejected,
		Elapsed:        time.Since(r.start),
		StopReason:     reason,
	}

	r.writePluck(best)
	r.checkpoint(best, stats, reason)

	slog.Info("Tuning run finished",
		"runID", r.runID,
		"reason", reason,
		"generations", res.Generations,
		"evaluations", res.Evaluations,
		"rejected", res.Rejected,
		"initial_fitness", res.InitialFitness,
		"best_fitness", best.Fitness,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// stopReason returns a non-empty reason once the run should end. It is
// evaluated between generations only.
func (r *run) stopReason(ctx context.Context, gen int, best de.Candidate) StopReason {
	switch {
	case ctx.Err() != nil:
		return StopInterrupted
	case r.cfg.Generations > 0 && gen >= r.cfg.Generations:
		return StopGenerations
	case r.cfg.TimeBudget > 0 && time.Since(r.start).Seconds() >= r.cfg.TimeBudget:
		return StopTimeBudget
	case r.tracker.Update(best.Fitness):
		return StopConverged
	}
	return ""
}

// record runs the per-generation side effects.
func (r *run) record(gen int, best de.Candidate) {
	stats := r.optimizer.Stats()
	if r.opts.Recorder != nil {
		r.opts.Recorder.Observe(stats)
	}

	if isFinite(best.Fitness) {
		entry := store.TraceEntry{
			Generation: gen,
			Fitness:    best.Fitness,
			Timestamp:  time.Now(),
			Position:   best.Position,
		}
		if err := r.trace.Write(entry); err != nil {
			slog.Warn("Failed to write trace entry", "generation", gen, "error", err)
		}
	}

	if best.Fitness < r.lastPluck {
		r.writePluck(best)
	}

	if r.cfg.ReportEvery > 0 && gen%r.cfg.ReportEvery == 0 {
		slog.Info("Tuning progress",
			"generation", gen,
			"best_fitness", best.Fitness,
			"mean_fitness", stats.MeanFitness,
			"spread", stats.Spread,
			"evaluations", stats.Evaluations,
			"elapsed", time.Since(r.start).Round(time.Millisecond),
		)
		if err := r.trace.Flush(); err != nil {
			slog.Warn("Failed to flush trace", "error", err)
		}
	}

	if gen > 0 && r.cfg.CheckpointEvery > 0 && gen%r.cfg.CheckpointEvery == 0 {
		r.checkpoint(best, stats, "")
	}
}

// writePluck renders the tone of best next to the checkpoint.
func (r *run) writePluck(best de.Candidate) {
	if !isFinite(best.Fitness) {
		return
	}
	tone, err := synth.Pluck(best.Position, r.cfg.Frequency, len(r.ref.Samples), r.ref.SampleRate)
	if err != nil {
		slog.Warn("Failed to render pluck", "error", err)
		return
	}
	if err := audio.Write(r.opts.Store.PluckPath(r.runID), tone, int(math.Round(r.ref.SampleRate))); err != nil {
		slog.Warn("Failed to write pluck", "error", err)
		return
	}
	r.lastPluck = best.Fitness
	slog.Debug("Pluck written", "fitness", best.Fitness)
}

func (r *run) checkpoint(best de.Candidate, stats de.Stats, reason StopReason) {
	if !isFinite(best.Fitness) || !isFinite(r.initial) {
		slog.Warn("Skipping checkpoint with non-finite fitness", "generation", stats.Generation)
		return
	}

	cp := store.NewCheckpoint(r.runID, best.Position, best.Fitness, r.initial, stats.Generation, r.cfg)
	cp.Evaluations = stats.Evaluations
	cp.Done = reason != ""
	cp.StopReason = string(reason)

	err := r.opts.Store.SaveCheckpoint(r.runID, cp)
	if r.opts.Recorder != nil {
		r.opts.Recorder.CheckpointSaved(err)
	}
	if err != nil {
		slog.Error("Failed to save checkpoint", "runID", r.runID, "error", err)
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
