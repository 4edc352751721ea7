package config

import (
	"fmt"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/cwbudde/plucktune/internal/de"
	"github.com/cwbudde/plucktune/internal/score"
	"github.com/cwbudde/plucktune/internal/synth"
)

// RunConfig holds everything needed to start a tuning run. It is read from a
// TOML file, overridden by command-line flags, and stored with every run.
type RunConfig struct {
	RefPath   string  `toml:"ref" json:"refPath"`
	Frequency float64 `toml:"frequency" json:"frequency"`
	Metric    string  `toml:"metric" json:"metric"`

	Dimension      int     `toml:"dimension" json:"dimension"`
	PopulationSize int     `toml:"population" json:"populationSize"` // 0 = 10 x dimension
	Crossover      float64 `toml:"crossover" json:"crossover"`
	Weight         float64 `toml:"weight" json:"weight"`
	InitBound      float64 `toml:"init_bound" json:"initBound"`
	InitPolicy     string  `toml:"init_policy" json:"initPolicy"`
	Strategy       string  `toml:"strategy" json:"strategy"`
	Workers        int     `toml:"workers" json:"workers"` // 0 = GOMAXPROCS
	Seed           uint64  `toml:"seed" json:"seed"`

	Generations     int     `toml:"generations" json:"generations"`   // 0 = unbounded
	TimeBudget      float64 `toml:"time_budget" json:"timeBudget"`    // seconds, 0 = unbounded
	Patience        int     `toml:"patience" json:"patience"`         // 0 = no convergence stop
	Threshold       float64 `toml:"threshold" json:"threshold"`       // relative improvement
	ReportEvery     int     `toml:"report_every" json:"reportEvery"`
	CheckpointEvery int     `toml:"checkpoint_every" json:"checkpointEvery"`

	DataDir     string `toml:"data_dir" json:"dataDir"`
	MetricsAddr string `toml:"metrics_addr" json:"metricsAddr,omitempty"`
}

// Default returns the settings of the original tuning session: 16 body
// taps, open G string, correlation scoring, initial taps within [0, 0.1].
func Default() RunConfig {
	return RunConfig{
		Frequency:       synth.DefaultFrequency,
		Metric:          string(score.Corr),
		Dimension:       16,
		Crossover:       de.DefaultCrossoverProbability,
		Weight:          de.DefaultDifferentialWeight,
		InitBound:       0.1,
		InitPolicy:      de.InitUniform.String(),
		Strategy:        de.Classic{}.Name(),
		Threshold:       0.001,
		ReportEvery:     10,
		CheckpointEvery: 50,
		DataDir:         "./data",
	}
}

// Load reads a TOML run file on top of Default. Keys missing from the file
// keep their default value.
func Load(path string) (RunConfig, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return RunConfig{}, fmt.Errorf("failed to parse run file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return RunConfig{}, &ValidationError{Field: undecoded[0].String(), Reason: "unknown key"}
	}
	return cfg, nil
}

// Validate checks ranges and names before any work starts.
func (c RunConfig) Validate() error {
	if c.RefPath == "" {
		return &ValidationError{Field: "ref", Reason: "cannot be empty"}
	}
	if c.Frequency <= 0 {
		return &ValidationError{Field: "frequency", Reason: "must be positive"}
	}
	if _, err := score.ParseMetric(c.Metric); err != nil {
		return &ValidationError{Field: "metric", Reason: err.Error()}
	}
	if c.Dimension < 1 {
		return &ValidationError{Field: "dimension", Reason: "must be at least 1"}
	}
	if c.PopulationSize < 0 {
		return &ValidationError{Field: "population", Reason: "cannot be negative"}
	}
	if c.Generations < 0 {
		return &ValidationError{Field: "generations", Reason: "cannot be negative"}
	}
	if c.TimeBudget < 0 {
		return &ValidationError{Field: "time_budget", Reason: "cannot be negative"}
	}
	if c.Patience < 0 {
		return &ValidationError{Field: "patience", Reason: "cannot be negative"}
	}
	if c.ReportEvery < 0 || c.CheckpointEvery < 0 {
		return &ValidationError{Field: "report_every/checkpoint_every", Reason: "cannot be negative"}
	}
	if c.DataDir == "" {
		return &ValidationError{Field: "data_dir", Reason: "cannot be empty"}
	}
	if _, err := c.Options(); err != nil {
		return &ValidationError{Field: "optimizer", Reason: err.Error()}
	}
	return nil
}

// Options translates the optimizer settings into de options. Range checks
// beyond name parsing are left to de.New.
func (c RunConfig) Options() ([]de.Option, error) {
	strategy, err := de.ParseStrategy(c.Strategy)
	if err != nil {
		return nil, err
	}
	policy, err := de.ParseInitPolicy(c.InitPolicy)
	if err != nil {
		return nil, err
	}

	opts := []de.Option{
		de.WithStrategy(strategy),
		de.WithInitPolicy(policy),
		de.WithCrossoverProbability(c.Crossover),
		de.WithDifferentialWeight(c.Weight),
		de.WithInitBound(c.InitBound),
		de.WithWorkers(c.Workers),
	}
	if c.PopulationSize > 0 {
		opts = append(opts, de.WithPopulationSize(c.PopulationSize))
	}
	if c.Seed != 0 {
		opts = append(opts, de.WithSeed(c.Seed))
	}
	return opts, nil
}

// EffectiveWorkers resolves the zero value to GOMAXPROCS.
func (c RunConfig) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// ValidationError reports an invalid run setting.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid run config: " + e.Field + " " + e.Reason
}
