package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cwbudde/plucktune/internal/audio"
	"github.com/cwbudde/plucktune/internal/config"
	"github.com/cwbudde/plucktune/internal/metrics"
	"github.com/cwbudde/plucktune/internal/score"
	"github.com/cwbudde/plucktune/internal/store"
	"github.com/cwbudde/plucktune/internal/tune"
)

var (
	runFile   string
	tuneFlags = config.Default()
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Tune body filter coefficients against a reference recording",
	Long: `Runs differential evolution on the body filter of the pluck synthesizer
until the rendered tone matches the reference. Settings are read from an
optional TOML run file and overridden by flags. Ctrl-C stops after the
current generation and still saves the result.`,
	RunE: runTune,
}

func init() {
	f := tuneCmd.Flags()
	f.StringVar(&runFile, "config", "", "TOML run file")
	f.StringVar(&tuneFlags.RefPath, "ref", "", "Reference WAV file")
	f.Float64Var(&tuneFlags.Frequency, "freq", tuneFlags.Frequency, "Fundamental frequency of the tone in Hz")
	f.StringVar(&tuneFlags.Metric, "metric", tuneFlags.Metric, "Similarity metric (corr, xcorr, mse)")
	f.IntVar(&tuneFlags.Dimension, "dim", tuneFlags.Dimension, "Number of body filter coefficients")
	f.IntVar(&tuneFlags.PopulationSize, "pop", 0, "Population size (0 = 10 x dim)")
	f.Float64Var(&tuneFlags.Crossover, "cr", tuneFlags.Crossover, "Crossover probability")
	f.Float64Var(&tuneFlags.Weight, "weight", tuneFlags.Weight, "Differential weight")
	f.Float64Var(&tuneFlags.InitBound, "init-bound", tuneFlags.InitBound, "Initial coefficient range")
	f.StringVar(&tuneFlags.InitPolicy, "init", tuneFlags.InitPolicy, "Init policy (uniform, centered)")
	f.StringVar(&tuneFlags.Strategy, "strategy", tuneFlags.Strategy, "Trial strategy (classic, directional)")
	f.IntVar(&tuneFlags.Workers, "workers", 0, "Parallel evaluations (0 = all CPUs)")
	f.Uint64Var(&tuneFlags.Seed, "seed", 0, "Random seed (0 = random)")
	f.IntVar(&tuneFlags.Generations, "generations", tuneFlags.Generations, "Stop after N generations (0 = no limit)")
	f.Float64Var(&tuneFlags.TimeBudget, "time-budget", 0, "Stop after N seconds (0 = no limit)")
	f.IntVar(&tuneFlags.Patience, "patience", 0, "Stop after N stagnant generations (0 = never)")
	f.Float64Var(&tuneFlags.Threshold, "threshold", tuneFlags.Threshold, "Relative improvement that resets patience")
	f.IntVar(&tuneFlags.ReportEvery, "report-every", tuneFlags.ReportEvery, "Log progress every N generations")
	f.IntVar(&tuneFlags.CheckpointEvery, "checkpoint-every", tuneFlags.CheckpointEvery, "Save a checkpoint every N generations")
	f.StringVar(&tuneFlags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(tuneCmd)
}

// flagOverrides maps flag names to the config field they set.
var flagOverrides = map[string]func(dst, src *config.RunConfig){
	"ref":              func(d, s *config.RunConfig) { d.RefPath = s.RefPath },
	"freq":             func(d, s *config.RunConfig) { d.Frequency = s.Frequency },
	"metric":           func(d, s *config.RunConfig) { d.Metric = s.Metric },
	"dim":              func(d, s *config.RunConfig) { d.Dimension = s.Dimension },
	"pop":              func(d, s *config.RunConfig) { d.PopulationSize = s.PopulationSize },
	"cr":               func(d, s *config.RunConfig) { d.Crossover = s.Crossover },
	"weight":           func(d, s *config.RunConfig) { d.Weight = s.Weight },
	"init-bound":       func(d, s *config.RunConfig) { d.InitBound = s.InitBound },
	"init":             func(d, s *config.RunConfig) { d.InitPolicy = s.InitPolicy },
	"strategy":         func(d, s *config.RunConfig) { d.Strategy = s.Strategy },
	"workers":          func(d, s *config.RunConfig) { d.Workers = s.Workers },
	"seed":             func(d, s *config.RunConfig) { d.Seed = s.Seed },
	"generations":      func(d, s *config.RunConfig) { d.Generations = s.Generations },
	"time-budget":      func(d, s *config.RunConfig) { d.TimeBudget = s.TimeBudget },
	"patience":         func(d, s *config.RunConfig) { d.Patience = s.Patience },
	"threshold":        func(d, s *config.RunConfig) { d.Threshold = s.Threshold },
	"report-every":     func(d, s *config.RunConfig) { d.ReportEvery = s.ReportEvery },
	"checkpoint-every": func(d, s *config.RunConfig) { d.CheckpointEvery = s.CheckpointEvery },
	"metrics-addr":     func(d, s *config.RunConfig) { d.MetricsAddr = s.MetricsAddr },
}

// resolveRunConfig layers defaults, the run file and explicitly set flags.
func resolveRunConfig(flags *pflag.FlagSet, path string, fromFlags config.RunConfig) (config.RunConfig, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.RunConfig{}, err
		}
		cfg = loaded
	}

	flags.Visit(func(f *pflag.Flag) {
		if apply, ok := flagOverrides[f.Name]; ok {
			apply(&cfg, &fromFlags)
		}
	})
	if f := flags.Lookup("data-dir"); f != nil && f.Changed {
		cfg.DataDir = f.Value.String()
	}
	return cfg, nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := resolveRunConfig(cmd.Flags(), runFile, tuneFlags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	samples, rate, err := audio.Read(cfg.RefPath)
	if err != nil {
		return fmt.Errorf("failed to load reference: %w", err)
	}
	ref := score.Reference{Samples: samples, SampleRate: float64(rate)}
	slog.Info("Loaded reference", "path", cfg.RefPath, "samples", len(samples), "sample_rate", rate)

	runStore, err := store.NewFSStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}

	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, reg)
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := tune.Run(ctx, cfg, ref, tune.Options{Store: runStore, Recorder: recorder})
	if err != nil {
		return err
	}

	printTuneResult(cmd.OutOrStdout(), res, runStore.PluckPath(res.RunID))
	return nil
}

// serveMetrics starts the metrics endpoint and returns a shutdown func.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("Metrics server shutdown failed", "error", err)
		}
	}
}

func printTuneResult(w io.Writer, res *tune.Result, pluckPath string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("TUNING RESULT")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Run ID", res.RunID},
		{"Stop reason", res.StopReason},
		{"Generations", res.Generations},
		{"Evaluations", res.Evaluations},
		{"Rejected", res.Rejected},
		{"Initial fitness", fmt.Sprintf("%.6f", res.InitialFitness)},
		{"Best fitness", fmt.Sprintf("%.6f", res.Best.Fitness)},
		{"Elapsed", res.Elapsed.Round(time.Millisecond)},
		{"Pluck", pluckPath},
	})
	t.Render()

	fmt.Fprintln(w, formatCoefficients(res.Best.Position))
}
