package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/cwbudde/plucktune/internal/audio"
	"github.com/cwbudde/plucktune/internal/de"
	"github.com/cwbudde/plucktune/internal/opt"
	"github.com/cwbudde/plucktune/internal/score"
	"github.com/cwbudde/plucktune/internal/synth"
)

var (
	benchFunc        string
	benchDim         int
	benchGenerations int
	benchPop         int
	benchSeed        int64
	benchStrategy    string
	benchRef         string
	benchFreq        float64
	benchMetric      string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Compare differential evolution with mayfly on test functions",
	Long: `Runs the differential evolution engine and the mayfly optimizer with the
same iteration budget on standard test functions and prints the best cost,
evaluation count and wall time of each. With --ref the pluck objective
against that recording is benchmarked instead, with coefficients in [0, 1].`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().StringVar(&benchFunc, "func", "all", "Test function (sphere, rosenbrock, rastrigin, all)")
	benchCmd.Flags().IntVar(&benchDim, "dim", 8, "Problem dimension")
	benchCmd.Flags().IntVar(&benchGenerations, "generations", 200, "Generations / iterations per optimizer")
	benchCmd.Flags().IntVar(&benchPop, "pop", 40, "Population size")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 42, "Random seed")
	benchCmd.Flags().StringVar(&benchStrategy, "strategy", "classic", "DE trial strategy (classic, directional)")
	benchCmd.Flags().StringVar(&benchRef, "ref", "", "Benchmark the pluck objective against this WAV file")
	benchCmd.Flags().Float64Var(&benchFreq, "freq", synth.DefaultFrequency, "Tone frequency for --ref")
	benchCmd.Flags().StringVar(&benchMetric, "metric", string(score.Corr), "Similarity metric for --ref")

	rootCmd.AddCommand(benchCmd)
}

type benchRow struct {
	function  string
	optimizer string
	result    opt.Result
	elapsed   time.Duration
	err       error
}

func runBench(cmd *cobra.Command, args []string) error {
	funcs := opt.TestFunctions
	if benchRef != "" {
		f, err := pluckFunction(benchRef, benchFreq, benchMetric)
		if err != nil {
			return err
		}
		funcs = []opt.TestFunction{f}
	} else if benchFunc != "all" {
		f, err := opt.LookupFunction(benchFunc)
		if err != nil {
			return err
		}
		funcs = []opt.TestFunction{f}
	}

	strategy, err := de.ParseStrategy(benchStrategy)
	if err != nil {
		return err
	}
	optimizers := []opt.Optimizer{
		opt.NewDE(benchGenerations,
			de.WithStrategy(strategy),
			de.WithPopulationSize(benchPop),
			de.WithSeed(uint64(benchSeed))),
		opt.NewMayfly(benchGenerations, benchPop, benchSeed),
	}

	rows := benchmark(funcs, optimizers, benchDim)
	printBench(cmd.OutOrStdout(), rows)
	return nil
}

// pluckFunction wraps the pluck objective as a benchmark function.
func pluckFunction(path string, freq float64, metricName string) (opt.TestFunction, error) {
	metric, err := score.ParseMetric(metricName)
	if err != nil {
		return opt.TestFunction{}, err
	}
	samples, rate, err := audio.Read(path)
	if err != nil {
		return opt.TestFunction{}, fmt.Errorf("failed to load reference: %w", err)
	}
	objective, err := score.NewObjective(score.Reference{Samples: samples, SampleRate: float64(rate)}, metric, freq)
	if err != nil {
		return opt.TestFunction{}, err
	}
	return opt.TestFunction{Name: "pluck/" + string(metric), Eval: objective, Lower: 0, Upper: 1}, nil
}

func benchmark(funcs []opt.TestFunction, optimizers []opt.Optimizer, dim int) []benchRow {
	var rows []benchRow
	for _, f := range funcs {
		lower, upper := f.Bounds(dim)
		for _, o := range optimizers {
			slog.Info("Benchmarking", "function", f.Name, "optimizer", o.Name(), "dim", dim)
			start := time.Now()
			res, err := o.Run(f.Eval, lower, upper, dim)
			rows = append(rows, benchRow{
				function:  f.Name,
				optimizer: o.Name(),
				result:    res,
				elapsed:   time.Since(start),
				err:       err,
			})
		}
	}
	return rows
}

func printBench(w io.Writer, rows []benchRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Function", "Optimizer", "Best cost", "Evaluations", "Time"})
	for _, r := range rows {
		cost := fmt.Sprintf("%.6g", r.result.Cost)
		if r.err != nil {
			cost = "error: " + r.err.Error()
		}
		t.AppendRow(table.Row{r.function, r.optimizer, cost, r.result.Evaluations, r.elapsed.Round(time.Millisecond)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.Render()
}
