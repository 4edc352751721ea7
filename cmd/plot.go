package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cwbudde/plucktune/internal/store"
)

var plotOut string

var plotCmd = &cobra.Command{
	Use:   "plot <run-id>",
	Short: "Plot the best fitness of a run per generation",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlot,
}

func init() {
	plotCmd.Flags().StringVar(&plotOut, "out", "convergence.png", "Output image (png, svg or pdf by extension)")
	rootCmd.AddCommand(plotCmd)
}

func runPlot(cmd *cobra.Command, args []string) error {
	entries, err := store.ReadTrace(dataDir, args[0])
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("run %s has an empty trace", args[0])
	}

	if err := plotConvergence(entries, "Run "+args[0], plotOut); err != nil {
		return fmt.Errorf("failed to plot convergence: %w", err)
	}
	slog.Info("Convergence plot written", "out", plotOut, "generations", len(entries))
	return nil
}

// plotConvergence draws best fitness over generations.
func plotConvergence(entries []store.TraceEntry, title, outPath string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Best fitness"

	pts := make(plotter.XYs, len(entries))
	for i, e := range entries {
		pts[i].X = float64(e.Generation)
		pts[i].Y = e.Fitness
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line, plotter.NewGrid())
	p.Legend.Add("best", line)
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 4*vg.Inch, outPath)
}
