package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/plucktune/internal/audio"
	"github.com/cwbudde/plucktune/internal/store"
	"github.com/cwbudde/plucktune/internal/synth"
)

var (
	renderRunID    string
	renderCoeffs   string
	renderFreq     float64
	renderDuration float64
	renderRate     int
	renderOut      string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a pluck from saved or given coefficients",
	Long: `Synthesizes a plucked tone with the body filter of a stored run (--run)
or an explicit comma separated coefficient list (--coeffs) and writes it as
a WAV file.`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderRunID, "run", "", "Use the best coefficients of this run")
	renderCmd.Flags().StringVar(&renderCoeffs, "coeffs", "", "Comma separated body coefficients")
	renderCmd.Flags().Float64Var(&renderFreq, "freq", 0, "Frequency in Hz (default: the run's, or 196)")
	renderCmd.Flags().Float64Var(&renderDuration, "duration", 2, "Length in seconds")
	renderCmd.Flags().IntVar(&renderRate, "rate", int(synth.DefaultSampleRate), "Sample rate in Hz")
	renderCmd.Flags().StringVar(&renderOut, "out", "pluck.wav", "Output WAV path")
	renderCmd.MarkFlagsMutuallyExclusive("run", "coeffs")
	renderCmd.MarkFlagsOneRequired("run", "coeffs")

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	freq := synth.DefaultFrequency
	var body []float64

	if renderRunID != "" {
		runStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create run store: %w", err)
		}
		cp, err := runStore.LoadCheckpoint(renderRunID)
		if err != nil {
			return err
		}
		body = cp.BestPosition
		freq = cp.Config.Frequency
	} else {
		var err error
		body, err = parseCoefficients(renderCoeffs)
		if err != nil {
			return err
		}
	}
	if renderFreq > 0 {
		freq = renderFreq
	}
	if renderDuration <= 0 || renderRate <= 0 {
		return fmt.Errorf("duration and rate must be positive")
	}

	n := int(renderDuration * float64(renderRate))
	tone, err := synth.Pluck(body, freq, n, float64(renderRate))
	if err != nil {
		return fmt.Errorf("failed to render pluck: %w", err)
	}
	if err := audio.Write(renderOut, tone, renderRate); err != nil {
		return err
	}

	slog.Info("Pluck rendered", "out", renderOut, "frequency", freq, "samples", n, "coefficients", len(body))
	return nil
}

// parseCoefficients reads a list like "0.1, 0.25,0.3".
func parseCoefficients(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coefficient %q: %w", f, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no coefficients given")
	}
	return out, nil
}

// formatCoefficients prints coefficients in the form parseCoefficients reads.
func formatCoefficients(c []float64) string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.FormatFloat(v, 'g', 8, 64)
	}
	return strings.Join(parts, ",")
}
