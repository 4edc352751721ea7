package main

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/cwbudde/plucktune/internal/store"
)

var (
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored tuning runs",
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs",
	RunE:  runListRuns,
}

var showRunCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the checkpoint of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRun,
}

var cleanRunsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old runs",
	Long: `Delete runs by retention policy: keep only the newest N runs, delete runs
older than N days, or both.`,
	RunE: runCleanRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(listRunsCmd, showRunCmd, cleanRunsCmd)

	cleanRunsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N runs (0 = keep all)")
	cleanRunsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanRunsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runListRuns(cmd *cobra.Command, args []string) error {
	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}
	infos, err := runStore.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	w := outWriter(cmd)
	if len(infos) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Run ID", "Timestamp", "Generation", "Best fitness", "Metric", "Dim", "Status", "Size"})
	for _, info := range infos {
		size := "unknown"
		if n, err := getDirSize(runStore.RunDir(info.RunID)); err == nil {
			size = formatBytes(n)
		}
		status := "running"
		if info.Done {
			status = "done"
		}
		t.AppendRow(table.Row{
			info.RunID,
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Generation,
			fmt.Sprintf("%.6f", info.BestFitness),
			info.Metric,
			info.Dimension,
			status,
			size,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.AppendFooter(table.Row{"Total", len(infos)})
	t.Render()
	return nil
}

func runShowRun(cmd *cobra.Command, args []string) error {
	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}
	cp, err := runStore.LoadCheckpoint(args[0])
	if err != nil {
		return err
	}

	w := outWriter(cmd)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("RUN " + cp.RunID)
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Reference", cp.Config.RefPath},
		{"Frequency", cp.Config.Frequency},
		{"Metric", cp.Config.Metric},
		{"Strategy", cp.Config.Strategy},
		{"Dimension", cp.Config.Dimension},
		{"Seed", cp.Config.Seed},
		{"Generation", cp.Generation},
		{"Evaluations", cp.Evaluations},
		{"Initial fitness", fmt.Sprintf("%.6f", cp.InitialFitness)},
		{"Best fitness", fmt.Sprintf("%.6f", cp.BestFitness)},
		{"Improvement", fmt.Sprintf("%.2f%%", cp.Improvement())},
		{"Saved", cp.Timestamp.Format(time.RFC3339)},
		{"Stop reason", cp.StopReason},
	})
	t.Render()

	fmt.Fprintln(w, formatCoefficients(cp.BestPosition))
	return nil
}

func runCleanRuns(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}
	infos, err := runStore.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	w := outWriter(cmd)
	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays)
	if len(toDelete) == 0 {
		fmt.Fprintln(w, "No runs match deletion criteria.")
		return nil
	}

	fmt.Fprintf(w, "Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(w, "  - %s (generation %d, %s)\n", info.RunID, info.Generation, info.Timestamp.Format("2006-01-02 15:04:05"))
	}

	if !forceClean && !confirm(cmd, w) {
		fmt.Fprintln(w, "Aborted.")
		return nil
	}

	deleted, failed := 0, 0
	for _, info := range toDelete {
		if err := runStore.DeleteRun(info.RunID); err != nil {
			slog.Error("Failed to delete run", "runID", info.RunID, "error", err)
			failed++
			continue
		}
		slog.Info("Deleted run", "runID", info.RunID)
		deleted++
	}

	fmt.Fprintf(w, "\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

func confirm(cmd *cobra.Command, w io.Writer) bool {
	fmt.Fprint(w, "\nProceed with deletion? [y/N]: ")
	var response string
	var in io.Reader = os.Stdin
	if cmd != nil {
		in = cmd.InOrStdin()
	}
	fmt.Fscanln(in, &response)
	return response == "y" || response == "Y"
}

// selectRunsForDeletion returns the runs older than olderThanDays plus all
// but the newest keepLast runs, each at most once.
func selectRunsForDeletion(infos []store.RunInfo, keepLast, olderThanDays int) []store.RunInfo {
	var toDelete []store.RunInfo
	selected := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := slices.Clone(infos)
		slices.SortFunc(sorted, func(a, b store.RunInfo) int {
			return a.Timestamp.Compare(b.Timestamp)
		})
		for _, info := range sorted[:len(sorted)-keepLast] {
			if !selected[info.RunID] {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	return toDelete
}

// outWriter tolerates a nil command so handlers can be called directly.
func outWriter(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}
	return cmd.OutOrStdout()
}

// getDirSize sums the sizes of all regular files below path.
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
