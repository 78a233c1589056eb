package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jonathan/regression-baseline/internal/config"
	"github.com/jonathan/regression-baseline/internal/observability"
	"github.com/jonathan/regression-baseline/internal/report"
	"github.com/jonathan/regression-baseline/internal/store"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture the application state and replace the stored baseline",
	Long: `Navigates to the target, records feature presence, performance timings, masked
screenshots and API contracts, then atomically replaces the stored baseline.
The previous baseline stays available under history/.

Configuration can be loaded from a JSON or YAML file using --config. Command-line arguments override config file values.`,
	RunE: runCapture,
}

var captureFlags commonFlags

func init() {
	captureFlags.register(captureCmd)
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, _ []string) error {
	cfg, err := captureFlags.resolve(cmd)
	if err != nil {
		return operational(err)
	}
	if err := requireTarget(cfg); err != nil {
		return operational(err)
	}
	return captureBaseline(cmd.Context(), cmd.OutOrStdout(), cfg, captureFlags.headful)
}

// captureBaseline captures the target into a run workspace and promotes it to the baseline.
func captureBaseline(ctx context.Context, out io.Writer, cfg config.Config, headful bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st := store.New(cfg.BaselineDir, cfg.Verbose)
	metrics := observability.NewMetrics()
	defer writeMetrics(cfg, metrics)

	run, err := st.NewRun(time.Now())
	if err != nil {
		return operational(err)
	}
	defer func() { _ = run.Remove() }()

	capturer, closeCapturer, err := newCapturer(ctx, cfg, headful, run)
	if err != nil {
		return operational(fmt.Errorf("failed to start capture session: %w", err))
	}
	defer closeCapturer()

	_, _ = fmt.Fprintf(out, "Capturing baseline from %s...\n", cfg.TargetURL)
	start := time.Now()
	snapshot, err := capturer.Capture(ctx, cfg.TargetURL)
	metrics.ObserveCapture(time.Since(start), snapshot)
	if err != nil {
		return operational(fmt.Errorf("capture failed: %w", err))
	}

	if err := st.Save(ctx, snapshot, run.Dir()); err != nil {
		return operational(fmt.Errorf("failed to save baseline: %w", err))
	}
	reportPath, err := st.SaveBaselineReport([]byte(report.BaselineMarkdown(snapshot)))
	if err != nil {
		return operational(fmt.Errorf("failed to write baseline report: %w", err))
	}

	withHistory(ctx, cfg, func(h *store.PGHistory) error {
		return h.RecordSnapshot(ctx, snapshot)
	})

	if cfg.Verbose {
		observability.NewPrinter(out).PrintSnapshot(snapshot)
	}
	_, _ = fmt.Fprintf(out, "✅ Baseline %s saved to %s\n", snapshot.ID, st.Root())
	printAbsences(out, snapshot)
	_, _ = fmt.Fprintf(out, "Report: %s\n", reportPath)
	return nil
}
