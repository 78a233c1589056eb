package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jonathan/regression-baseline/internal/compare"
	"github.com/jonathan/regression-baseline/internal/config"
	"github.com/jonathan/regression-baseline/internal/imagediff"
	"github.com/jonathan/regression-baseline/internal/observability"
	"github.com/jonathan/regression-baseline/internal/report"
	"github.com/jonathan/regression-baseline/internal/store"
	"github.com/jonathan/regression-baseline/internal/types"
	"github.com/spf13/cobra"
)

// Output formats.
const (
	formatText     = "text"
	formatMarkdown = "markdown"
	formatJSON     = "json"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Capture the current state and compare it against the baseline",
	Long: `Loads the stored baseline, captures the target again into a run workspace under
runs/, compares every dimension and writes text, markdown and JSON reports under reports/.

Exits 0 when nothing failed, 1 when a regression was found and 2 when no baseline exists.`,
	RunE: runCompare,
}

var (
	compareFlags  commonFlags
	compareFormat string
	compareKeep   bool
)

func init() {
	compareFlags.register(compareCmd)
	compareCmd.Flags().StringVarP(&compareFormat, "format", "f", formatText, "Output format: text, markdown or json")
	compareCmd.Flags().BoolVar(&compareKeep, "keep-run", true, "Keep the current capture and its screenshots under runs/")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, _ []string) error {
	cfg, err := compareFlags.resolve(cmd)
	if err != nil {
		return operational(err)
	}
	if err := requireTarget(cfg); err != nil {
		return operational(err)
	}
	return compareAgainstBaseline(cmd.Context(), cmd.OutOrStdout(), cfg, compareRun{
		format:  compareFormat,
		keep:    compareKeep,
		headful: compareFlags.headful,
	})
}

type compareRun struct {
	format  string
	keep    bool
	headful bool
}

// compareAgainstBaseline captures the current state and compares it with the
// stored baseline. The returned error carries the exit code.
func compareAgainstBaseline(ctx context.Context, out io.Writer, cfg config.Config, opts compareRun) error {
	if ctx == nil {
		ctx = context.Background()
	}
	render, err := renderer(opts.format)
	if err != nil {
		return operational(err)
	}

	st := store.New(cfg.BaselineDir, cfg.Verbose)
	baseline, found, err := st.Load(ctx)
	if err != nil {
		return operational(fmt.Errorf("failed to load baseline: %w", err))
	}
	if !found {
		return &exitError{
			code: report.ExitMissingBaseline,
			err:  fmt.Errorf("no baseline found in %s; run 'capture' first", st.Root()),
		}
	}

	metrics := observability.NewMetrics()
	defer writeMetrics(cfg, metrics)

	run, err := st.NewRun(time.Now())
	if err != nil {
		return operational(err)
	}
	if !opts.keep {
		defer func() { _ = run.Remove() }()
	}

	capturer, closeCapturer, err := newCapturer(ctx, cfg, opts.headful, run)
	if err != nil {
		return operational(fmt.Errorf("failed to start capture session: %w", err))
	}
	defer closeCapturer()

	start := time.Now()
	current, err := capturer.Capture(ctx, cfg.TargetURL)
	metrics.ObserveCapture(time.Since(start), current)
	if err != nil {
		return operational(fmt.Errorf("capture failed: %w", err))
	}
	if _, err := run.SaveSnapshot(current); err != nil {
		return operational(err)
	}

	differ := imagediff.New(st.VisualRoot(), run.Dir())
	differ.Threshold = cfg.PixelThreshold
	comparator := compare.New(cfg.Rules(), differ, cfg.CompareOptions())

	now := time.Now()
	rep := report.Aggregate(comparator.Compare(ctx, baseline, current), baseline, current, now)
	metrics.ObserveReport(rep)

	if err := saveReports(st, rep, now); err != nil {
		return operational(err)
	}

	withHistory(ctx, cfg, func(h *store.PGHistory) error {
		if err := h.RecordSnapshot(ctx, baseline); err != nil {
			return err
		}
		if err := h.RecordSnapshot(ctx, current); err != nil {
			return err
		}
		_, err := h.RecordReport(ctx, baseline.ID, current.ID, rep)
		return err
	})

	output, err := render(rep)
	if err != nil {
		return operational(err)
	}
	if cfg.Verbose {
		observability.NewPrinter(out).PrintReport(rep)
	}
	_, _ = fmt.Fprint(out, output)

	if code := report.ExitCode(rep); code != report.ExitPass {
		return &exitError{code: code}
	}
	return nil
}

func renderer(format string) (func(*types.Report) (string, error), error) {
	switch format {
	case formatText, "":
		return func(r *types.Report) (string, error) { return report.ToText(r), nil }, nil
	case formatMarkdown:
		return func(r *types.Report) (string, error) { return report.ToMarkdown(r), nil }, nil
	case formatJSON:
		return func(r *types.Report) (string, error) {
			data, err := report.ToStructured(r)
			return string(data), err
		}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (expected text, markdown or json)", format)
	}
}

// saveReports writes the report in every format under the store's reports directory.
func saveReports(st *store.Store, rep *types.Report, now time.Time) error {
	structured, err := report.ToStructured(rep)
	if err != nil {
		return err
	}
	files := []struct {
		ext  string
		data []byte
	}{
		{"txt", []byte(report.ToText(rep))},
		{"md", []byte(report.ToMarkdown(rep))},
		{"json", structured},
	}
	for _, f := range files {
		if _, err := st.SaveReport(store.ReportName(now, f.ext), f.data); err != nil {
			return err
		}
	}
	return nil
}
