package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jonathan/regression-baseline/internal/config"
	"github.com/jonathan/regression-baseline/internal/observability"
	"github.com/jonathan/regression-baseline/internal/report"
	"github.com/jonathan/regression-baseline/internal/store"
	"github.com/jonathan/regression-baseline/internal/types"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored baseline",
	Long:  "Prints a summary of the stored baseline, or of a recorded snapshot from the history database when --id is given.",
	RunE:  runShow,
}

var (
	showFlags  commonFlags
	showFormat string
	showID     string
)

func init() {
	showFlags.register(showCmd)
	showCmd.Flags().StringVarP(&showFormat, "format", "f", formatText, "Output format: text, markdown or json")
	showCmd.Flags().StringVar(&showID, "id", "", "Snapshot ID to read from the history database instead of the baseline")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, _ []string) error {
	cfg, err := showFlags.resolve(cmd)
	if err != nil {
		return operational(err)
	}
	return showSnapshot(cmd.Context(), cmd.OutOrStdout(), cfg, showID, showFormat)
}

func showSnapshot(ctx context.Context, out io.Writer, cfg config.Config, id, format string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var snapshot *types.Snapshot
	if id != "" {
		if cfg.DatabaseURL == "" {
			return operational(fmt.Errorf("--id requires a history database (--db-url or %s)", config.EnvDatabaseURL))
		}
		history, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return operational(err)
		}
		defer history.Close()
		snapshot, err = history.GetSnapshot(ctx, id)
		if err != nil {
			return operational(err)
		}
		if snapshot == nil {
			return operational(fmt.Errorf("no snapshot with id %s in history", id))
		}
	} else {
		st := store.New(cfg.BaselineDir, cfg.Verbose)
		loaded, found, err := st.Load(ctx)
		if err != nil {
			return operational(err)
		}
		if !found {
			return &exitError{
				code: report.ExitMissingBaseline,
				err:  fmt.Errorf("no baseline found in %s; run 'capture' first", st.Root()),
			}
		}
		snapshot = loaded
	}

	switch format {
	case formatText, "":
		p := observability.NewPrinter(out)
		p.PrintSnapshot(snapshot)
		regions := make([]types.MaskRegion, 0, len(snapshot.Visual.Masks))
		for _, m := range snapshot.Visual.Masks {
			regions = append(regions, m.MaskRegion)
		}
		p.PrintMasks("MASKED REGIONS", regions)
	case formatMarkdown:
		_, _ = fmt.Fprint(out, report.BaselineMarkdown(snapshot))
	case formatJSON:
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return operational(fmt.Errorf("failed to marshal snapshot to JSON: %w", err))
		}
		_, _ = fmt.Fprintln(out, string(data))
	default:
		return operational(fmt.Errorf("unknown format %q (expected text, markdown or json)", format))
	}
	return nil
}
