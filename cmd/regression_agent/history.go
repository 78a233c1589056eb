package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jonathan/regression-baseline/internal/config"
	"github.com/jonathan/regression-baseline/internal/store"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous baselines",
	Long:  "Lists recent baselines and their comparison outcomes from the history database, or the dated copies kept on disk when no database is configured.",
	RunE:  runHistory,
}

var (
	historyFlags commonFlags
	historyLimit int
)

func init() {
	historyFlags.register(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Maximum number of entries")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := historyFlags.resolve(cmd)
	if err != nil {
		return operational(err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.DatabaseURL != "" {
		return listDatabaseHistory(ctx, cmd.OutOrStdout(), cfg, historyLimit)
	}
	return listDiskHistory(cmd.OutOrStdout(), cfg, historyLimit)
}

func listDatabaseHistory(ctx context.Context, out io.Writer, cfg config.Config, limit int) error {
	history, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return operational(err)
	}
	defer history.Close()
	if err := history.EnsureSchema(ctx); err != nil {
		return operational(err)
	}

	records, err := history.Recent(ctx, limit)
	if err != nil {
		return operational(err)
	}
	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "No baselines recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCAPTURED\tTARGET\tABSENT\tCOMPARISONS\tLAST RESULT")
	for _, rec := range records {
		last := "-"
		if rec.LastPassed != nil && rec.LastComparedAt != nil {
			result := "REGRESSION"
			if *rec.LastPassed {
				result = "PASS"
			}
			last = fmt.Sprintf("%s (%s)", result, rec.LastComparedAt.UTC().Format(time.RFC3339))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.SnapshotID, rec.CapturedAt.UTC().Format(time.RFC3339), rec.TargetURL,
			absentList(rec.AbsentDimensions), rec.Comparisons, last)
	}
	return w.Flush()
}

func listDiskHistory(out io.Writer, cfg config.Config, limit int) error {
	st := store.New(cfg.BaselineDir, cfg.Verbose)
	entries, err := st.History()
	if err != nil {
		return operational(err)
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintf(out, "No baseline history in %s.\n", st.Root())
		return nil
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STAMP\tID\tCAPTURED\tTARGET")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Stamp, e.ID, e.Timestamp.UTC().Format(time.RFC3339), e.TargetURL)
	}
	return w.Flush()
}

func absentList(dims []string) string {
	if len(dims) == 0 {
		return "-"
	}
	return strings.Join(dims, ",")
}
