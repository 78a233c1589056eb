package main

import (
	"fmt"
	"io"

	"github.com/jonathan/regression-baseline/internal/config"
	"github.com/jonathan/regression-baseline/internal/masking"
	"github.com/jonathan/regression-baseline/internal/observability"
	"github.com/jonathan/regression-baseline/internal/types"
	"github.com/spf13/cobra"
)

var masksCmd = &cobra.Command{
	Use:   "masks",
	Short: "List mask regions",
	Long:  "Lists the standard mask catalog, or with --config the regions a capture would apply.",
	RunE:  runMasks,
}

var masksConfigPath string

func init() {
	masksCmd.Flags().StringVar(&masksConfigPath, "config", "", "Path to config file; lists the configured regions instead of the catalog")
	rootCmd.AddCommand(masksCmd)
}

func runMasks(cmd *cobra.Command, _ []string) error {
	if masksConfigPath == "" {
		return listMasks(cmd.OutOrStdout(), "STANDARD MASK REGIONS", standardRegions())
	}

	loaded, err := config.LoadConfig(masksConfigPath)
	if err != nil {
		return operational(fmt.Errorf("failed to load config: %w", err))
	}
	if err := loaded.Validate(); err != nil {
		return operational(err)
	}
	cfg := loaded.MergeWithDefaults(config.Defaults())
	registry, err := cfg.MaskRegistry()
	if err != nil {
		return operational(err)
	}
	return listMasks(cmd.OutOrStdout(), fmt.Sprintf("CONFIGURED MASK REGIONS (%d)", registry.Len()), registry.Regions())
}

func standardRegions() []types.MaskRegion {
	var regions []types.MaskRegion
	for _, name := range masking.StandardNames() {
		region, _ := masking.Standard(name)
		regions = append(regions, region)
	}
	return regions
}

func listMasks(out io.Writer, title string, regions []types.MaskRegion) error {
	if len(regions) == 0 {
		_, _ = fmt.Fprintln(out, "No mask regions configured.")
		return nil
	}
	observability.NewPrinter(out).PrintMasks(title, regions)
	return nil
}
