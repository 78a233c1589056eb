package main

import (
	"fmt"
	"os"

	"github.com/jonathan/regression-baseline/internal/config"
	"github.com/spf13/cobra"
)

// commonFlags are the settings every command can take from a config file.
// Flags override the file; the file overrides the environment and defaults.
type commonFlags struct {
	configPath  string
	targetURL   string
	baselineDir string
	probeMode   string
	timeout     int
	databaseURL string
	metricsFile string
	headful     bool
	verbose     bool
}

func (f *commonFlags) register(cmd *cobra.Command) {
	// Config file flag (processed first)
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to config file, JSON or YAML (values can be overridden by other flags)")

	cmd.Flags().StringVarP(&f.targetURL, "url", "u", "", "Target application URL (defaults to REGRESSION_TARGET_URL env var)")
	cmd.Flags().StringVarP(&f.baselineDir, "baseline-dir", "b", "", "Baseline directory (default \"baselines\")")
	cmd.Flags().StringVar(&f.probeMode, "probe", "", "API probe mode: browser or http (default \"browser\")")
	cmd.Flags().IntVar(&f.timeout, "timeout", 0, "Per-dimension timeout in seconds (default 30)")
	cmd.Flags().StringVar(&f.databaseURL, "db-url", "", "PostgreSQL connection URL for history (optional, defaults to DATABASE_URL env var)")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile (optional)")
	cmd.Flags().BoolVar(&f.headful, "headful", false, "Show the browser window")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Print detailed debug information")
}

// resolve loads the config file, applies flag overrides, environment and defaults, and validates.
func (f *commonFlags) resolve(cmd *cobra.Command) (config.Config, error) {
	// Step 1: Load config file if provided
	var cfg config.Config
	if f.configPath != "" {
		loadedCfg, err := config.LoadConfig(f.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return config.Config{}, err
		}
		cfg = *loadedCfg
		if f.verbose {
			_, _ = fmt.Fprintf(os.Stderr, "Loaded config from: %s\n", f.configPath)
		}
	}

	// Step 2: Apply CLI overrides, only for flags explicitly set
	if cmd.Flags().Changed("url") {
		cfg.TargetURL = f.targetURL
	}
	if cmd.Flags().Changed("baseline-dir") {
		cfg.BaselineDir = f.baselineDir
	}
	if cmd.Flags().Changed("probe") {
		cfg.ProbeMode = f.probeMode
	}
	if cmd.Flags().Changed("timeout") {
		cfg.DimensionTimeoutSeconds = f.timeout
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = f.databaseURL
	}
	if cmd.Flags().Changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = f.verbose
	}

	// Step 3: Environment, then defaults for unset values
	cfg.ApplyEnv()
	cfg = cfg.MergeWithDefaults(config.Defaults())

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func requireTarget(cfg config.Config) error {
	if cfg.TargetURL == "" {
		return fmt.Errorf("--url is required (via flag, config file or %s)", config.EnvTargetURL)
	}
	return nil
}
