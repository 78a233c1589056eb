// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/regression-baseline/internal/capture"
	"github.com/jonathan/regression-baseline/internal/compare"
	"github.com/jonathan/regression-baseline/internal/masking"
	"github.com/jonathan/regression-baseline/internal/types"
	"gopkg.in/yaml.v3"
)

// Probe modes.
const (
	ProbeBrowser = "browser"
	ProbeHTTP    = "http"
)

// Environment variables that fill empty fields.
const (
	EnvTargetURL   = "REGRESSION_TARGET_URL"
	EnvDatabaseURL = "DATABASE_URL"
)

// Tolerance overrides the ratio thresholds of one metric.
type Tolerance struct {
	Pass float64 `json:"pass" yaml:"pass" validate:"gt=0"`
	Warn float64 `json:"warn" yaml:"warn" validate:"gtefield=Pass"`
}

// Config represents the CLI configuration that can be loaded from a JSON or YAML file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Target
	TargetURL   string `json:"target_url,omitempty" yaml:"target_url,omitempty" validate:"omitempty,url"`
	BaselineDir string `json:"baseline_dir,omitempty" yaml:"baseline_dir,omitempty"`

	// Capture timing
	DimensionTimeoutSeconds int `json:"dimension_timeout_seconds,omitempty" yaml:"dimension_timeout_seconds,omitempty" validate:"gte=0"`
	SettleDelayMS           int `json:"settle_delay_ms,omitempty" yaml:"settle_delay_ms,omitempty" validate:"gte=0"`

	// Catalogs
	Viewports     []capture.Viewport       `json:"viewports,omitempty" yaml:"viewports,omitempty" validate:"dive"`
	Components    []capture.Component      `json:"components,omitempty" yaml:"components,omitempty" validate:"dive"`
	Structure     []capture.FeatureProbe   `json:"structure,omitempty" yaml:"structure,omitempty" validate:"dive"`
	Text          []capture.FeatureProbe   `json:"text,omitempty" yaml:"text,omitempty" validate:"dive"`
	Functionality []capture.FunctionalArea `json:"functionality,omitempty" yaml:"functionality,omitempty" validate:"dive"`

	// API
	Endpoints         []string `json:"endpoints,omitempty" yaml:"endpoints,omitempty" validate:"dive,startswith=/"`
	CriticalEndpoints []string `json:"critical_endpoints,omitempty" yaml:"critical_endpoints,omitempty" validate:"dive,startswith=/"`
	ObservePatterns   []string `json:"observe_patterns,omitempty" yaml:"observe_patterns,omitempty"`
	ObserveLimit      int      `json:"observe_limit,omitempty" yaml:"observe_limit,omitempty" validate:"gte=0"`
	ObserveWindowMS   int      `json:"observe_window_ms,omitempty" yaml:"observe_window_ms,omitempty" validate:"gte=0"`
	BuildInfoPath     string   `json:"build_info_path,omitempty" yaml:"build_info_path,omitempty"`
	ProbeMode         string   `json:"probe_mode,omitempty" yaml:"probe_mode,omitempty" validate:"omitempty,oneof=browser http"`

	// Masking
	Masks       []string           `json:"masks,omitempty" yaml:"masks,omitempty"`
	CustomMasks []types.MaskRegion `json:"custom_masks,omitempty" yaml:"custom_masks,omitempty" validate:"dive"`

	// Comparison thresholds
	PassRatio          float64              `json:"pass_ratio,omitempty" yaml:"pass_ratio,omitempty" validate:"gte=0"`
	WarnRatio          float64              `json:"warn_ratio,omitempty" yaml:"warn_ratio,omitempty" validate:"gte=0"`
	Ceilings           map[string]float64   `json:"ceilings,omitempty" yaml:"ceilings,omitempty"`
	MetricTolerance    map[string]Tolerance `json:"metric_tolerance,omitempty" yaml:"metric_tolerance,omitempty" validate:"dive"`
	MaxDiffPixels      *int                 `json:"max_diff_pixels,omitempty" yaml:"max_diff_pixels,omitempty" validate:"omitempty,gte=0"`
	WarnDiffPercentage float64              `json:"warn_diff_percentage,omitempty" yaml:"warn_diff_percentage,omitempty" validate:"gte=0,lte=100"`
	PixelThreshold     float64              `json:"pixel_threshold,omitempty" yaml:"pixel_threshold,omitempty" validate:"gte=0,lte=1"`

	// Behavior
	UserAgent   string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // PostgreSQL connection URL for history
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"` // Prometheus textfile output
	Verbose     bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`           // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file, or a YAML file when the
// extension is .yaml or .yml.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.PassRatio > 0 && c.WarnRatio > 0 && c.WarnRatio < c.PassRatio {
		return fmt.Errorf("config error: 'warn_ratio' must not be below 'pass_ratio'")
	}

	for _, name := range c.Masks {
		if _, ok := masking.Standard(name); !ok {
			return fmt.Errorf("config error: unknown mask %q (known: %v)", name, masking.StandardNames())
		}
	}

	for metric, ceiling := range c.Ceilings {
		if !knownMetric(metric) {
			return fmt.Errorf("config error: unknown metric %q in 'ceilings'", metric)
		}
		if ceiling < 0 && ceiling != compare.NoCeiling {
			return fmt.Errorf("config error: ceiling for %q must be non-negative or %v", metric, compare.NoCeiling)
		}
	}
	for metric := range c.MetricTolerance {
		if !knownMetric(metric) {
			return fmt.Errorf("config error: unknown metric %q in 'metric_tolerance'", metric)
		}
	}

	return nil
}

func knownMetric(key string) bool {
	for _, def := range types.MetricCatalog {
		if def.Key == key {
			return true
		}
	}
	return false
}

// ApplyEnv fills empty fields from the environment.
func (c *Config) ApplyEnv() {
	if c.TargetURL == "" {
		c.TargetURL = os.Getenv(EnvTargetURL)
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv(EnvDatabaseURL)
	}
}

// Defaults returns the configuration used when nothing else is specified.
func Defaults() Config {
	co := capture.DefaultOptions()
	cmp := compare.DefaultOptions()
	return Config{
		BaselineDir:             "baselines",
		DimensionTimeoutSeconds: int(co.DimensionTimeout / time.Second),
		SettleDelayMS:           int(co.SettleDelay / time.Millisecond),
		Viewports:               co.Viewports,
		Components:              co.Components,
		Structure:               co.Structure,
		Text:                    co.Text,
		Functionality:           co.Functionality,
		Endpoints:               co.Endpoints,
		CriticalEndpoints:       compare.DefaultCriticalEndpoints,
		ObservePatterns:         co.ObservePatterns,
		ObserveLimit:            co.ObserveLimit,
		ObserveWindowMS:         int(co.ObserveWindow / time.Millisecond),
		BuildInfoPath:           co.BuildInfoPath,
		ProbeMode:               ProbeBrowser,
		Masks:                   masking.StandardNames(),
		PassRatio:               cmp.PassRatio,
		WarnRatio:               cmp.WarnRatio,
		MaxDiffPixels:           &cmp.MaxDiffPixels,
		WarnDiffPercentage:      cmp.WarnDiffPercentage,
		PixelThreshold:          0.1,
	}
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.TargetURL == "" {
		result.TargetURL = defaults.TargetURL
	}
	if result.BaselineDir == "" {
		result.BaselineDir = defaults.BaselineDir
	}
	if result.BuildInfoPath == "" {
		result.BuildInfoPath = defaults.BuildInfoPath
	}
	if result.ProbeMode == "" {
		result.ProbeMode = defaults.ProbeMode
	}
	if result.UserAgent == "" {
		result.UserAgent = defaults.UserAgent
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.MetricsFile == "" {
		result.MetricsFile = defaults.MetricsFile
	}

	// Int fields: use default if zero
	if result.DimensionTimeoutSeconds == 0 {
		result.DimensionTimeoutSeconds = defaults.DimensionTimeoutSeconds
	}
	if result.SettleDelayMS == 0 {
		result.SettleDelayMS = defaults.SettleDelayMS
	}
	if result.ObserveLimit == 0 {
		result.ObserveLimit = defaults.ObserveLimit
	}
	if result.ObserveWindowMS == 0 {
		result.ObserveWindowMS = defaults.ObserveWindowMS
	}
	// Pointer so that an explicit zero tolerance survives the merge.
	if result.MaxDiffPixels == nil {
		result.MaxDiffPixels = defaults.MaxDiffPixels
	}

	// Float fields
	if result.PassRatio == 0 {
		result.PassRatio = defaults.PassRatio
	}
	if result.WarnRatio == 0 {
		result.WarnRatio = defaults.WarnRatio
	}
	if result.WarnDiffPercentage == 0 {
		result.WarnDiffPercentage = defaults.WarnDiffPercentage
	}
	if result.PixelThreshold == 0 {
		result.PixelThreshold = defaults.PixelThreshold
	}

	// Catalogs: an empty list means "not configured"
	if len(result.Viewports) == 0 {
		result.Viewports = defaults.Viewports
	}
	if len(result.Components) == 0 {
		result.Components = defaults.Components
	}
	if len(result.Structure) == 0 {
		result.Structure = defaults.Structure
	}
	if len(result.Text) == 0 {
		result.Text = defaults.Text
	}
	if len(result.Functionality) == 0 {
		result.Functionality = defaults.Functionality
	}
	if len(result.Endpoints) == 0 {
		result.Endpoints = defaults.Endpoints
	}
	if len(result.CriticalEndpoints) == 0 {
		result.CriticalEndpoints = defaults.CriticalEndpoints
	}
	if len(result.ObservePatterns) == 0 {
		result.ObservePatterns = defaults.ObservePatterns
	}
	if len(result.Masks) == 0 && len(result.CustomMasks) == 0 {
		result.Masks = defaults.Masks
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
