package config

import (
	"time"

	"github.com/jonathan/regression-baseline/internal/capture"
	"github.com/jonathan/regression-baseline/internal/compare"
	"github.com/jonathan/regression-baseline/internal/masking"
)

// CaptureOptions converts the configuration into capturer options. The first
// viewport is the default one the page is restored to after screenshots.
func (c Config) CaptureOptions() capture.Options {
	opts := capture.DefaultOptions()
	opts.DimensionTimeout = time.Duration(c.DimensionTimeoutSeconds) * time.Second
	opts.SettleDelay = time.Duration(c.SettleDelayMS) * time.Millisecond
	opts.Structure = c.Structure
	opts.Text = c.Text
	opts.Functionality = c.Functionality
	opts.Viewports = c.Viewports
	if len(c.Viewports) > 0 {
		opts.DefaultViewport = c.Viewports[0]
	}
	opts.Components = c.Components
	opts.Endpoints = c.Endpoints
	opts.ObservePatterns = c.ObservePatterns
	opts.ObserveLimit = c.ObserveLimit
	opts.ObserveWindow = time.Duration(c.ObserveWindowMS) * time.Millisecond
	opts.BuildInfoPath = c.BuildInfoPath
	opts.Verbose = c.Verbose
	return opts
}

// MaskRegistry composes the configured standard and custom mask regions.
func (c Config) MaskRegistry() (*masking.Registry, error) {
	return masking.NewRegistry(c.Masks, c.CustomMasks...)
}

// Rules builds the comparison rule table: defaults, then critical endpoints,
// then ceilings and per-metric tolerance overrides.
func (c Config) Rules() *compare.Rules {
	rules := compare.DefaultRules()
	if len(c.CriticalEndpoints) > 0 {
		rules.SetCritical(c.CriticalEndpoints)
	}
	for metric, ceiling := range c.Ceilings {
		rules.SetCeiling(metric, ceiling)
	}
	for metric, tol := range c.MetricTolerance {
		rules.SetTolerance(metric, tol.Pass, tol.Warn)
	}
	return rules
}

// CompareOptions converts the configuration into comparator options.
func (c Config) CompareOptions() compare.Options {
	maxDiff := -1
	if c.MaxDiffPixels != nil {
		maxDiff = *c.MaxDiffPixels
	}
	return compare.Options{
		PassRatio:          c.PassRatio,
		WarnRatio:          c.WarnRatio,
		MaxDiffPixels:      maxDiff,
		WarnDiffPercentage: c.WarnDiffPercentage,
		Verbose:            c.Verbose,
	}
}
