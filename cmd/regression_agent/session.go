package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jonathan/regression-baseline/internal/browser"
	"github.com/jonathan/regression-baseline/internal/capture"
	"github.com/jonathan/regression-baseline/internal/config"
	"github.com/jonathan/regression-baseline/internal/fetch"
	"github.com/jonathan/regression-baseline/internal/observability"
	"github.com/jonathan/regression-baseline/internal/store"
	"github.com/jonathan/regression-baseline/internal/types"
)

// capturerFactory opens the automation collaborators for one capture and
// returns a function that releases them.
type capturerFactory func(ctx context.Context, cfg config.Config, headful bool, artifacts capture.ArtifactWriter) (*capture.Capturer, func(), error)

// newCapturer is replaced in tests.
var newCapturer capturerFactory = openBrowserCapturer

func openBrowserCapturer(ctx context.Context, cfg config.Config, headful bool, artifacts capture.ArtifactWriter) (*capture.Capturer, func(), error) {
	registry, err := cfg.MaskRegistry()
	if err != nil {
		return nil, nil, err
	}

	bcfg := browser.DefaultConfig()
	bcfg.Headless = !headful
	bcfg.UserAgent = cfg.UserAgent
	bcfg.Verbose = cfg.Verbose
	if len(cfg.Viewports) > 0 {
		bcfg.Width, bcfg.Height = cfg.Viewports[0].Width, cfg.Viewports[0].Height
	}

	session, err := browser.NewSession(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}

	var prober capture.Prober = session
	if cfg.ProbeMode == config.ProbeHTTP {
		opts := fetch.DefaultOptions()
		if cfg.UserAgent != "" {
			opts.UserAgent = cfg.UserAgent
		}
		prober = capture.HTTPProber{Options: opts}
	}

	c := capture.New(capture.Collaborators{
		Driver:    session,
		Surface:   session,
		Prober:    prober,
		Artifacts: artifacts,
	}, registry, cfg.CaptureOptions())
	return c, session.Close, nil
}

// withHistory runs fn against the PostgreSQL history when a database URL is
// configured. History is optional: failures are reported and otherwise ignored.
func withHistory(ctx context.Context, cfg config.Config, fn func(*store.PGHistory) error) {
	if cfg.DatabaseURL == "" {
		return
	}
	history, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: history database unavailable: %v\n", err)
		return
	}
	defer history.Close()

	if err := history.EnsureSchema(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to prepare history schema: %v\n", err)
		return
	}
	if err := fn(history); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to record history: %v\n", err)
	}
}

func writeMetrics(cfg config.Config, m *observability.Metrics) {
	if cfg.MetricsFile == "" {
		return
	}
	if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to write metrics file: %v\n", err)
	}
}

// printAbsences lists the dimensions a capture could not measure.
func printAbsences(out io.Writer, s *types.Snapshot) {
	for _, dim := range s.AbsentDimensions() {
		_, _ = fmt.Fprintf(out, "  ⚠️  %s not captured: %s\n", dim, s.DimensionAbsence(dim).Reason)
	}
}
