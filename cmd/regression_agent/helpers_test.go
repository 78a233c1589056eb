package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonathan/regression-baseline/internal/capture"
	"github.com/jonathan/regression-baseline/internal/config"
	"github.com/jonathan/regression-baseline/internal/masking"
	"github.com/jonathan/regression-baseline/internal/types"
	"github.com/stretchr/testify/require"
)

// fakePage stands in for the browser: every selector in elements is present
// and every screenshot is the same solid image.
type fakePage struct {
	elements map[string]bool
	shot     []byte
}

func newFakePage(t *testing.T, missing ...string) *fakePage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	elements := map[string]bool{}
	for _, p := range capture.DefaultOptions().Structure {
		elements[p.Selector] = true
	}
	for _, area := range capture.DefaultOptions().Functionality {
		for _, p := range area.Capabilities {
			elements[p.Selector] = true
		}
	}
	for _, c := range capture.DefaultOptions().Components {
		elements[c.Selector] = true
	}
	for _, sel := range missing {
		delete(elements, sel)
	}
	return &fakePage{elements: elements, shot: buf.Bytes()}
}

func (p *fakePage) Navigate(_ context.Context, _ string) error { return nil }

func (p *fakePage) Reload(_ context.Context) error { return nil }

func (p *fakePage) HasElement(_ context.Context, selector string) (bool, error) {
	return p.elements[selector], nil
}

func (p *fakePage) ElementText(_ context.Context, selector string) (string, bool, error) {
	if selector == "h1" {
		return "Power Monitor", true, nil
	}
	return "", false, nil
}

func (p *fakePage) CollectPerformanceMetrics(_ context.Context) (map[string]float64, error) {
	return map[string]float64{
		types.MetricDOMContentLoaded: 120,
		types.MetricFCP:              400,
	}, nil
}

func (p *fakePage) SetViewport(_ context.Context, _, _ int) error { return nil }

func (p *fakePage) Screenshot(_ context.Context) ([]byte, error) { return p.shot, nil }

func (p *fakePage) ScreenshotElement(_ context.Context, selector string) ([]byte, bool, error) {
	if !p.elements[selector] {
		return nil, false, nil
	}
	return p.shot, true, nil
}

func (p *fakePage) ObserveResponses(ctx context.Context, _ func(string) bool, _ int, _ time.Duration, trigger func(context.Context) error) ([]types.ObservedCall, error) {
	return nil, trigger(ctx)
}

func (p *fakePage) InjectMaskStyle(_ context.Context) error { return nil }

func (p *fakePage) MarkElements(_ context.Context, _, _, _ string) (int, error) { return 0, nil }

func (p *fakePage) EmbedManifest(_ context.Context, _ string) error { return nil }

func (p *fakePage) MaskedElements(_ context.Context) ([]masking.MaskedElement, error) { return nil, nil }

func (p *fakePage) ClearMasks(_ context.Context) error { return nil }

func (p *fakePage) URL(_ context.Context) (string, error) { return "", nil }

// useFakePage makes every capture in the test run against page.
func useFakePage(t *testing.T, page *fakePage) {
	t.Helper()
	orig := newCapturer
	newCapturer = func(_ context.Context, cfg config.Config, _ bool, artifacts capture.ArtifactWriter) (*capture.Capturer, func(), error) {
		registry, err := cfg.MaskRegistry()
		if err != nil {
			return nil, nil, err
		}
		c := capture.New(capture.Collaborators{
			Driver:    page,
			Surface:   page,
			Prober:    capture.HTTPProber{},
			Artifacts: artifacts,
		}, registry, cfg.CaptureOptions())
		return c, func() {}, nil
	}
	t.Cleanup(func() { newCapturer = orig })
}

// newTarget serves the probed endpoints of the application under test.
func newTarget(t *testing.T, healthStatus int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/build-info.json":
			_, _ = w.Write([]byte(`{"version":"1.4.0","commit":"abc123"}`))
		case "/health":
			w.WriteHeader(healthStatus)
			_, _ = w.Write([]byte(`{"ok":true}`))
		case "/api/stats", "/api/current":
			_, _ = w.Write([]byte(`{"watts":512}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, targetURL string) config.Config {
	t.Helper()
	cfg := config.Config{
		TargetURL:     targetURL,
		BaselineDir:   t.TempDir(),
		SettleDelayMS: 1,
		ProbeMode:     config.ProbeHTTP,
	}
	cfg = cfg.MergeWithDefaults(config.Defaults())
	require.NoError(t, cfg.Validate())
	return cfg
}
