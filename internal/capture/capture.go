// Package capture acquires the four snapshot dimensions (structural features,
// performance metrics, masked screenshots and API contracts) from a single
// browser session and assembles them into one Snapshot.
//
// Dimensions are captured sequentially because they share the session. A
// failing or slow dimension is recorded as absent; only an unreachable target
// aborts the capture.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/regression-baseline/internal/fetch"
	"github.com/jonathan/regression-baseline/internal/masking"
	"github.com/jonathan/regression-baseline/internal/types"
)

// Driver is the browser automation the capturer depends on.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	HasElement(ctx context.Context, selector string) (bool, error)
	ElementText(ctx context.Context, selector string) (string, bool, error)
	CollectPerformanceMetrics(ctx context.Context) (map[string]float64, error)
	SetViewport(ctx context.Context, width, height int) error
	Screenshot(ctx context.Context) ([]byte, error)
	// ScreenshotElement returns false when no element matches selector.
	ScreenshotElement(ctx context.Context, selector string) ([]byte, bool, error)
	// ObserveResponses runs trigger and collects matching responses until limit
	// responses were seen or window elapsed, whichever comes first.
	ObserveResponses(ctx context.Context, match func(url string) bool, limit int, window time.Duration, trigger func(context.Context) error) ([]types.ObservedCall, error)
}

// Prober performs contract-level HTTP checks against the target.
type Prober interface {
	Probe(ctx context.Context, url string) (types.APIContract, error)
	FetchJSON(ctx context.Context, url string, out any) error
}

// ArtifactWriter persists a named binary artifact and returns its reference.
type ArtifactWriter interface {
	WriteArtifact(name string, data []byte) (string, error)
}

// Collaborators bundles the external services a Capturer drives.
type Collaborators struct {
	Driver    Driver
	Surface   masking.Surface
	Prober    Prober
	Artifacts ArtifactWriter
}

// Capturer produces snapshots.
type Capturer struct {
	driver    Driver
	surface   masking.Surface
	prober    Prober
	artifacts ArtifactWriter
	registry  *masking.Registry
	opts      Options

	now   func() time.Time
	newID func() string
}

// New creates a Capturer. A nil registry applies every standard mask region.
func New(c Collaborators, registry *masking.Registry, opts Options) *Capturer {
	if registry == nil {
		registry = masking.DefaultRegistry()
	}
	if opts.DimensionTimeout <= 0 {
		opts.DimensionTimeout = DefaultOptions().DimensionTimeout
	}
	return &Capturer{
		driver:    c.Driver,
		surface:   c.Surface,
		prober:    c.Prober,
		artifacts: c.Artifacts,
		registry:  registry,
		opts:      opts,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Capture navigates to targetURL and records every dimension.
// It returns FatalCaptureError when the target cannot be reached, and the
// context error when ctx is cancelled; a partial snapshot is never returned.
func (c *Capturer) Capture(ctx context.Context, targetURL string) (*types.Snapshot, error) {
	if c.driver == nil {
		return nil, &FatalCaptureError{URL: targetURL, Cause: errors.New("no browser driver")}
	}

	clog := newLog(c.now, c.opts.Verbose)
	snap := types.NewSnapshot(c.newID(), targetURL, c.now())

	start := time.Now()
	navCtx, cancel := context.WithTimeout(ctx, c.opts.DimensionTimeout)
	err := c.driver.Navigate(navCtx, targetURL)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		clog.Record("target", "navigate", LevelError, err.Error(), time.Since(start))
		return nil, &FatalCaptureError{URL: targetURL, Cause: err}
	}
	clog.Record("target", "navigate", LevelInfo, "loaded "+targetURL, time.Since(start))

	snap.Metadata.BuildInfo = c.captureBuildInfo(ctx, targetURL, clog)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	features, err := runDimension(ctx, c, clog, types.DimensionFeatures, c.captureFeatures)
	if err != nil {
		return nil, err
	}
	snap.Features = features

	visual, err := runDimension(ctx, c, clog, types.DimensionVisual, c.captureVisual)
	if err != nil {
		return nil, err
	}
	snap.Visual = visual

	perf, err := runDimension(ctx, c, clog, types.DimensionPerformance, c.capturePerformance)
	if err != nil {
		return nil, err
	}
	snap.Performance = perf

	api, err := runDimension(ctx, c, clog, types.DimensionAPI, func(dctx context.Context, l *Log) (types.API, error) {
		return c.captureAPI(dctx, targetURL, l)
	})
	if err != nil {
		return nil, err
	}
	snap.API = api

	for _, ev := range clog.Events() {
		if ev.Level == LevelError && ev.Step == "dimension" {
			snap.Metadata.Errors[ev.Dimension] = ev.Message
		}
	}
	snap.Metadata.CaptureLog = clog.Events()
	return snap, nil
}

// absentable is satisfied by every dimension value through its embedded Absence.
type absentable interface {
	MarkAbsent(reason string)
}

// runDimension runs one dimension capture under its own timeout. Failures mark
// the returned value absent; only cancellation of the parent context is returned.
func runDimension[T any, PT interface {
	*T
	absentable
}](ctx context.Context, c *Capturer, clog *Log, dimension string, fn func(context.Context, *Log) (T, error)) (T, error) {
	start := time.Now()
	dctx, cancel := context.WithTimeout(ctx, c.opts.DimensionTimeout)
	defer cancel()

	value, err := fn(dctx, clog)
	if ctx.Err() != nil {
		var zero T
		return zero, ctx.Err()
	}
	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || dctx.Err() == context.DeadlineExceeded {
			reason = fmt.Sprintf("timed out after %s", c.opts.DimensionTimeout)
		}
		dimErr := &DimensionError{Dimension: dimension, Message: reason}
		PT(&value).MarkAbsent(reason)
		clog.Record(dimension, "dimension", LevelError, dimErr.Error(), time.Since(start))
		return value, nil
	}
	clog.Record(dimension, "dimension", LevelInfo, "captured", time.Since(start))
	return value, nil
}

func (c *Capturer) captureBuildInfo(ctx context.Context, targetURL string, clog *Log) map[string]any {
	if c.prober == nil || c.opts.BuildInfoPath == "" {
		return nil
	}
	start := time.Now()
	infoURL, err := fetch.Resolve(targetURL, c.opts.BuildInfoPath)
	if err != nil {
		clog.Record("metadata", "build-info", LevelWarn, err.Error(), 0)
		return nil
	}

	bctx, cancel := context.WithTimeout(ctx, c.opts.DimensionTimeout)
	defer cancel()

	var info map[string]any
	if err := c.prober.FetchJSON(bctx, infoURL, &info); err != nil {
		clog.Record("metadata", "build-info", LevelWarn, "build info not available: "+err.Error(), time.Since(start))
		return nil
	}
	clog.Record("metadata", "build-info", LevelInfo, "build info captured", time.Since(start))
	return info
}

func (c *Capturer) captureFeatures(ctx context.Context, clog *Log) (types.Features, error) {
	f := types.Features{
		Structure:     make(map[string]bool, len(c.opts.Structure)),
		Text:          make(map[string]string, len(c.opts.Text)),
		Functionality: make(map[string]map[string]bool, len(c.opts.Functionality)),
	}

	for _, probe := range c.opts.Structure {
		present, err := c.driver.HasElement(ctx, probe.Selector)
		if err != nil {
			return f, fmt.Errorf("query %s: %w", probe.Name, err)
		}
		f.Structure[probe.Name] = present
	}
	clog.Record(types.DimensionFeatures, "structure", LevelInfo, fmt.Sprintf("%d elements checked", len(c.opts.Structure)), 0)

	for _, probe := range c.opts.Text {
		text, _, err := c.driver.ElementText(ctx, probe.Selector)
		if err != nil {
			return f, fmt.Errorf("read text %s: %w", probe.Name, err)
		}
		f.Text[probe.Name] = text
	}

	for _, area := range c.opts.Functionality {
		caps := make(map[string]bool, len(area.Capabilities))
		for _, probe := range area.Capabilities {
			present, err := c.driver.HasElement(ctx, probe.Selector)
			if err != nil {
				return f, fmt.Errorf("query %s.%s: %w", area.Name, probe.Name, err)
			}
			caps[probe.Name] = present
		}
		f.Functionality[area.Name] = caps
	}
	clog.Record(types.DimensionFeatures, "functionality", LevelInfo, fmt.Sprintf("%d areas checked", len(c.opts.Functionality)), 0)

	return f, nil
}

func (c *Capturer) captureVisual(ctx context.Context, clog *Log) (types.Visual, error) {
	v := types.Visual{
		MaskPolicy: c.registry.Policy(),
		Masks:      []types.AppliedMask{},
		Views:      make(map[string]types.VisualView),
	}
	if c.artifacts == nil {
		return v, errors.New("no artifact writer")
	}

	masker := masking.NewMasker(c.surface)
	applied, err := masker.Apply(ctx, c.registry.Regions())
	if err != nil {
		return v, err
	}
	ok, err := masker.Verify(ctx)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, errors.New("masked elements are missing a label or reason")
	}
	v.Masks = applied
	clog.Record(types.DimensionVisual, "masks", LevelInfo, fmt.Sprintf("%d of %d regions applied", len(applied), c.registry.Len()), 0)

	for _, vp := range c.opts.Viewports {
		name := vp.Name
		view := types.VisualView{Kind: types.ViewKindViewport, Width: vp.Width, Height: vp.Height}
		ref, err := c.shootViewport(ctx, vp)
		if err != nil {
			if ctx.Err() != nil {
				return v, ctx.Err()
			}
			view.MarkAbsent(err.Error())
			clog.Record(types.DimensionVisual, name, LevelWarn, err.Error(), 0)
		} else {
			view.Ref = ref
		}
		v.Views[name] = view
	}

	if dv := c.opts.DefaultViewport; dv.Width > 0 && dv.Height > 0 {
		if err := c.driver.SetViewport(ctx, dv.Width, dv.Height); err != nil {
			return v, fmt.Errorf("restore viewport: %w", err)
		}
	}

	for _, comp := range c.opts.Components {
		name := "component-" + comp.Name
		view := types.VisualView{Kind: types.ViewKindComponent}
		data, found, err := c.driver.ScreenshotElement(ctx, comp.Selector)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return v, ctx.Err()
			}
			view.MarkAbsent(err.Error())
			clog.Record(types.DimensionVisual, name, LevelWarn, "could not capture: "+err.Error(), 0)
		case !found:
			view.MarkAbsent("element not found")
			clog.Record(types.DimensionVisual, name, LevelWarn, "element not found", 0)
		default:
			ref, werr := c.artifacts.WriteArtifact(name+".png", data)
			if werr != nil {
				view.MarkAbsent(werr.Error())
			} else {
				view.Ref = ref
			}
		}
		v.Views[name] = view
	}

	return v, nil
}

func (c *Capturer) shootViewport(ctx context.Context, vp Viewport) (string, error) {
	if err := c.driver.SetViewport(ctx, vp.Width, vp.Height); err != nil {
		return "", fmt.Errorf("set viewport: %w", err)
	}
	if err := wait(ctx, c.opts.SettleDelay); err != nil {
		return "", err
	}
	data, err := c.driver.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	return c.artifacts.WriteArtifact("baseline-"+vp.Name+".png", data)
}

func (c *Capturer) capturePerformance(ctx context.Context, clog *Log) (types.Performance, error) {
	p := types.Performance{Metrics: make(map[string]types.MetricValue, len(types.MetricCatalog))}

	if err := c.driver.Reload(ctx); err != nil {
		return p, fmt.Errorf("reload: %w", err)
	}
	if err := wait(ctx, c.opts.SettleDelay); err != nil {
		return p, err
	}

	raw, err := c.driver.CollectPerformanceMetrics(ctx)
	if err != nil {
		return p, fmt.Errorf("collect metrics: %w", err)
	}

	missing := 0
	for _, def := range types.MetricCatalog {
		value, ok := raw[def.Key]
		if !ok {
			missing++
			p.Metrics[def.Key] = types.MetricValue{Unit: def.Unit, Absent: true}
			continue
		}
		p.Metrics[def.Key] = types.MetricValue{Value: value, Unit: def.Unit}
	}
	for key, value := range raw {
		if _, ok := p.Metrics[key]; !ok {
			p.Metrics[key] = types.MetricValue{Value: value, Unit: types.MetricUnit(key)}
		}
	}

	level := LevelInfo
	if missing > 0 {
		level = LevelWarn
	}
	clog.Record(types.DimensionPerformance, "metrics", level, fmt.Sprintf("%d metrics collected, %d missing", len(raw), missing), 0)
	return p, nil
}

func (c *Capturer) captureAPI(ctx context.Context, targetURL string, clog *Log) (types.API, error) {
	a := types.API{
		Endpoints: make(map[string]types.APIContract, len(c.opts.Endpoints)),
		Observed:  []types.ObservedCall{},
	}
	if c.prober == nil {
		return a, errors.New("no prober")
	}

	if len(c.opts.ObservePatterns) > 0 && c.opts.ObserveLimit > 0 {
		observed, err := c.driver.ObserveResponses(ctx, c.matchObserved, c.opts.ObserveLimit, c.opts.ObserveWindow, c.driver.Reload)
		if err != nil {
			if ctx.Err() != nil {
				return a, ctx.Err()
			}
			clog.Record(types.DimensionAPI, "observe", LevelWarn, err.Error(), 0)
		} else {
			sort.SliceStable(observed, func(i, j int) bool {
				return observed[i].Key() < observed[j].Key()
			})
			a.Observed = observed
			clog.Record(types.DimensionAPI, "observe", LevelInfo, fmt.Sprintf("%d API calls observed", len(observed)), 0)
		}
	}

	for _, endpoint := range c.opts.Endpoints {
		probeURL, err := fetch.Resolve(targetURL, endpoint)
		if err != nil {
			a.Endpoints[endpoint] = types.APIContract{Absent: true, Error: err.Error()}
			continue
		}
		contract, err := c.prober.Probe(ctx, probeURL)
		if err != nil {
			if ctx.Err() != nil {
				return a, ctx.Err()
			}
			a.Endpoints[endpoint] = types.APIContract{Absent: true, Error: err.Error()}
			clog.Record(types.DimensionAPI, endpoint, LevelWarn, "failed to probe: "+err.Error(), 0)
			continue
		}
		a.Endpoints[endpoint] = contract
		clog.Record(types.DimensionAPI, endpoint, LevelInfo, fmt.Sprintf("status %d", contract.Status), 0)
	}

	return a, nil
}

func (c *Capturer) matchObserved(rawURL string) bool {
	for _, pattern := range c.opts.ObservePatterns {
		if strings.Contains(rawURL, pattern) {
			return true
		}
	}
	return false
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
