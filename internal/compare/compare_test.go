package compare

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonathan/regression-baseline/internal/imagediff"
	"github.com/jonathan/regression-baseline/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDiffer struct {
	result types.DiffResult
	err    error
	calls  int
}

func (d *fakeDiffer) Diff(_ context.Context, baselineRef, currentRef string) (types.DiffResult, error) {
	d.calls++
	if d.err != nil {
		return types.DiffResult{}, d.err
	}
	if baselineRef == currentRef {
		return types.DiffResult{TotalPixels: 1000}, nil
	}
	return d.result, nil
}

func fullSnapshot() *types.Snapshot {
	s := types.NewSnapshot("base", "http://localhost:3000", time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	s.Features.Structure["header"] = true
	s.Features.Structure["powerWidget"] = true
	s.Features.Structure["grafanaPreview"] = false
	s.Features.Text["mainHeading"] = "Power Dashboard"
	s.Features.Functionality["apiStatus"] = map[string]bool{"influxStatus": true, "lastUpdate": true}

	s.Performance.Metrics[types.MetricDOMContentLoaded] = types.MetricValue{Value: 100, Unit: types.UnitMilliseconds}
	s.Performance.Metrics[types.MetricDNSLookup] = types.MetricValue{Value: 0, Unit: types.UnitMilliseconds}
	s.Performance.Metrics[types.MetricCLS] = types.MetricValue{Value: 0, Unit: types.UnitScore}
	s.Performance.Metrics[types.MetricFID] = types.MetricValue{Unit: types.UnitMilliseconds, Absent: true}

	s.Visual.Masks = []types.AppliedMask{{
		MaskRegion: types.MaskRegion{Name: "timestamps", Selector: ".timestamp", Label: "Timestamp", Reason: "clock", Category: types.MaskCategoryTimestamp},
		Matched:    1,
	}}
	s.Visual.MaskPolicy = "timestamps=.timestamp"
	s.Visual.Views["desktop"] = types.VisualView{Ref: "visual/baseline-desktop.png", Kind: types.ViewKindViewport}
	notFound := types.VisualView{Kind: types.ViewKindComponent}
	notFound.MarkAbsent("element not found")
	s.Visual.Views["component-grafana"] = notFound

	s.API.Endpoints["/health"] = types.APIContract{Status: 200, ContentType: "application/json", OK: true}
	s.API.Endpoints["/build-info.json"] = types.APIContract{Status: 200, ContentType: "application/json", OK: true}
	s.API.Endpoints["/api/current"] = types.APIContract{Status: 200, ContentType: "application/json; charset=utf-8", OK: true}
	s.API.Observed = []types.ObservedCall{{URL: "http://localhost:3000/api/stats?t=1", Method: "GET", Status: 200}}
	return s
}

func clone(t *testing.T, s *types.Snapshot) *types.Snapshot {
	t.Helper()
	c := *s
	c.Features.Structure = copyMap(s.Features.Structure)
	c.Features.Text = copyMap(s.Features.Text)
	c.Features.Functionality = map[string]map[string]bool{}
	for k, v := range s.Features.Functionality {
		c.Features.Functionality[k] = copyMap(v)
	}
	c.Performance.Metrics = copyMap(s.Performance.Metrics)
	c.Visual.Views = copyMap(s.Visual.Views)
	c.Visual.Masks = append([]types.AppliedMask(nil), s.Visual.Masks...)
	c.API.Endpoints = copyMap(s.API.Endpoints)
	c.API.Observed = append([]types.ObservedCall(nil), s.API.Observed...)
	return &c
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func find(t *testing.T, findings []types.Finding, category string) types.Finding {
	t.Helper()
	for _, f := range findings {
		if f.Category == category {
			return f
		}
	}
	t.Fatalf("no finding for %s", category)
	return types.Finding{}
}

func countStatus(findings []types.Finding, status types.Status) int {
	n := 0
	for _, f := range findings {
		if f.Status == status {
			n++
		}
	}
	return n
}

func newComparator() *Comparator {
	return New(nil, &fakeDiffer{}, DefaultOptions())
}

func TestCompare_SelfComparisonIsClean(t *testing.T) {
	s := fullSnapshot()
	findings := newComparator().Compare(context.Background(), s, s)

	require.NotEmpty(t, findings)
	assert.Zero(t, countStatus(findings, types.StatusFail))
	assert.Zero(t, countStatus(findings, types.StatusWarning))
}

func TestCompare_SelfComparisonWithAbsentDimensions(t *testing.T) {
	s := fullSnapshot()
	s.Performance = types.Performance{}
	s.Performance.MarkAbsent("timed out after 30s")

	findings := newComparator().Compare(context.Background(), s, s)
	assert.Zero(t, countStatus(findings, types.StatusFail))
	assert.Zero(t, countStatus(findings, types.StatusWarning))
	assert.Equal(t, types.StatusPass, find(t, findings, "performance").Status)
}

func TestCompare_DoesNotMutateInputs(t *testing.T) {
	base := fullSnapshot()
	cur := clone(t, base)
	cur.Features.Structure["powerWidget"] = false
	before := clone(t, base)

	newComparator().Compare(context.Background(), base, cur)
	assert.Equal(t, before, base)
}

func TestCompare_PowerWidgetRemoved(t *testing.T) {
	base := fullSnapshot()
	cur := clone(t, base)
	cur.Features.Structure["powerWidget"] = false

	findings := newComparator().Compare(context.Background(), base, cur)

	var failed []types.Finding
	for _, f := range findings {
		if f.Status == types.StatusFail {
			failed = append(failed, f)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, "features.powerWidget", failed[0].Category)
	assert.Equal(t, "true", failed[0].Baseline)
	assert.Equal(t, "false", failed[0].Current)
}

func TestCompare_FeatureTextAndFunctionality(t *testing.T) {
	base := fullSnapshot()
	cur := clone(t, base)
	cur.Features.Text["mainHeading"] = "Dashboard"
	cur.Features.Functionality["apiStatus"]["influxStatus"] = false
	cur.Features.Functionality["grafana"] = map[string]bool{"preview": true}

	findings := newComparator().Compare(context.Background(), base, cur)

	assert.Equal(t, types.StatusFail, find(t, findings, "features.text.mainHeading").Status)
	assert.Equal(t, types.StatusFail, find(t, findings, "features.apiStatus.influxStatus").Status)
	added := find(t, findings, "features.grafana")
	assert.Equal(t, types.StatusWarning, added.Status)
	assert.Equal(t, missingValue, added.Baseline)
}

func TestCompare_PerformanceTolerance(t *testing.T) {
	tests := []struct {
		name     string
		factor   float64
		expected types.Status
	}{
		{"faster", 0.5, types.StatusPass},
		{"unchanged", 1.0, types.StatusPass},
		{"at pass boundary", 1.2, types.StatusPass},
		{"just over pass", 1.21, types.StatusWarning},
		{"at warn boundary", 1.5, types.StatusWarning},
		{"just over warn", 1.51, types.StatusFail},
	}

	baselines := []float64{1, 3, 7, 100, 333.3, 1234.567}
	for _, tt := range tests {
		for _, b := range baselines {
			t.Run(tt.name, func(t *testing.T) {
				base := fullSnapshot()
				cur := clone(t, base)
				base.Performance.Metrics[types.MetricLCP] = types.MetricValue{Value: b, Unit: types.UnitMilliseconds}
				cur.Performance.Metrics[types.MetricLCP] = types.MetricValue{Value: tt.factor * b, Unit: types.UnitMilliseconds}

				findings := newComparator().Compare(context.Background(), base, cur)
				assert.Equal(t, tt.expected, find(t, findings, "performance.webVitals.lcp").Status, "baseline %v", b)
			})
		}
	}
}

func TestCompare_ZeroBaselineUsesCeiling(t *testing.T) {
	tests := []struct {
		name     string
		metric   string
		current  float64
		expected types.Status
	}{
		{"dns at ceiling", types.MetricDNSLookup, 50, types.StatusPass},
		{"dns below ceiling", types.MetricDNSLookup, 12, types.StatusPass},
		{"dns above ceiling", types.MetricDNSLookup, 50.1, types.StatusFail},
		{"cls at ceiling", types.MetricCLS, 0.1, types.StatusPass},
		{"cls above ceiling", types.MetricCLS, 0.25, types.StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := fullSnapshot()
			cur := clone(t, base)
			unit := base.Performance.Metrics[tt.metric].Unit
			cur.Performance.Metrics[tt.metric] = types.MetricValue{Value: tt.current, Unit: unit}

			findings := newComparator().Compare(context.Background(), base, cur)
			f := find(t, findings, "performance."+tt.metric)
			assert.Equal(t, tt.expected, f.Status)
			assert.Contains(t, f.Note, "ceiling")
		})
	}
}

func TestCompare_CeilingIsConfigurable(t *testing.T) {
	rules := DefaultRules()
	rules.SetCeiling(types.MetricDNSLookup, 5)

	base := fullSnapshot()
	cur := clone(t, base)
	cur.Performance.Metrics[types.MetricDNSLookup] = types.MetricValue{Value: 12, Unit: types.UnitMilliseconds}

	findings := New(rules, &fakeDiffer{}, DefaultOptions()).Compare(context.Background(), base, cur)
	assert.Equal(t, types.StatusFail, find(t, findings, "performance.navigation.dnsLookup").Status)
}

func TestCompare_ZeroBaselineWithoutCeiling(t *testing.T) {
	rules := DefaultRules()
	rules.SetCeiling(types.MetricDNSLookup, NoCeiling)

	base := fullSnapshot()
	cur := clone(t, base)
	cur.Performance.Metrics[types.MetricDNSLookup] = types.MetricValue{Value: 3, Unit: types.UnitMilliseconds}

	findings := New(rules, &fakeDiffer{}, DefaultOptions()).Compare(context.Background(), base, cur)
	assert.Equal(t, types.StatusWarning, find(t, findings, "performance.navigation.dnsLookup").Status)
}

func TestCompare_ResourceRules(t *testing.T) {
	base := fullSnapshot()
	base.Performance.Metrics[types.MetricResourceCount] = types.MetricValue{Value: 10, Unit: types.UnitCount}
	base.Performance.Metrics[types.MetricTransferSize] = types.MetricValue{Value: 1000, Unit: types.UnitBytes}
	cur := clone(t, base)
	cur.Performance.Metrics[types.MetricResourceCount] = types.MetricValue{Value: 40, Unit: types.UnitCount}
	cur.Performance.Metrics[types.MetricTransferSize] = types.MetricValue{Value: 1150, Unit: types.UnitBytes}

	findings := newComparator().Compare(context.Background(), base, cur)
	assert.Equal(t, types.StatusWarning, find(t, findings, "performance.resources.total").Status)
	assert.Equal(t, types.StatusWarning, find(t, findings, "performance.resources.totalSize").Status)
}

func TestCompare_UndeclaredMetricComparedExactly(t *testing.T) {
	base := fullSnapshot()
	base.Performance.Metrics["custom.widgetRender"] = types.MetricValue{Value: 10, Unit: types.UnitMilliseconds}
	cur := clone(t, base)
	cur.Performance.Metrics["custom.widgetRender"] = types.MetricValue{Value: 11, Unit: types.UnitMilliseconds}

	findings := newComparator().Compare(context.Background(), base, cur)
	assert.Equal(t, types.StatusWarning, find(t, findings, "performance.custom.widgetRender").Status)
}

func TestCompare_MetricAbsentOnOneSide(t *testing.T) {
	base := fullSnapshot()
	cur := clone(t, base)
	cur.Performance.Metrics[types.MetricDOMContentLoaded] = types.MetricValue{Unit: types.UnitMilliseconds, Absent: true}

	findings := newComparator().Compare(context.Background(), base, cur)
	f := find(t, findings, "performance.navigation.domContentLoaded")
	assert.Equal(t, types.StatusWarning, f.Status)
	assert.Equal(t, absentValue, f.Current)
	assert.Equal(t, types.StatusPass, find(t, findings, "performance.webVitals.fid").Status)
}

func TestCompare_APIScenarios(t *testing.T) {
	base := fullSnapshot()
	cur := clone(t, base)
	cur.API.Endpoints["/health"] = types.APIContract{Status: 503, ContentType: "application/json"}
	delete(cur.API.Endpoints, "/build-info.json")
	cur.API.Endpoints["/api/current"] = types.APIContract{Status: 404, ContentType: "text/html"}

	findings := newComparator().Compare(context.Background(), base, cur)

	health := find(t, findings, "api./health")
	assert.Equal(t, types.StatusFail, health.Status)
	assert.Equal(t, "Status 200", health.Baseline)
	assert.Equal(t, "Status 503", health.Current)

	buildInfo := find(t, findings, "api./build-info.json")
	assert.Equal(t, types.StatusWarning, buildInfo.Status)
	assert.Equal(t, missingValue, buildInfo.Current)

	assert.Equal(t, types.StatusWarning, find(t, findings, "api./api/current").Status, "non-critical endpoint")
}

func TestCompare_APIContentTypeDrift(t *testing.T) {
	base := fullSnapshot()
	cur := clone(t, base)
	cur.API.Endpoints["/api/current"] = types.APIContract{Status: 200, ContentType: "application/json", OK: true}
	cur.API.Endpoints["/health"] = types.APIContract{Status: 200, ContentType: "text/plain", OK: true}

	findings := newComparator().Compare(context.Background(), base, cur)
	assert.Equal(t, types.StatusPass, find(t, findings, "api./api/current").Status, "charset parameter is ignored")
	assert.Equal(t, types.StatusWarning, find(t, findings, "api./health").Status)
}

func TestCompare_CriticalEndpointsConfigurable(t *testing.T) {
	rules := DefaultRules()
	rules.SetCritical([]string{"/api/current"})

	base := fullSnapshot()
	cur := clone(t, base)
	cur.API.Endpoints["/api/current"] = types.APIContract{Status: 500}
	cur.API.Endpoints["/health"] = types.APIContract{Status: 503}

	findings := New(rules, &fakeDiffer{}, DefaultOptions()).Compare(context.Background(), base, cur)
	assert.Equal(t, types.StatusFail, find(t, findings, "api./api/current").Status)
	assert.Equal(t, types.StatusWarning, find(t, findings, "api./health").Status)
}

func TestCompare_ObservedCalls(t *testing.T) {
	base := fullSnapshot()
	cur := clone(t, base)
	cur.API.Observed = []types.ObservedCall{
		{URL: "http://127.0.0.1:3000/api/stats?t=2", Method: "GET", Status: 200},
		{URL: "http://127.0.0.1:3000/api/alerts", Method: "GET", Status: 200},
	}

	findings := newComparator().Compare(context.Background(), base, cur)
	f := find(t, findings, "api.observed")
	assert.Equal(t, types.StatusWarning, f.Status)
	assert.Equal(t, "added: GET /api/alerts", f.Note)
}

func TestCompare_VisualThresholds(t *testing.T) {
	tests := []struct {
		name     string
		result   types.DiffResult
		expected types.Status
	}{
		{"within pixel budget", types.DiffResult{DiffPixels: 100, TotalPixels: 100000, DiffPercentage: 0.1}, types.StatusPass},
		{"small percentage", types.DiffResult{DiffPixels: 500, TotalPixels: 100000, DiffPercentage: 0.5}, types.StatusWarning},
		{"large percentage", types.DiffResult{DiffPixels: 5000, TotalPixels: 100000, DiffPercentage: 5}, types.StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := fullSnapshot()
			cur := clone(t, base)
			cur.Visual.Views["desktop"] = types.VisualView{Ref: "visual/current-desktop.png", Kind: types.ViewKindViewport}

			findings := New(nil, &fakeDiffer{result: tt.result}, DefaultOptions()).Compare(context.Background(), base, cur)
			assert.Equal(t, tt.expected, find(t, findings, "visual.desktop").Status)
		})
	}
}

func TestCompare_VisualDifferErrorIsWarning(t *testing.T) {
	base := fullSnapshot()
	differ := &fakeDiffer{err: errors.New("failed to decode baseline-desktop.png: png: invalid format")}

	findings := New(nil, differ, DefaultOptions()).Compare(context.Background(), base, clone(t, base))
	f := find(t, findings, "visual.desktop")
	assert.Equal(t, types.StatusWarning, f.Status)
	assert.Contains(t, f.Note, "png: invalid format")
}

func writeSolidPNG(t *testing.T, dir, ref string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	path := filepath.Join(dir, filepath.FromSlash(ref))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestCompare_VisualSizeChangeFails(t *testing.T) {
	baseDir, curDir := t.TempDir(), t.TempDir()
	writeSolidPNG(t, baseDir, "visual/baseline-desktop.png", 200, 200, color.White)
	writeSolidPNG(t, curDir, "visual/baseline-desktop.png", 200, 400, color.Black)

	base := fullSnapshot()
	findings := New(nil, imagediff.New(baseDir, curDir), DefaultOptions()).Compare(context.Background(), base, clone(t, base))
	f := find(t, findings, "visual.desktop")
	assert.Equal(t, types.StatusFail, f.Status)
	assert.Contains(t, f.Note, "200x200")
	assert.Contains(t, f.Note, "200x400")
}

func TestCompare_VisualWrappedSizeMismatchFails(t *testing.T) {
	sizeErr := &imagediff.SizeMismatchError{Baseline: image.Pt(10, 10), Current: image.Pt(10, 20)}
	differ := &fakeDiffer{err: fmt.Errorf("desktop: %w", sizeErr)}

	base := fullSnapshot()
	findings := New(nil, differ, DefaultOptions()).Compare(context.Background(), base, clone(t, base))
	assert.Equal(t, types.StatusFail, find(t, findings, "visual.desktop").Status)
}

func TestCompare_VisualZeroPixelTolerance(t *testing.T) {
	base := fullSnapshot()
	cur := clone(t, base)
	cur.Visual.Views["desktop"] = types.VisualView{Ref: "visual/current-desktop.png", Kind: types.ViewKindViewport}
	differ := &fakeDiffer{result: types.DiffResult{DiffPixels: 1, TotalPixels: 100000, DiffPercentage: 0.001}}

	opts := DefaultOptions()
	opts.MaxDiffPixels = 0
	findings := New(nil, differ, opts).Compare(context.Background(), base, cur)
	f := find(t, findings, "visual.desktop")
	assert.Equal(t, types.StatusWarning, f.Status)
	assert.Equal(t, "more than 0 pixels differ", f.Note)
}

func TestCompare_DifferentMaskPolicySkipsViews(t *testing.T) {
	base := fullSnapshot()
	cur := clone(t, base)
	cur.Visual.MaskPolicy = "grafana=iframe;timestamps=.timestamp"
	cur.Visual.Masks = append(cur.Visual.Masks, types.AppliedMask{
		MaskRegion: types.MaskRegion{Name: "grafana", Selector: "iframe", Label: "Grafana", Reason: "cross-origin", Category: types.MaskCategoryExternalContent},
		Matched:    1,
	})
	differ := &fakeDiffer{}

	findings := New(nil, differ, DefaultOptions()).Compare(context.Background(), base, cur)

	assert.Equal(t, types.StatusWarning, find(t, findings, "visual.masks").Status)
	view := find(t, findings, "visual.desktop")
	assert.Equal(t, types.StatusWarning, view.Status)
	assert.Contains(t, view.Note, "mask policies")
	assert.Zero(t, differ.calls)
}

func TestCompare_AbsentDimensionOnOneSide(t *testing.T) {
	base := fullSnapshot()
	cur := clone(t, base)
	cur.Visual = types.Visual{}
	cur.Visual.MarkAbsent("failed to inject mask style")

	findings := newComparator().Compare(context.Background(), base, cur)
	f := find(t, findings, "visual")
	assert.Equal(t, types.StatusWarning, f.Status)
	assert.Contains(t, f.Note, "failed to inject mask style")
	for _, other := range findings {
		assert.NotContains(t, other.Category, "visual.", "no per-view findings for an absent dimension")
	}
}

func TestCompare_DeterministicOrder(t *testing.T) {
	base := fullSnapshot()
	cur := clone(t, base)
	cur.Features.Structure["aNewThing"] = true

	c := newComparator()
	first := c.Compare(context.Background(), base, cur)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, c.Compare(context.Background(), base, cur))
	}

	var dims []string
	for _, f := range first {
		if len(dims) == 0 || dims[len(dims)-1] != f.Dimension() {
			dims = append(dims, f.Dimension())
		}
	}
	assert.Equal(t, types.Dimensions, dims)

	var features []string
	for _, f := range first {
		if f.Dimension() == types.DimensionFeatures {
			features = append(features, f.Category)
		}
	}
	assert.Equal(t, []string{
		"features.grafanaPreview",
		"features.header",
		"features.powerWidget",
		"features.aNewThing",
		"features.text.mainHeading",
		"features.apiStatus.influxStatus",
		"features.apiStatus.lastUpdate",
	}, features)
}

func TestClassifyRatio_RandomBaselines(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		b := r.Float64()*10000 + 0.001
		assert.Equal(t, types.StatusPass, classifyRatio(1.2*b/b, 1.2, 1.5))
		assert.Equal(t, types.StatusWarning, classifyRatio(1.21*b/b, 1.2, 1.5))
		assert.Equal(t, types.StatusFail, classifyRatio(1.51*b/b, 1.2, 1.5))
	}
}

func TestRules_Lookup(t *testing.T) {
	rules := DefaultRules()

	rule, declared := rules.Lookup("performance.webVitals.cls")
	assert.True(t, declared)
	assert.Equal(t, RuleTolerance, rule.Kind)
	assert.Equal(t, 0.1, rule.Ceiling)

	rule, declared = rules.Lookup("performance.custom.thing")
	assert.False(t, declared)
	assert.Equal(t, RuleExact, rule.Kind)
	assert.Equal(t, types.StatusWarning, rule.Mismatch)

	rule, _ = rules.Lookup("features.header")
	assert.Equal(t, types.StatusFail, rule.Mismatch)

	rule, _ = rules.Lookup("api.observed")
	assert.Equal(t, RuleSetEquality, rule.Kind)

	assert.Equal(t, "set-equality", RuleSetEquality.String())
}

func TestRules_SetTolerance(t *testing.T) {
	rules := DefaultRules()
	rules.SetTolerance(types.MetricLCP, 1.05, 1.1)

	base := fullSnapshot()
	base.Performance.Metrics[types.MetricLCP] = types.MetricValue{Value: 1000, Unit: types.UnitMilliseconds}
	cur := clone(t, base)
	cur.Performance.Metrics[types.MetricLCP] = types.MetricValue{Value: 1150, Unit: types.UnitMilliseconds}

	findings := New(rules, nil, DefaultOptions()).Compare(context.Background(), base, cur)
	assert.Equal(t, types.StatusFail, find(t, findings, "performance.webVitals.lcp").Status)
}
