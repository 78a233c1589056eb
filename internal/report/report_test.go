package report

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/jonathan/regression-baseline/internal/schemas"
	"github.com/jonathan/regression-baseline/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	baseTime = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	curTime  = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	genTime  = time.Date(2026, 4, 2, 9, 5, 0, 0, time.UTC)
)

func sampleFindings() []types.Finding {
	return []types.Finding{
		{Category: "features.header", Status: types.StatusPass, Baseline: "true", Current: "true"},
		{Category: "features.powerWidget", Status: types.StatusFail, Baseline: "true", Current: "false", Note: "expected true, got false"},
		{Category: "performance.webVitals.lcp", Status: types.StatusWarning, Baseline: "1000.0ms", Current: "1300.0ms", Note: "+30.0% change"},
		{Category: "visual.desktop", Status: types.StatusPass, Baseline: "visual/baseline-desktop.png", Current: "12 px differ (0.01%)"},
		{Category: "api./health", Status: types.StatusFail, Baseline: "Status 200", Current: "Status 503", Note: "status code changed from 200 to 503"},
	}
}

func snapshots() (*types.Snapshot, *types.Snapshot) {
	return types.NewSnapshot("b", "http://localhost", baseTime), types.NewSnapshot("c", "http://localhost", curTime)
}

func TestAggregate_Summary(t *testing.T) {
	b, c := snapshots()
	r := Aggregate(sampleFindings(), b, c, genTime)

	assert.Equal(t, types.Summary{Total: 5, Passed: 2, Warnings: 1, Failed: 2}, r.Summary)
	assert.False(t, r.Passed)
	assert.Equal(t, baseTime, r.BaselineTimestamp)
	assert.Equal(t, curTime, r.CurrentTimestamp)
	assert.Equal(t, ExitRegression, ExitCode(r))
}

func TestAggregate_WarningsDoNotFail(t *testing.T) {
	findings := []types.Finding{
		{Category: "api./build-info.json", Status: types.StatusWarning, Baseline: "present", Current: "missing"},
		{Category: "features.header", Status: types.StatusPass},
	}
	r := Aggregate(findings, nil, nil, genTime)
	assert.True(t, r.Passed)
	assert.Equal(t, ExitPass, ExitCode(r))
}

func TestAggregate_EmptyFindingsPass(t *testing.T) {
	r := Aggregate(nil, nil, nil, genTime)
	assert.True(t, r.Passed)
	assert.NotNil(t, r.Findings)
	assert.Equal(t, 0, r.Summary.Total)
}

func TestAggregate_PassedIsOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	findings := sampleFindings()
	want := Aggregate(findings, nil, nil, genTime).Passed

	for i := 0; i < 50; i++ {
		shuffled := append([]types.Finding(nil), findings...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Aggregate(shuffled, nil, nil, genTime).Passed)
	}
}

func TestAggregate_DoesNotAliasFindings(t *testing.T) {
	findings := sampleFindings()
	r := Aggregate(findings, nil, nil, genTime)
	findings[0].Status = types.StatusFail
	assert.Equal(t, types.StatusPass, r.Findings[0].Status)
}

func TestExitCode_MissingBaseline(t *testing.T) {
	assert.Equal(t, ExitMissingBaseline, ExitCode(nil))
}

func TestRenderers_AreDeterministic(t *testing.T) {
	b, c := snapshots()
	r1 := Aggregate(sampleFindings(), b, c, genTime)
	r2 := Aggregate(sampleFindings(), b, c, genTime)

	assert.Equal(t, ToText(r1), ToText(r2))
	assert.Equal(t, ToMarkdown(r1), ToMarkdown(r2))

	j1, err := ToStructured(r1)
	require.NoError(t, err)
	j2, err := ToStructured(r2)
	require.NoError(t, err)
	assert.Equal(t, j1, j2)
}

func TestRenderers_DoNotMutateReport(t *testing.T) {
	r := Aggregate(sampleFindings(), nil, nil, genTime)
	before := append([]types.Finding(nil), r.Findings...)

	ToText(r)
	ToMarkdown(r)
	_, err := ToStructured(r)
	require.NoError(t, err)

	assert.Equal(t, before, r.Findings)
}

func TestToText(t *testing.T) {
	b, c := snapshots()
	text := ToText(Aggregate(sampleFindings(), b, c, genTime))

	assert.Contains(t, text, "Total Checks: 5")
	assert.Contains(t, text, "Failed:   2 (40.0%)")
	assert.Contains(t, text, "  - features.powerWidget: expected true, got false")
	assert.Contains(t, text, "  - performance.webVitals.lcp: +30.0% change")
	assert.Contains(t, text, "RESULT: REGRESSION DETECTED")
}

func TestToMarkdown(t *testing.T) {
	b, c := snapshots()
	md := ToMarkdown(Aggregate(sampleFindings(), b, c, genTime))

	assert.Contains(t, md, "# Baseline Comparison Report")
	assert.Contains(t, md, "Baseline Date: 2026-04-01T09:00:00Z")
	assert.Contains(t, md, "- **❌ Failed**: 2 (40.0%)")
	assert.Contains(t, md, "## ❌ Failures")
	assert.Contains(t, md, "- **api./health**: status code changed from 200 to 503")
	assert.Contains(t, md, "### API Endpoints")
	assert.Contains(t, md, "- Review and fix failing checks before deployment")
	assert.NotContains(t, md, "Safe to deploy")
}

func TestToMarkdown_AllPassed(t *testing.T) {
	md := ToMarkdown(Aggregate([]types.Finding{{Category: "features.header", Status: types.StatusPass, Baseline: "true", Current: "true"}}, nil, nil, genTime))
	assert.Contains(t, md, "- All checks passed! Safe to deploy.")
	assert.NotContains(t, md, "## ❌ Failures")
	assert.Contains(t, md, "Baseline Date: unknown")
}

func TestToStructured_MatchesSchema(t *testing.T) {
	b, c := snapshots()
	data, err := ToStructured(Aggregate(sampleFindings(), b, c, genTime))
	require.NoError(t, err)
	require.NoError(t, schemas.ValidateReport(data))

	var decoded types.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded.Findings, 5)
	assert.Equal(t, "features.powerWidget", decoded.Findings[1].Category)
}

func TestBaselineMarkdown(t *testing.T) {
	s := types.NewSnapshot("snap-1", "http://localhost:3000", baseTime)
	s.Metadata.BuildInfo = map[string]any{"version": "1.4.2", "commit": "abc123"}
	s.Features.Structure["header"] = true
	s.Features.Structure["grafanaPreview"] = false
	s.Features.Functionality["apiStatus"] = map[string]bool{"influxStatus": true}
	s.Performance.Metrics[types.MetricTransferSize] = types.MetricValue{Value: 2 * 1024 * 1024, Unit: types.UnitBytes}
	s.API.Endpoints["/health"] = types.APIContract{Status: 200, ContentType: "application/json", OK: true}
	s.API.Endpoints["/api/stats"] = types.APIContract{Absent: true, Error: "connection refused"}
	s.Visual.Views["desktop"] = types.VisualView{Ref: "visual/baseline-desktop.png", Kind: types.ViewKindViewport}
	s.Visual.Masks = []types.AppliedMask{{
		MaskRegion: types.MaskRegion{Name: "timestamps", Selector: ".ts", Label: "Timestamp", Reason: "clock", Category: types.MaskCategoryTimestamp},
		Matched:    3,
	}}

	md := BaselineMarkdown(s)
	assert.Contains(t, md, "- **Snapshot**: snap-1")
	assert.Contains(t, md, "- **commit**: abc123")
	assert.Contains(t, md, "- **header**: ✅ Present")
	assert.Contains(t, md, "- **grafanaPreview**: ❌ Not found")
	assert.Contains(t, md, "#### apiStatus")
	assert.Contains(t, md, "- **resources.totalSize**: 2.00MB")
	assert.Contains(t, md, "- **webVitals.lcp**: N/A")
	assert.Contains(t, md, "- **/api/stats**: unreachable (connection refused)")
	assert.Contains(t, md, "- desktop: visual/baseline-desktop.png")
	assert.Contains(t, md, "- **Timestamp** (timestamp, 3 matched): clock")
	assert.Equal(t, md, BaselineMarkdown(s))
}

func TestBaselineMarkdown_AbsentDimensions(t *testing.T) {
	s := types.NewSnapshot("snap-2", "http://localhost:3000", baseTime)
	s.Visual.MarkAbsent("failed to inject mask style")

	md := BaselineMarkdown(s)
	assert.Contains(t, md, "- **Not Captured**: visual")
	assert.Contains(t, md, "Not captured: failed to inject mask style")
	assert.Contains(t, md, "Build information not available")
}
