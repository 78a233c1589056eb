package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshot_InitializesDimensions(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	s := NewSnapshot("snap-1", "https://example.com", ts)

	assert.Equal(t, SnapshotVersion, s.Version)
	assert.Equal(t, time.UTC, s.Timestamp.Location())
	assert.NotNil(t, s.Features.Structure)
	assert.NotNil(t, s.Features.Functionality)
	assert.NotNil(t, s.Performance.Metrics)
	assert.NotNil(t, s.Visual.Views)
	assert.NotNil(t, s.API.Endpoints)
	assert.Empty(t, s.AbsentDimensions())
}

func TestSnapshot_AbsenceIsSerialized(t *testing.T) {
	s := NewSnapshot("snap-1", "https://example.com", time.Now())
	s.Performance.MarkAbsent("timeout")

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, true, raw["performance"]["absent"])
	assert.Equal(t, "timeout", raw["performance"]["reason"])
	// Measured dimensions still carry an explicit false.
	assert.Equal(t, false, raw["features"]["absent"])
	assert.Equal(t, []string{DimensionPerformance}, s.AbsentDimensions())
}

func TestFinding_Dimension(t *testing.T) {
	assert.Equal(t, "features", Finding{Category: "features.powerWidget"}.Dimension())
	assert.Equal(t, "api", Finding{Category: "api./build-info.json"}.Dimension())
	assert.Equal(t, "visual", Finding{Category: "visual"}.Dimension())
}

func TestMaskRegion_Validate(t *testing.T) {
	valid := MaskRegion{
		Name:     "timestamps",
		Selector: "time",
		Label:    "Timestamp",
		Reason:   "changes every load",
		Category: MaskCategoryTimestamp,
	}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Category = "weather"
	assert.Error(t, bad.Validate())

	missing := valid
	missing.Reason = ""
	err := missing.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timestamps")
}

func TestAppliedMaskList_PolicyIsOrderIndependent(t *testing.T) {
	a := AppliedMaskList{
		{MaskRegion: MaskRegion{Name: "b", Selector: ".b"}, Matched: 1},
		{MaskRegion: MaskRegion{Name: "a", Selector: ".a"}, Matched: 2},
	}
	b := AppliedMaskList{a[1], a[0]}

	assert.Equal(t, a.Policy(), b.Policy())
	assert.Equal(t, []string{"a=.a", "b=.b"}, a.Keys())
}
