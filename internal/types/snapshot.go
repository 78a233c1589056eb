// Package types provides type definitions for the snapshot, finding and report artifacts
// used throughout the regression-baseline system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"net/url"
	"time"
)

// SnapshotVersion is the document version written into every captured snapshot.
const SnapshotVersion = "1.0.0"

// Dimension names, in the fixed order findings are emitted.
const (
	DimensionFeatures    = "features"
	DimensionPerformance = "performance"
	DimensionVisual      = "visual"
	DimensionAPI         = "api"
)

// Dimensions lists every snapshot dimension in comparison order.
var Dimensions = []string{DimensionFeatures, DimensionPerformance, DimensionVisual, DimensionAPI}

// Snapshot is an immutable capture of an application's structural, performance,
// visual and API state at one instant. Nothing mutates a Snapshot after the
// capturer returns it; comparison and rendering only read it.
type Snapshot struct {
	ID          string      `json:"id"`
	Version     string      `json:"version"`
	Timestamp   time.Time   `json:"timestamp"`
	TargetURL   string      `json:"target_url"`
	Features    Features    `json:"features"`
	Performance Performance `json:"performance"`
	Visual      Visual      `json:"visual"`
	API         API         `json:"api"`
	Metadata    Metadata    `json:"metadata"`
}

// Absence marks a dimension or entry that was attempted but not measured.
// It is always serialized so a reader can tell "never measured" from
// "measured as false or zero".
type Absence struct {
	Absent bool   `json:"absent"`
	Reason string `json:"reason,omitempty"`
}

// MarkAbsent records that the value could not be measured.
func (a *Absence) MarkAbsent(reason string) {
	a.Absent = true
	a.Reason = reason
}

// Features records structural element presence, captured text, and functional
// capabilities grouped by area.
type Features struct {
	Absence
	Structure     map[string]bool            `json:"structure"`
	Text          map[string]string          `json:"text"`
	Functionality map[string]map[string]bool `json:"functionality"`
}

// MetricValue is one performance reading in a fixed unit.
type MetricValue struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Absent bool    `json:"absent"`
}

// Performance holds navigation, paint, web-vital and resource metrics keyed by
// "group.name", e.g. "navigation.domContentLoaded".
type Performance struct {
	Absence
	Metrics map[string]MetricValue `json:"metrics"`
}

// View kinds.
const (
	ViewKindViewport  = "viewport"
	ViewKindComponent = "component"
)

// VisualView references one captured image artifact.
type VisualView struct {
	Absence
	Ref    string `json:"ref,omitempty"`
	Kind   string `json:"kind"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Visual holds the masked images and the masks that were applied before they were taken.
type Visual struct {
	Absence
	MaskPolicy string                `json:"mask_policy"`
	Masks      []AppliedMask         `json:"masks"`
	Views      map[string]VisualView `json:"views"`
}

// APIContract is the contract-level observation of one endpoint. Payload bodies are never recorded.
type APIContract struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	OK          bool   `json:"ok"`
	Absent      bool   `json:"absent"`
	Error       string `json:"error,omitempty"`
}

// ObservedCall is a network response seen while the page loaded.
type ObservedCall struct {
	URL    string `json:"url"`
	Method string `json:"method"`
	Status int    `json:"status"`
}

// Key identifies the call by method and path, ignoring host and query.
func (c ObservedCall) Key() string {
	path := c.URL
	if u, err := url.Parse(c.URL); err == nil && u.Path != "" {
		path = u.Path
	}
	return c.Method + " " + path
}

// API holds probed endpoint contracts and calls observed during page load.
type API struct {
	Absence
	Endpoints map[string]APIContract `json:"endpoints"`
	Observed  []ObservedCall         `json:"observed"`
}

// CaptureEvent is one entry of the per-capture audit log.
type CaptureEvent struct {
	Time       time.Time `json:"time"`
	Dimension  string    `json:"dimension"`
	Step       string    `json:"step"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	DurationMS int64     `json:"duration_ms,omitempty"`
}

// Metadata carries auxiliary capture data.
type Metadata struct {
	BuildInfo  map[string]any    `json:"build_info,omitempty"`
	CaptureLog []CaptureEvent    `json:"capture_log"`
	Errors     map[string]string `json:"errors,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// NewSnapshot returns a snapshot with every dimension initialized and empty.
func NewSnapshot(id, targetURL string, ts time.Time) *Snapshot {
	return &Snapshot{
		ID:        id,
		Version:   SnapshotVersion,
		Timestamp: ts.UTC(),
		TargetURL: targetURL,
		Features: Features{
			Structure:     map[string]bool{},
			Text:          map[string]string{},
			Functionality: map[string]map[string]bool{},
		},
		Performance: Performance{Metrics: map[string]MetricValue{}},
		Visual: Visual{
			Masks: []AppliedMask{},
			Views: map[string]VisualView{},
		},
		API: API{
			Endpoints: map[string]APIContract{},
			Observed:  []ObservedCall{},
		},
		Metadata: Metadata{
			CaptureLog: []CaptureEvent{},
			Errors:     map[string]string{},
		},
	}
}

// DimensionAbsence returns the absence marker for a named dimension.
func (s *Snapshot) DimensionAbsence(dimension string) Absence {
	switch dimension {
	case DimensionFeatures:
		return s.Features.Absence
	case DimensionPerformance:
		return s.Performance.Absence
	case DimensionVisual:
		return s.Visual.Absence
	case DimensionAPI:
		return s.API.Absence
	}
	return Absence{Absent: true, Reason: "unknown dimension"}
}

// AbsentDimensions lists the dimensions that were not measured, in comparison order.
func (s *Snapshot) AbsentDimensions() []string {
	var out []string
	for _, d := range Dimensions {
		if s.DimensionAbsence(d).Absent {
			out = append(out, d)
		}
	}
	return out
}
