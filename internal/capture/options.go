package capture

import "time"

// Viewport is a named browser window size used for full-page screenshots.
type Viewport struct {
	Name   string `json:"name" yaml:"name" validate:"required"`
	Width  int    `json:"width" yaml:"width" validate:"gt=0"`
	Height int    `json:"height" yaml:"height" validate:"gt=0"`
}

// Component is a page element captured as its own image.
type Component struct {
	Name     string `json:"name" yaml:"name" validate:"required"`
	Selector string `json:"selector" yaml:"selector" validate:"required"`
}

// FeatureProbe maps a feature name to the selector whose presence (or text) it records.
type FeatureProbe struct {
	Name     string `json:"name" yaml:"name" validate:"required"`
	Selector string `json:"selector" yaml:"selector" validate:"required"`
}

// FunctionalArea groups capabilities under one area name, e.g. "apiStatus".
type FunctionalArea struct {
	Name         string         `json:"name" yaml:"name" validate:"required"`
	Capabilities []FeatureProbe `json:"capabilities" yaml:"capabilities" validate:"dive"`
}

// Options controls what a capture measures.
type Options struct {
	DimensionTimeout time.Duration
	SettleDelay      time.Duration

	Structure     []FeatureProbe
	Text          []FeatureProbe
	Functionality []FunctionalArea

	DefaultViewport Viewport
	Viewports       []Viewport
	Components      []Component

	Endpoints       []string
	ObservePatterns []string
	ObserveLimit    int
	ObserveWindow   time.Duration
	BuildInfoPath   string

	Verbose bool
}

// DefaultOptions returns the catalogs for the power monitoring site the tool was built against.
func DefaultOptions() Options {
	return Options{
		DimensionTimeout: 30 * time.Second,
		SettleDelay:      500 * time.Millisecond,
		Structure: []FeatureProbe{
			{Name: "header", Selector: "header"},
			{Name: "metricsSection", Selector: ".metrics"},
			{Name: "powerWidget", Selector: ".power-widget"},
			{Name: "apiStatusWidget", Selector: ".api-status-widget"},
			{Name: "grafanaPreview", Selector: ".grafana-preview"},
			{Name: "buildStatus", Selector: ".build-status"},
			{Name: "footer", Selector: ".footer"},
		},
		Text: []FeatureProbe{
			{Name: "mainHeading", Selector: "h1"},
		},
		Functionality: []FunctionalArea{
			{Name: "powerMonitoring", Capabilities: []FeatureProbe{
				{Name: "currentPower", Selector: "#current-power"},
				{Name: "powerStats", Selector: ".power-widget"},
				{Name: "metricsDisplay", Selector: ".metrics"},
			}},
			{Name: "apiStatus", Capabilities: []FeatureProbe{
				{Name: "influxStatus", Selector: "#influx-status"},
				{Name: "eagleStatus", Selector: "#eagle-status"},
				{Name: "webStatus", Selector: "#web-status"},
			}},
			{Name: "buildInfo", Capabilities: []FeatureProbe{
				{Name: "version", Selector: "#app-version"},
				{Name: "buildDate", Selector: "#build-date"},
				{Name: "commit", Selector: "#commit-sha"},
				{Name: "environment", Selector: "#environment"},
			}},
			{Name: "grafana", Capabilities: []FeatureProbe{
				{Name: "iframe", Selector: ".grafana-preview iframe"},
			}},
		},
		DefaultViewport: Viewport{Name: "desktop-1080p", Width: 1920, Height: 1080},
		Viewports: []Viewport{
			{Name: "desktop-1080p", Width: 1920, Height: 1080},
			{Name: "desktop-900p", Width: 1440, Height: 900},
			{Name: "tablet-portrait", Width: 768, Height: 1024},
			{Name: "mobile", Width: 375, Height: 667},
		},
		Components: []Component{
			{Name: "power-widget", Selector: ".power-widget"},
			{Name: "api-status-widget", Selector: ".api-status-widget"},
			{Name: "build-status", Selector: ".build-status"},
			{Name: "metrics-section", Selector: ".metrics"},
		},
		Endpoints:       []string{"/api/stats", "/api/current", "/health", "/build-info.json"},
		ObservePatterns: []string{"/api/", "/health"},
		ObserveLimit:    50,
		ObserveWindow:   3 * time.Second,
		BuildInfoPath:   "/build-info.json",
	}
}
