package types

// Performance metric keys. Every metric the capturer records and the comparator
// classifies is declared here.
const (
	MetricDOMContentLoaded = "navigation.domContentLoaded"
	MetricLoadComplete     = "navigation.loadComplete"
	MetricTotalDuration    = "navigation.totalDuration"
	MetricDNSLookup        = "navigation.dnsLookup"
	MetricTCPConnection    = "navigation.tcpConnection"
	MetricServerResponse   = "navigation.serverResponse"
	MetricDOMInteractive   = "navigation.domInteractive"
	MetricDOMComplete      = "navigation.domComplete"
	MetricFirstPaint       = "paint.firstPaint"
	MetricFCP              = "paint.firstContentfulPaint"
	MetricLCP              = "webVitals.lcp"
	MetricCLS              = "webVitals.cls"
	MetricFID              = "webVitals.fid"
	MetricResourceCount    = "resources.total"
	MetricTransferSize     = "resources.totalSize"
	MetricJSHeapUsed       = "memory.jsHeapUsed"
)

// Metric units.
const (
	UnitMilliseconds = "ms"
	UnitScore        = "score"
	UnitCount        = "count"
	UnitBytes        = "bytes"
)

// MetricDef declares a performance metric and its unit.
type MetricDef struct {
	Key  string
	Unit string
}

// MetricCatalog lists the metrics every capture attempts, in report order.
var MetricCatalog = []MetricDef{
	{MetricDOMContentLoaded, UnitMilliseconds},
	{MetricLoadComplete, UnitMilliseconds},
	{MetricTotalDuration, UnitMilliseconds},
	{MetricDNSLookup, UnitMilliseconds},
	{MetricTCPConnection, UnitMilliseconds},
	{MetricServerResponse, UnitMilliseconds},
	{MetricDOMInteractive, UnitMilliseconds},
	{MetricDOMComplete, UnitMilliseconds},
	{MetricFirstPaint, UnitMilliseconds},
	{MetricFCP, UnitMilliseconds},
	{MetricLCP, UnitMilliseconds},
	{MetricCLS, UnitScore},
	{MetricFID, UnitMilliseconds},
	{MetricResourceCount, UnitCount},
	{MetricTransferSize, UnitBytes},
	{MetricJSHeapUsed, UnitBytes},
}

// MetricUnit returns the declared unit for key, or milliseconds when undeclared.
func MetricUnit(key string) string {
	for _, m := range MetricCatalog {
		if m.Key == key {
			return m.Unit
		}
	}
	return UnitMilliseconds
}
