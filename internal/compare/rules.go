package compare

import (
	"math"
	"strings"

	"github.com/jonathan/regression-baseline/internal/types"
)

// RuleKind selects how a field is compared.
type RuleKind int

const (
	// RuleExact requires equal values.
	RuleExact RuleKind = iota
	// RuleTolerance compares the ratio current/baseline against thresholds.
	RuleTolerance
	// RuleSetEquality requires both sides to contain the same members.
	RuleSetEquality
)

func (k RuleKind) String() string {
	switch k {
	case RuleExact:
		return "exact"
	case RuleTolerance:
		return "tolerance"
	case RuleSetEquality:
		return "set-equality"
	}
	return "unknown"
}

// NoCeiling marks a tolerance rule without a zero-baseline ceiling.
const NoCeiling = -1

// Rule is the comparison declared for one field.
//
// For RuleTolerance, a ratio at or below PassRatio passes and one at or below
// WarnRatio warns. Zero ratios fall back to the comparator's tolerance. When the
// baseline is zero the current value is held against Ceiling instead; a
// negative Ceiling means the field is then compared exactly.
//
// For RuleExact and RuleSetEquality, Mismatch is the status of a difference.
type Rule struct {
	Kind      RuleKind
	PassRatio float64
	WarnRatio float64
	Ceiling   float64
	Mismatch  types.Status
}

// Rules is a static lookup table from finding category to rule. Categories
// without an entry use the default declared for their dimension.
type Rules struct {
	fields   map[string]Rule
	defaults map[string]Rule
}

func tolerance(ceiling float64) Rule {
	return Rule{Kind: RuleTolerance, Ceiling: ceiling}
}

// DefaultRules returns the built-in table.
//
// Zero-baseline ceilings (used when a metric measured exactly 0 at baseline):
//
//	navigation.domContentLoaded  100 ms   handler time, usually ~0 on a static page
//	navigation.loadComplete      100 ms
//	navigation.totalDuration     3000 ms
//	navigation.dnsLookup         50 ms    0 for localhost or cached lookups
//	navigation.tcpConnection     50 ms    0 for reused connections
//	navigation.serverResponse    500 ms
//	navigation.domInteractive    1500 ms
//	navigation.domComplete       3000 ms
//	paint.firstPaint             1800 ms
//	paint.firstContentfulPaint   1800 ms  web.dev "good" FCP
//	webVitals.lcp                2500 ms  web.dev "good" LCP
//	webVitals.cls                0.1      web.dev "good" CLS
//	webVitals.fid                100 ms   web.dev "good" FID
//	resources.total              10 requests
//	resources.totalSize          512 KiB
//	memory.jsHeapUsed            50 MiB
func DefaultRules() *Rules {
	r := &Rules{
		fields: map[string]Rule{
			perf(types.MetricDOMContentLoaded): tolerance(100),
			perf(types.MetricLoadComplete):     tolerance(100),
			perf(types.MetricTotalDuration):    tolerance(3000),
			perf(types.MetricDNSLookup):        tolerance(50),
			perf(types.MetricTCPConnection):    tolerance(50),
			perf(types.MetricServerResponse):   tolerance(500),
			perf(types.MetricDOMInteractive):   tolerance(1500),
			perf(types.MetricDOMComplete):      tolerance(3000),
			perf(types.MetricFirstPaint):       tolerance(1800),
			perf(types.MetricFCP):              tolerance(1800),
			perf(types.MetricLCP):              tolerance(2500),
			perf(types.MetricCLS):              tolerance(0.1),
			perf(types.MetricFID):              tolerance(100),
			// Transfer size and request count are tighter than timings and a
			// request-count increase alone never fails the run.
			perf(types.MetricResourceCount):  {Kind: RuleTolerance, PassRatio: 1.1, WarnRatio: math.Inf(1), Ceiling: 10},
			perf(types.MetricTransferSize):   {Kind: RuleTolerance, PassRatio: 1.1, WarnRatio: 1.2, Ceiling: 512 * 1024},
			perf(types.MetricJSHeapUsed):     tolerance(50 * 1024 * 1024),
			types.DimensionVisual + ".masks": {Kind: RuleSetEquality, Mismatch: types.StatusWarning},
			types.DimensionAPI + ".observed": {Kind: RuleSetEquality, Mismatch: types.StatusWarning},
		},
		defaults: map[string]Rule{
			types.DimensionFeatures:    {Kind: RuleExact, Mismatch: types.StatusFail},
			types.DimensionPerformance: {Kind: RuleExact, Mismatch: types.StatusWarning},
			types.DimensionVisual:      {Kind: RuleExact, Mismatch: types.StatusWarning},
			types.DimensionAPI:         {Kind: RuleExact, Mismatch: types.StatusWarning},
		},
	}
	for _, endpoint := range DefaultCriticalEndpoints {
		r.fields[APICategory(endpoint)] = Rule{Kind: RuleExact, Mismatch: types.StatusFail}
	}
	return r
}

// DefaultCriticalEndpoints are the endpoints whose status change fails a run.
var DefaultCriticalEndpoints = []string{"/api/stats", "/health", "/build-info.json"}

// Lookup returns the rule for category and whether it was declared explicitly.
func (r *Rules) Lookup(category string) (Rule, bool) {
	if rule, ok := r.fields[category]; ok {
		return rule, true
	}
	dim := category
	if i := strings.IndexByte(category, '.'); i >= 0 {
		dim = category[:i]
	}
	if rule, ok := r.defaults[dim]; ok {
		return rule, false
	}
	return Rule{Kind: RuleExact, Mismatch: types.StatusWarning}, false
}

// Set declares the rule for one category.
func (r *Rules) Set(category string, rule Rule) {
	r.fields[category] = rule
}

// SetCeiling changes the zero-baseline ceiling of a performance metric,
// declaring it as a tolerance metric if it was not already.
func (r *Rules) SetCeiling(metric string, ceiling float64) {
	key := perf(metric)
	rule, ok := r.fields[key]
	if !ok || rule.Kind != RuleTolerance {
		rule = tolerance(ceiling)
	}
	rule.Ceiling = ceiling
	r.fields[key] = rule
}

// SetTolerance overrides the ratio thresholds of a performance metric.
func (r *Rules) SetTolerance(metric string, passRatio, warnRatio float64) {
	key := perf(metric)
	rule, ok := r.fields[key]
	if !ok || rule.Kind != RuleTolerance {
		rule = tolerance(NoCeiling)
	}
	rule.PassRatio = passRatio
	rule.WarnRatio = warnRatio
	r.fields[key] = rule
}

// SetCritical makes a status change on endpoint fail the run.
func (r *Rules) SetCritical(endpoints []string) {
	for key, rule := range r.fields {
		if strings.HasPrefix(key, types.DimensionAPI+".") && key != types.DimensionAPI+".observed" && rule.Kind == RuleExact {
			delete(r.fields, key)
		}
	}
	for _, endpoint := range endpoints {
		r.fields[APICategory(endpoint)] = Rule{Kind: RuleExact, Mismatch: types.StatusFail}
	}
}

// APICategory is the finding category of an endpoint.
func APICategory(endpoint string) string {
	return types.DimensionAPI + "." + endpoint
}

func perf(metric string) string {
	return types.DimensionPerformance + "." + metric
}
