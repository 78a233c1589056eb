// Package compare classifies the differences between a baseline snapshot and a
// current snapshot into findings.
//
// Findings are emitted in dimension order (features, performance, visual, api).
// Within a dimension, keys present in the baseline come first in sorted order,
// followed by keys only the current snapshot has, also sorted.
package compare

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"mime"
	"sort"
	"strconv"
	"strings"

	"github.com/jonathan/regression-baseline/internal/imagediff"
	"github.com/jonathan/regression-baseline/internal/types"
)

// ratioSlack absorbs floating point error so that exactly PassRatio*b passes.
const ratioSlack = 1e-9

// ImageDiffer compares two image artifacts by reference.
type ImageDiffer interface {
	Diff(ctx context.Context, baselineRef, currentRef string) (types.DiffResult, error)
}

// Options configures a Comparator.
type Options struct {
	// PassRatio and WarnRatio are the default tolerance thresholds.
	PassRatio float64
	WarnRatio float64
	// MaxDiffPixels differing pixels or fewer pass a view. Negative uses the default.
	MaxDiffPixels int
	// WarnDiffPercentage or less of differing pixels warns; more fails.
	WarnDiffPercentage float64
	Verbose            bool
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		PassRatio:          1.2,
		WarnRatio:          1.5,
		MaxDiffPixels:      100,
		WarnDiffPercentage: 1.0,
	}
}

// Comparator compares snapshots. It only reads its inputs and holds no
// per-run state, so one Comparator may serve concurrent comparisons.
type Comparator struct {
	rules  *Rules
	differ ImageDiffer
	opts   Options
}

// New creates a Comparator. A nil rules table uses DefaultRules. Without a
// differ, views are checked for presence only.
func New(rules *Rules, differ ImageDiffer, opts Options) *Comparator {
	if rules == nil {
		rules = DefaultRules()
	}
	def := DefaultOptions()
	if opts.PassRatio <= 0 {
		opts.PassRatio = def.PassRatio
	}
	if opts.WarnRatio <= 0 {
		opts.WarnRatio = def.WarnRatio
	}
	if opts.MaxDiffPixels < 0 {
		opts.MaxDiffPixels = def.MaxDiffPixels
	}
	if opts.WarnDiffPercentage <= 0 {
		opts.WarnDiffPercentage = def.WarnDiffPercentage
	}
	return &Comparator{rules: rules, differ: differ, opts: opts}
}

// Compare returns the findings for every field of every dimension. It never
// fails: dimensions or fields missing on one side become warnings.
func (c *Comparator) Compare(ctx context.Context, baseline, current *types.Snapshot) []types.Finding {
	var out []types.Finding
	for _, dim := range types.Dimensions {
		b, cur := baseline.DimensionAbsence(dim), current.DimensionAbsence(dim)
		if b.Absent || cur.Absent {
			out = append(out, absentDimension(dim, b, cur))
			continue
		}
		switch dim {
		case types.DimensionFeatures:
			out = append(out, c.compareFeatures(&baseline.Features, &current.Features)...)
		case types.DimensionPerformance:
			out = append(out, c.comparePerformance(&baseline.Performance, &current.Performance)...)
		case types.DimensionVisual:
			out = append(out, c.compareVisual(ctx, &baseline.Visual, &current.Visual)...)
		case types.DimensionAPI:
			out = append(out, c.compareAPI(&baseline.API, &current.API)...)
		}
	}

	if c.opts.Verbose {
		counts := map[types.Status]int{}
		for _, f := range out {
			counts[f.Status]++
		}
		log.Printf("[COMPARE] %d findings: %d pass, %d warning, %d fail",
			len(out), counts[types.StatusPass], counts[types.StatusWarning], counts[types.StatusFail])
	}
	return out
}

func absentDimension(dim string, b, cur types.Absence) types.Finding {
	f := types.Finding{
		Category: dim,
		Baseline: absenceText(b),
		Current:  absenceText(cur),
	}
	if b.Absent && cur.Absent {
		f.Status = types.StatusPass
		f.Note = "not captured in either snapshot"
		return f
	}
	f.Status = types.StatusWarning
	if b.Absent {
		f.Note = "not captured in baseline: " + b.Reason
	} else {
		f.Note = "not captured in current: " + cur.Reason
	}
	return f
}

func absenceText(a types.Absence) string {
	if a.Absent {
		return absentValue
	}
	return "captured"
}

const (
	absentValue  = "absent"
	missingValue = "missing"
)

func (c *Comparator) compareFeatures(b, cur *types.Features) []types.Finding {
	var out []types.Finding
	prefix := types.DimensionFeatures + "."

	for _, key := range orderedKeys(b.Structure, cur.Structure) {
		bv, bok := b.Structure[key]
		cv, cok := cur.Structure[key]
		out = append(out, c.exact(prefix+key, bok, cok, strconv.FormatBool(bv), strconv.FormatBool(cv)))
	}

	for _, key := range orderedKeys(b.Text, cur.Text) {
		bv, bok := b.Text[key]
		cv, cok := cur.Text[key]
		out = append(out, c.exact(prefix+"text."+key, bok, cok, bv, cv))
	}

	for _, area := range orderedKeys(b.Functionality, cur.Functionality) {
		bArea, bok := b.Functionality[area]
		cArea, cok := cur.Functionality[area]
		if !bok || !cok {
			out = append(out, presenceFinding(prefix+area, bok, cok, "functional area"))
			continue
		}
		for _, capability := range orderedKeys(bArea, cArea) {
			bv, bok := bArea[capability]
			cv, cok := cArea[capability]
			out = append(out, c.exact(prefix+area+"."+capability, bok, cok, strconv.FormatBool(bv), strconv.FormatBool(cv)))
		}
	}
	return out
}

// exact compares two rendered values under the exact rule for category.
func (c *Comparator) exact(category string, bok, cok bool, bv, cv string) types.Finding {
	if !bok || !cok {
		return presenceFinding(category, bok, cok, "field")
	}
	rule, _ := c.rules.Lookup(category)
	f := types.Finding{Category: category, Baseline: bv, Current: cv, Status: types.StatusPass}
	if bv != cv {
		f.Status = rule.Mismatch
		f.Note = fmt.Sprintf("expected %s, got %s", quoteEmpty(bv), quoteEmpty(cv))
	}
	return f
}

func presenceFinding(category string, bok, cok bool, what string) types.Finding {
	f := types.Finding{Category: category, Status: types.StatusWarning, Baseline: "present", Current: "present"}
	if !bok {
		f.Baseline = missingValue
		f.Note = what + " added since baseline"
	}
	if !cok {
		f.Current = missingValue
		f.Note = what + " missing from current snapshot"
	}
	return f
}

func (c *Comparator) comparePerformance(b, cur *types.Performance) []types.Finding {
	var out []types.Finding
	for _, key := range orderedKeys(b.Metrics, cur.Metrics) {
		category := types.DimensionPerformance + "." + key
		bv, bok := b.Metrics[key]
		cv, cok := cur.Metrics[key]
		switch {
		case !bok || !cok:
			out = append(out, presenceFinding(category, bok, cok, "metric"))
		case bv.Absent || cv.Absent:
			out = append(out, absentMetric(category, bv, cv))
		default:
			out = append(out, c.metric(category, bv, cv))
		}
	}
	return out
}

func absentMetric(category string, bv, cv types.MetricValue) types.Finding {
	f := types.Finding{Category: category, Baseline: formatMetric(bv), Current: formatMetric(cv)}
	if bv.Absent && cv.Absent {
		f.Status = types.StatusPass
		f.Note = "not measured in either snapshot"
		return f
	}
	f.Status = types.StatusWarning
	if bv.Absent {
		f.Note = "not measured in baseline"
	} else {
		f.Note = "not measured in current snapshot"
	}
	return f
}

func (c *Comparator) metric(category string, bv, cv types.MetricValue) types.Finding {
	f := types.Finding{Category: category, Baseline: formatMetric(bv), Current: formatMetric(cv)}
	rule, _ := c.rules.Lookup(category)

	if rule.Kind != RuleTolerance {
		f.Status = types.StatusPass
		if bv.Value != cv.Value {
			f.Status = rule.Mismatch
			f.Note = "value changed"
		}
		return f
	}

	if bv.Value <= 0 {
		if rule.Ceiling < 0 {
			f.Status = types.StatusPass
			if cv.Value != bv.Value {
				f.Status = types.StatusWarning
				f.Note = "zero baseline, no ceiling declared"
			}
			return f
		}
		ceiling := types.MetricValue{Value: rule.Ceiling, Unit: bv.Unit}
		if cv.Value <= rule.Ceiling {
			f.Status = types.StatusPass
			f.Note = "zero baseline, within ceiling " + formatMetric(ceiling)
		} else {
			f.Status = types.StatusFail
			f.Note = "zero baseline, exceeds ceiling " + formatMetric(ceiling)
		}
		return f
	}

	pass, warn := rule.PassRatio, rule.WarnRatio
	if pass <= 0 {
		pass = c.opts.PassRatio
	}
	if warn <= 0 {
		warn = c.opts.WarnRatio
	}
	f.Status = classifyRatio(cv.Value/bv.Value, pass, warn)
	f.Note = fmt.Sprintf("%+.1f%% change", (cv.Value/bv.Value-1)*100)
	return f
}

func classifyRatio(ratio, pass, warn float64) types.Status {
	switch {
	case ratio <= pass+ratioSlack:
		return types.StatusPass
	case ratio <= warn+ratioSlack:
		return types.StatusWarning
	}
	return types.StatusFail
}

func (c *Comparator) compareVisual(ctx context.Context, b, cur *types.Visual) []types.Finding {
	var out []types.Finding

	masksCategory := types.DimensionVisual + ".masks"
	bKeys := types.AppliedMaskList(b.Masks).Keys()
	cKeys := types.AppliedMaskList(cur.Masks).Keys()
	out = append(out, c.setEquality(masksCategory, bKeys, cKeys))

	samePolicy := b.MaskPolicy == cur.MaskPolicy
	for _, name := range orderedKeys(b.Views, cur.Views) {
		category := types.DimensionVisual + "." + name
		bv, bok := b.Views[name]
		cv, cok := cur.Views[name]
		switch {
		case !bok || !cok:
			out = append(out, presenceFinding(category, bok, cok, "view"))
		case bv.Absent || cv.Absent:
			out = append(out, absentView(category, bv, cv))
		case !samePolicy:
			out = append(out, types.Finding{
				Category: category,
				Status:   types.StatusWarning,
				Baseline: bv.Ref,
				Current:  cv.Ref,
				Note:     "captured under different mask policies; not compared",
			})
		default:
			out = append(out, c.view(ctx, category, bv, cv))
		}
	}
	return out
}

func absentView(category string, bv, cv types.VisualView) types.Finding {
	f := types.Finding{Category: category, Baseline: viewText(bv), Current: viewText(cv)}
	if bv.Absent && cv.Absent {
		f.Status = types.StatusPass
		f.Note = "not captured in either snapshot"
		return f
	}
	f.Status = types.StatusWarning
	if bv.Absent {
		f.Note = "not captured in baseline: " + bv.Reason
	} else {
		f.Note = "not captured in current: " + cv.Reason
	}
	return f
}

func viewText(v types.VisualView) string {
	if v.Absent {
		return absentValue
	}
	return v.Ref
}

func (c *Comparator) view(ctx context.Context, category string, bv, cv types.VisualView) types.Finding {
	f := types.Finding{Category: category, Baseline: bv.Ref, Current: cv.Ref}
	if c.differ == nil {
		f.Status = types.StatusPass
		f.Note = "present in both; pixel comparison not configured"
		return f
	}

	res, err := c.differ.Diff(ctx, bv.Ref, cv.Ref)
	var sizeErr *imagediff.SizeMismatchError
	if errors.As(err, &sizeErr) {
		f.Status = types.StatusFail
		f.Note = sizeErr.Error()
		return f
	}
	if err != nil {
		f.Status = types.StatusWarning
		f.Note = "image diff failed: " + err.Error()
		return f
	}

	f.Current = fmt.Sprintf("%d px differ (%.2f%%)", res.DiffPixels, res.DiffPercentage)
	switch {
	case res.DiffPixels <= c.opts.MaxDiffPixels:
		f.Status = types.StatusPass
	case res.DiffPercentage <= c.opts.WarnDiffPercentage:
		f.Status = types.StatusWarning
		f.Note = fmt.Sprintf("more than %d pixels differ", c.opts.MaxDiffPixels)
	default:
		f.Status = types.StatusFail
		f.Note = fmt.Sprintf("more than %.2f%% of pixels differ", c.opts.WarnDiffPercentage)
	}
	return f
}

func (c *Comparator) setEquality(category string, b, cur []string) types.Finding {
	rule, _ := c.rules.Lookup(category)
	f := types.Finding{
		Category: category,
		Status:   types.StatusPass,
		Baseline: strings.Join(b, ", "),
		Current:  strings.Join(cur, ", "),
	}
	added, removed := setDiff(b, cur)
	if len(added) == 0 && len(removed) == 0 {
		return f
	}
	f.Status = rule.Mismatch
	var parts []string
	if len(removed) > 0 {
		parts = append(parts, "removed: "+strings.Join(removed, ", "))
	}
	if len(added) > 0 {
		parts = append(parts, "added: "+strings.Join(added, ", "))
	}
	f.Note = strings.Join(parts, "; ")
	return f
}

func (c *Comparator) compareAPI(b, cur *types.API) []types.Finding {
	var out []types.Finding
	for _, endpoint := range orderedKeys(b.Endpoints, cur.Endpoints) {
		category := APICategory(endpoint)
		bv, bok := b.Endpoints[endpoint]
		cv, cok := cur.Endpoints[endpoint]
		switch {
		case !bok || !cok:
			out = append(out, presenceFinding(category, bok, cok, "endpoint"))
		case bv.Absent || cv.Absent:
			out = append(out, absentEndpoint(category, bv, cv))
		default:
			out = append(out, c.endpoint(category, bv, cv))
		}
	}

	observed := types.DimensionAPI + ".observed"
	out = append(out, c.setEquality(observed, observedKeys(b.Observed), observedKeys(cur.Observed)))
	return out
}

func absentEndpoint(category string, bv, cv types.APIContract) types.Finding {
	f := types.Finding{Category: category, Baseline: contractText(bv), Current: contractText(cv)}
	if bv.Absent && cv.Absent {
		f.Status = types.StatusPass
		f.Note = "unreachable in both snapshots"
		return f
	}
	f.Status = types.StatusWarning
	if bv.Absent {
		f.Note = "unreachable at baseline: " + bv.Error
	} else {
		f.Note = "unreachable now: " + cv.Error
	}
	return f
}

func (c *Comparator) endpoint(category string, bv, cv types.APIContract) types.Finding {
	f := types.Finding{
		Category: category,
		Status:   types.StatusPass,
		Baseline: contractText(bv),
		Current:  contractText(cv),
	}
	if bv.Status != cv.Status {
		rule, _ := c.rules.Lookup(category)
		f.Status = rule.Mismatch
		f.Note = fmt.Sprintf("status code changed from %d to %d", bv.Status, cv.Status)
		return f
	}
	if mediaType(bv.ContentType) != mediaType(cv.ContentType) {
		f.Status = types.StatusWarning
		f.Note = fmt.Sprintf("content type changed from %s to %s", quoteEmpty(bv.ContentType), quoteEmpty(cv.ContentType))
	}
	return f
}

func contractText(a types.APIContract) string {
	if a.Absent {
		return absentValue
	}
	return fmt.Sprintf("Status %d", a.Status)
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func observedKeys(calls []types.ObservedCall) []string {
	seen := make(map[string]bool, len(calls))
	keys := make([]string, 0, len(calls))
	for _, call := range calls {
		k := call.Key()
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// orderedKeys returns the keys of baseline sorted, followed by the sorted keys
// only current has.
func orderedKeys[V any](baseline, current map[string]V) []string {
	keys := make([]string, 0, len(baseline)+len(current))
	for k := range baseline {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var extra []string
	for k := range current {
		if _, ok := baseline[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

func setDiff(b, cur []string) (added, removed []string) {
	inB := make(map[string]bool, len(b))
	for _, k := range b {
		inB[k] = true
	}
	inCur := make(map[string]bool, len(cur))
	for _, k := range cur {
		inCur[k] = true
		if !inB[k] {
			added = append(added, k)
		}
	}
	for _, k := range b {
		if !inCur[k] {
			removed = append(removed, k)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func formatMetric(v types.MetricValue) string {
	if v.Absent {
		return absentValue
	}
	switch v.Unit {
	case types.UnitMilliseconds:
		return strconv.FormatFloat(v.Value, 'f', 1, 64) + "ms"
	case types.UnitBytes:
		return strconv.FormatFloat(math.Round(v.Value), 'f', 0, 64) + " bytes"
	case types.UnitCount:
		return strconv.FormatFloat(math.Round(v.Value), 'f', 0, 64)
	}
	return strconv.FormatFloat(v.Value, 'f', -1, 64)
}

func quoteEmpty(s string) string {
	if s == "" {
		return `""`
	}
	return s
}
