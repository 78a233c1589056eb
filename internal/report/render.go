package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/regression-baseline/internal/types"
)

var dimensionTitles = map[string]string{
	types.DimensionFeatures:    "Features",
	types.DimensionPerformance: "Performance",
	types.DimensionVisual:      "Visual",
	types.DimensionAPI:         "API Endpoints",
}

func statusIcon(s types.Status) string {
	switch s {
	case types.StatusPass:
		return "✅"
	case types.StatusWarning:
		return "⚠️"
	}
	return "❌"
}

func percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)/float64(total)*100)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}

func describe(f types.Finding) string {
	if f.Note != "" {
		return f.Note
	}
	return fmt.Sprintf("%s -> %s", f.Baseline, f.Current)
}

// ToText renders the console form of the report.
func ToText(r *types.Report) string {
	var sb strings.Builder
	s := r.Summary

	sb.WriteString("=== BASELINE COMPARISON RESULTS ===\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n", stamp(r.GeneratedAt)))
	sb.WriteString(fmt.Sprintf("Baseline:  %s\n", stamp(r.BaselineTimestamp)))
	sb.WriteString(fmt.Sprintf("Current:   %s\n", stamp(r.CurrentTimestamp)))
	sb.WriteString(fmt.Sprintf("Total Checks: %d\n", s.Total))
	sb.WriteString(fmt.Sprintf("Passed:   %d (%s)\n", s.Passed, percent(s.Passed, s.Total)))
	sb.WriteString(fmt.Sprintf("Warnings: %d (%s)\n", s.Warnings, percent(s.Warnings, s.Total)))
	sb.WriteString(fmt.Sprintf("Failed:   %d (%s)\n", s.Failed, percent(s.Failed, s.Total)))
	sb.WriteString("===================================\n")

	if failures := Filter(r, types.StatusFail); len(failures) > 0 {
		sb.WriteString("\nFAILURES:\n")
		for _, f := range failures {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", f.Category, describe(f)))
		}
	}
	if warnings := Filter(r, types.StatusWarning); len(warnings) > 0 {
		sb.WriteString("\nWARNINGS:\n")
		for _, f := range warnings {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", f.Category, describe(f)))
		}
	}

	sb.WriteString("\n")
	if r.Passed {
		sb.WriteString("RESULT: PASS\n")
	} else {
		sb.WriteString("RESULT: REGRESSION DETECTED\n")
	}
	return sb.String()
}

// ToMarkdown renders the reviewer-facing markdown report.
func ToMarkdown(r *types.Report) string {
	var sb strings.Builder
	s := r.Summary

	sb.WriteString("# Baseline Comparison Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n", stamp(r.GeneratedAt)))
	sb.WriteString(fmt.Sprintf("Baseline Date: %s\n", stamp(r.BaselineTimestamp)))
	sb.WriteString(fmt.Sprintf("Current Capture: %s\n\n", stamp(r.CurrentTimestamp)))

	sb.WriteString("## Summary\n")
	sb.WriteString(fmt.Sprintf("- **Total Checks**: %d\n", s.Total))
	sb.WriteString(fmt.Sprintf("- **✅ Passed**: %d (%s)\n", s.Passed, percent(s.Passed, s.Total)))
	sb.WriteString(fmt.Sprintf("- **⚠️ Warnings**: %d (%s)\n", s.Warnings, percent(s.Warnings, s.Total)))
	sb.WriteString(fmt.Sprintf("- **❌ Failed**: %d (%s)\n", s.Failed, percent(s.Failed, s.Total)))

	writeGroup := func(title string, findings []types.Finding) {
		if len(findings) == 0 {
			return
		}
		sb.WriteString("\n## " + title + "\n")
		for i, f := range findings {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", f.Category, describe(f)))
			sb.WriteString(fmt.Sprintf("  - Baseline: %s\n", f.Baseline))
			sb.WriteString(fmt.Sprintf("  - Current: %s\n", f.Current))
		}
	}
	writeGroup("❌ Failures", Filter(r, types.StatusFail))
	writeGroup("⚠️ Warnings", Filter(r, types.StatusWarning))

	sb.WriteString("\n## Detailed Results\n")
	for _, dim := range types.Dimensions {
		var rows []types.Finding
		for _, f := range r.Findings {
			if f.Dimension() == dim {
				rows = append(rows, f)
			}
		}
		if len(rows) == 0 {
			continue
		}
		sb.WriteString("\n### " + dimensionTitles[dim] + "\n")
		for _, f := range rows {
			line := fmt.Sprintf("- %s %s: %s", statusIcon(f.Status), f.Category, f.Current)
			if f.Note != "" {
				line += " (" + f.Note + ")"
			}
			sb.WriteString(line + "\n")
		}
	}

	sb.WriteString("\n## Recommendations\n")
	if s.Failed > 0 {
		sb.WriteString("- Review and fix failing checks before deployment\n")
	}
	if s.Warnings > 0 {
		sb.WriteString("- Monitor warning items for potential issues\n")
	}
	if s.Failed == 0 && s.Warnings == 0 {
		sb.WriteString("- All checks passed! Safe to deploy.\n")
	}
	return sb.String()
}

// ToStructured renders the report as indented JSON.
func ToStructured(r *types.Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// BaselineMarkdown renders the summary written next to a freshly captured baseline.
func BaselineMarkdown(s *types.Snapshot) string {
	var sb strings.Builder

	sb.WriteString("# Regression Testing Baseline Report\n\n")
	sb.WriteString("## Summary\n")
	sb.WriteString(fmt.Sprintf("- **Snapshot**: %s\n", s.ID))
	sb.WriteString(fmt.Sprintf("- **Target**: %s\n", s.TargetURL))
	sb.WriteString(fmt.Sprintf("- **Capture Date**: %s\n", stamp(s.Timestamp)))
	sb.WriteString(fmt.Sprintf("- **Visual Snapshots**: %d\n", len(s.Visual.Views)))
	sb.WriteString(fmt.Sprintf("- **Performance Metrics**: %d\n", len(s.Performance.Metrics)))
	sb.WriteString(fmt.Sprintf("- **API Endpoints**: %d\n", len(s.API.Endpoints)))
	if absent := s.AbsentDimensions(); len(absent) > 0 {
		sb.WriteString(fmt.Sprintf("- **Not Captured**: %s\n", strings.Join(absent, ", ")))
	}

	sb.WriteString("\n## Build Information\n")
	if len(s.Metadata.BuildInfo) == 0 {
		sb.WriteString("Build information not available\n")
	} else {
		for _, k := range sortedKeys(s.Metadata.BuildInfo) {
			sb.WriteString(fmt.Sprintf("- **%s**: %v\n", k, s.Metadata.BuildInfo[k]))
		}
	}

	sb.WriteString("\n## Feature Availability\n")
	if s.Features.Absent {
		sb.WriteString("Not captured: " + s.Features.Reason + "\n")
	} else {
		sb.WriteString("### Page Structure\n")
		for _, k := range sortedKeys(s.Features.Structure) {
			mark := "❌ Not found"
			if s.Features.Structure[k] {
				mark = "✅ Present"
			}
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", k, mark))
		}
		for _, k := range sortedKeys(s.Features.Text) {
			sb.WriteString(fmt.Sprintf("- **%s**: %q\n", k, s.Features.Text[k]))
		}
		sb.WriteString("\n### Functionality\n")
		for _, area := range sortedKeys(s.Features.Functionality) {
			sb.WriteString("#### " + area + "\n")
			caps := s.Features.Functionality[area]
			for _, c := range sortedKeys(caps) {
				mark := "❌ Not available"
				if caps[c] {
					mark = "✅ Available"
				}
				sb.WriteString(fmt.Sprintf("- **%s**: %s\n", c, mark))
			}
		}
	}

	sb.WriteString("\n## Performance Baselines\n")
	if s.Performance.Absent {
		sb.WriteString("Not captured: " + s.Performance.Reason + "\n")
	} else {
		for _, def := range types.MetricCatalog {
			v, ok := s.Performance.Metrics[def.Key]
			if !ok || v.Absent {
				sb.WriteString(fmt.Sprintf("- **%s**: N/A\n", def.Key))
				continue
			}
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", def.Key, formatValue(v)))
		}
	}

	sb.WriteString("\n## API Endpoints\n")
	if s.API.Absent {
		sb.WriteString("Not captured: " + s.API.Reason + "\n")
	} else {
		for _, ep := range sortedKeys(s.API.Endpoints) {
			c := s.API.Endpoints[ep]
			if c.Absent {
				sb.WriteString(fmt.Sprintf("- **%s**: unreachable (%s)\n", ep, c.Error))
				continue
			}
			sb.WriteString(fmt.Sprintf("- **%s**: %d %s\n", ep, c.Status, c.ContentType))
		}
		if len(s.API.Observed) > 0 {
			sb.WriteString("\n### Observed Calls\n")
			for _, call := range s.API.Observed {
				sb.WriteString(fmt.Sprintf("- %s: %d\n", call.Key(), call.Status))
			}
		}
	}

	sb.WriteString("\n## Visual Baselines\n")
	if s.Visual.Absent {
		sb.WriteString("Not captured: " + s.Visual.Reason + "\n")
	} else {
		for _, name := range sortedKeys(s.Visual.Views) {
			v := s.Visual.Views[name]
			if v.Absent {
				sb.WriteString(fmt.Sprintf("- %s: not captured (%s)\n", name, v.Reason))
				continue
			}
			sb.WriteString(fmt.Sprintf("- %s: %s\n", name, v.Ref))
		}
		sb.WriteString("\n### Masked Regions\n")
		if len(s.Visual.Masks) == 0 {
			sb.WriteString("No regions matched.\n")
		}
		for _, m := range s.Visual.Masks {
			sb.WriteString(fmt.Sprintf("- **%s** (%s, %d matched): %s\n", m.Label, m.Category, m.Matched, m.Reason))
		}
	}
	return sb.String()
}

func formatValue(v types.MetricValue) string {
	switch v.Unit {
	case types.UnitMilliseconds:
		return fmt.Sprintf("%.1fms", v.Value)
	case types.UnitBytes:
		return fmt.Sprintf("%.2fMB", v.Value/1024/1024)
	case types.UnitCount:
		return fmt.Sprintf("%.0f", v.Value)
	}
	return fmt.Sprintf("%.4f", v.Value)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
