// Package observability provides formatted output for verbose CLI mode and
// Prometheus metrics for capture and comparison runs.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/regression-baseline/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintSnapshot outputs a summary of a captured snapshot.
func (p *Printer) PrintSnapshot(s *types.Snapshot) {
	if s == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID:       %s\n", s.ID))
	sb.WriteString(fmt.Sprintf("Target:   %s\n", s.TargetURL))
	sb.WriteString(fmt.Sprintf("Captured: %s\n", s.Timestamp.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString("\n")

	present := 0
	for _, ok := range s.Features.Structure {
		if ok {
			present++
		}
	}
	sb.WriteString(fmt.Sprintf("Features:    %s\n", dimensionLine(s.Features.Absence, fmt.Sprintf("%d/%d elements present", present, len(s.Features.Structure)))))

	measured := 0
	for _, m := range s.Performance.Metrics {
		if !m.Absent {
			measured++
		}
	}
	sb.WriteString(fmt.Sprintf("Performance: %s\n", dimensionLine(s.Performance.Absence, fmt.Sprintf("%d metrics", measured))))
	sb.WriteString(fmt.Sprintf("Visual:      %s\n", dimensionLine(s.Visual.Absence, fmt.Sprintf("%d views, %d masks", len(s.Visual.Views), len(s.Visual.Masks)))))
	sb.WriteString(fmt.Sprintf("API:         %s", dimensionLine(s.API.Absence, fmt.Sprintf("%d endpoints, %d observed", len(s.API.Endpoints), len(s.API.Observed)))))

	if len(s.Metadata.Errors) > 0 {
		sb.WriteString("\n\nErrors:\n")
		keys := make([]string, 0, len(s.Metadata.Errors))
		for k := range s.Metadata.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  • %s: %s\n", k, s.Metadata.Errors[k]))
		}
	}

	p.printBox("SNAPSHOT", strings.TrimSuffix(sb.String(), "\n"))
}

func dimensionLine(a types.Absence, detail string) string {
	if a.Absent {
		return "absent (" + a.Reason + ")"
	}
	return detail
}

// PrintReport outputs the summary counts and the first failures and warnings.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintReport(r *types.Report) {
	if r == nil {
		return
	}
	if r.Summary.Failed == 0 && r.Summary.Warnings == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, fmt.Sprintf("✅ ALL %d CHECKS PASSED", r.Summary.Total))
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total: %d  Passed: %d  Warnings: %d  Failed: %d\n",
		r.Summary.Total, r.Summary.Passed, r.Summary.Warnings, r.Summary.Failed))

	writeList := func(label string, status types.Status) {
		var items []types.Finding
		for _, f := range r.Findings {
			if f.Status == status {
				items = append(items, f)
			}
		}
		if len(items) == 0 {
			return
		}
		sb.WriteString("\n" + label + ":\n")
		count := min(len(items), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", items[i].Category))
			if items[i].Note != "" {
				sb.WriteString(fmt.Sprintf("    %s\n", items[i].Note))
			}
		}
		if len(items) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-maxItemsToShow))
		}
	}
	writeList("Failures", types.StatusFail)
	writeList("Warnings", types.StatusWarning)

	p.printBox("COMPARISON RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintMasks outputs mask regions with their selectors.
func (p *Printer) PrintMasks(title string, regions []types.MaskRegion) {
	if len(regions) == 0 {
		return
	}

	var sb strings.Builder
	for i, r := range regions {
		sb.WriteString(fmt.Sprintf("%s [%s]\n", r.Name, r.Category))
		sb.WriteString(fmt.Sprintf("  %s\n", r.Selector))
		sb.WriteString(fmt.Sprintf("  %s\n", r.Reason))
		if i < len(regions)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}
