// Package report reduces comparison findings into a Report and renders it as
// text, markdown or structured JSON. Rendering is a pure function of the Report.
package report

import (
	"time"

	"github.com/jonathan/regression-baseline/internal/types"
)

// Process exit codes.
const (
	ExitPass            = 0
	ExitRegression      = 1
	ExitMissingBaseline = 2
	ExitError           = 3
)

// Aggregate builds the report for one comparison run. Findings are copied;
// their order is preserved.
func Aggregate(findings []types.Finding, baseline, current *types.Snapshot, now time.Time) *types.Report {
	r := &types.Report{
		GeneratedAt: now.UTC(),
		Findings:    make([]types.Finding, len(findings)),
	}
	copy(r.Findings, findings)
	if baseline != nil {
		r.BaselineTimestamp = baseline.Timestamp
	}
	if current != nil {
		r.CurrentTimestamp = current.Timestamp
	}

	r.Summary = Summarize(findings)
	r.Passed = r.Summary.Failed == 0
	return r
}

// Summarize counts findings by status.
func Summarize(findings []types.Finding) types.Summary {
	s := types.Summary{Total: len(findings)}
	for _, f := range findings {
		switch f.Status {
		case types.StatusPass:
			s.Passed++
		case types.StatusWarning:
			s.Warnings++
		case types.StatusFail:
			s.Failed++
		}
	}
	return s
}

// ExitCode maps a report to the process exit code. Warnings do not fail a run.
// A nil report means no comparison ran because there was no baseline.
func ExitCode(r *types.Report) int {
	if r == nil {
		return ExitMissingBaseline
	}
	if r.Passed {
		return ExitPass
	}
	return ExitRegression
}

// Filter returns the findings with the given status, in report order.
func Filter(r *types.Report, status types.Status) []types.Finding {
	var out []types.Finding
	for _, f := range r.Findings {
		if f.Status == status {
			out = append(out, f)
		}
	}
	return out
}
