package types

import "time"

// Status is the classification of a single comparison.
type Status string

// Finding statuses.
const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusFail    Status = "fail"
)

// Finding is the result of comparing one field between two snapshots.
// Category is a dotted path, e.g. "features.powerWidget" or "api./health".
type Finding struct {
	Category string `json:"category"`
	Status   Status `json:"status"`
	Baseline string `json:"baseline"`
	Current  string `json:"current"`
	Note     string `json:"note,omitempty"`
}

// Dimension returns the leading path segment of the finding category.
func (f Finding) Dimension() string {
	for i := 0; i < len(f.Category); i++ {
		if f.Category[i] == '.' {
			return f.Category[:i]
		}
	}
	return f.Category
}

// Summary counts findings by status.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Warnings int `json:"warnings"`
	Failed   int `json:"failed"`
}

// Report aggregates the findings of one comparison run.
type Report struct {
	GeneratedAt       time.Time `json:"generated_at"`
	BaselineTimestamp time.Time `json:"baseline_timestamp"`
	CurrentTimestamp  time.Time `json:"current_timestamp"`
	Summary           Summary   `json:"summary"`
	Passed            bool      `json:"passed"`
	Findings          []Finding `json:"findings"`
}

// DiffResult is the outcome of an external pixel comparison.
type DiffResult struct {
	DiffPixels     int     `json:"diff_pixels"`
	TotalPixels    int     `json:"total_pixels"`
	DiffPercentage float64 `json:"diff_percentage"`
}
