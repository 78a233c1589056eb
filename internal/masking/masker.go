package masking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonathan/regression-baseline/internal/types"
)

// Attribute names stamped on masked elements. They survive into the DOM and the
// embedded manifest so a reviewer can audit what was hidden.
const (
	ClassName      = "regression-mask"
	LabelAttribute = "data-mask-label"
	ReasonAttr     = "data-mask-reason"
	TestIDValue    = "regression-mask"
	ManifestMeta   = "regression-masks"
)

// MaskedElement describes one element currently carrying the mask class.
type MaskedElement struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// Surface is the page automation needed to mask elements.
type Surface interface {
	// InjectMaskStyle installs the stylesheet that hides masked content.
	InjectMaskStyle(ctx context.Context) error
	// MarkElements masks every element matching selector and returns how many matched.
	MarkElements(ctx context.Context, selector, label, reason string) (int, error)
	// EmbedManifest writes the applied list into the document for later audit.
	EmbedManifest(ctx context.Context, manifest string) error
	// MaskedElements lists every element currently masked.
	MaskedElements(ctx context.Context) ([]MaskedElement, error)
	// ClearMasks removes mask marks from every element.
	ClearMasks(ctx context.Context) error
	// URL returns the current page location.
	URL(ctx context.Context) (string, error)
}

// Masker applies regions to one page and tracks what was applied for the current capture.
type Masker struct {
	surface Surface
	applied types.AppliedMaskList
}

// NewMasker creates a Masker bound to a page surface.
func NewMasker(surface Surface) *Masker {
	return &Masker{surface: surface}
}

// Apply masks every element matched by each region. Regions matching nothing
// are skipped without error and are not added to the applied list.
func (m *Masker) Apply(ctx context.Context, regions []types.MaskRegion) (types.AppliedMaskList, error) {
	if m.surface == nil {
		return nil, &SurfaceError{Message: "no automation surface"}
	}

	if err := m.surface.InjectMaskStyle(ctx); err != nil {
		return nil, &SurfaceError{Message: "failed to inject mask style", Cause: err}
	}

	for _, region := range regions {
		n, err := m.surface.MarkElements(ctx, region.Selector, region.Label, region.Reason)
		if err != nil {
			return nil, &SurfaceError{Message: fmt.Sprintf("failed to mask %s", region.Name), Cause: err}
		}
		if n == 0 {
			continue
		}
		m.applied = append(m.applied, types.AppliedMask{MaskRegion: region, Matched: n})
	}

	manifest, err := json.Marshal(m.applied)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mask manifest: %w", err)
	}
	if err := m.surface.EmbedManifest(ctx, string(manifest)); err != nil {
		return nil, &SurfaceError{Message: "failed to embed mask manifest", Cause: err}
	}

	return m.Applied(), nil
}

// Applied returns a copy of the masks applied so far.
func (m *Masker) Applied() types.AppliedMaskList {
	out := make(types.AppliedMaskList, len(m.applied))
	copy(out, m.applied)
	return out
}

// Verify reports whether every masked element carries both a label and a reason.
// A page with no masked elements verifies trivially.
func (m *Masker) Verify(ctx context.Context) (bool, error) {
	if m.surface == nil {
		return false, &SurfaceError{Message: "no automation surface"}
	}
	elements, err := m.surface.MaskedElements(ctx)
	if err != nil {
		return false, &SurfaceError{Message: "failed to inspect masked elements", Cause: err}
	}
	for _, el := range elements {
		if el.Label == "" || el.Reason == "" {
			return false, nil
		}
	}
	return true, nil
}

// Remove clears every mask from the page and resets the applied list.
func (m *Masker) Remove(ctx context.Context) error {
	if m.surface == nil {
		return &SurfaceError{Message: "no automation surface"}
	}
	if err := m.surface.ClearMasks(ctx); err != nil {
		return &SurfaceError{Message: "failed to clear masks", Cause: err}
	}
	m.applied = nil
	return nil
}

// AuditReport is the reviewer-facing record of what a capture suppressed.
type AuditReport struct {
	Timestamp time.Time             `json:"timestamp"`
	URL       string                `json:"url"`
	Masks     types.AppliedMaskList `json:"masks"`
}

// Report builds an audit document of the applied masks for the current page.
func (m *Masker) Report(ctx context.Context, now time.Time) ([]byte, error) {
	url, err := m.surface.URL(ctx)
	if err != nil {
		return nil, &SurfaceError{Message: "failed to read page URL", Cause: err}
	}
	report := AuditReport{
		Timestamp: now.UTC(),
		URL:       url,
		Masks:     m.Applied(),
	}
	return json.MarshalIndent(report, "", "  ")
}
