// Package masking labels and hides page regions whose content is expected to
// change between captures, so visual snapshots only differ where the
// application itself changed.
package masking

import (
	"fmt"
	"sort"

	"github.com/jonathan/regression-baseline/internal/types"
)

// Names of the standard catalog entries.
const (
	Grafana         = "grafana"
	Timestamps      = "timestamps"
	PowerReadings   = "powerReadings"
	Animations      = "animations"
	ExternalContent = "externalContent"
)

var standard = map[string]types.MaskRegion{
	Grafana: {
		Name:     Grafana,
		Selector: `.grafana-preview iframe, iframe[src*="grafana"]`,
		Label:    "Grafana Chart",
		Reason:   "Dynamic time-series data changes constantly",
		Category: types.MaskCategoryDynamicData,
	},
	Timestamps: {
		Name:     Timestamps,
		Selector: `[data-testid="timestamp"], .timestamp, .last-updated, time`,
		Label:    "Timestamp",
		Reason:   "Timestamps change on every page load",
		Category: types.MaskCategoryTimestamp,
	},
	PowerReadings: {
		Name:     PowerReadings,
		Selector: `[data-testid="power-value"], .power-reading, .watt-value`,
		Label:    "Power Reading",
		Reason:   "Real-time power values fluctuate",
		Category: types.MaskCategoryDynamicData,
	},
	Animations: {
		Name:     Animations,
		Selector: `.pulse, .animate, .loading, .spinner`,
		Label:    "Animation",
		Reason:   "Animated elements cause pixel differences",
		Category: types.MaskCategoryAnimation,
	},
	ExternalContent: {
		Name:     ExternalContent,
		Selector: `iframe[src*="youtube"], iframe[src*="vimeo"], .ad-container`,
		Label:    "External Content",
		Reason:   "External content is not under our control",
		Category: types.MaskCategoryExternalContent,
	},
}

// Standard returns the catalog entry with the given name.
func Standard(name string) (types.MaskRegion, bool) {
	r, ok := standard[name]
	return r, ok
}

// StandardNames lists the catalog in sorted order.
func StandardNames() []string {
	names := make([]string, 0, len(standard))
	for name := range standard {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry is an ordered set of mask regions applied together.
type Registry struct {
	regions []types.MaskRegion
}

// NewRegistry composes a registry from standard catalog names followed by custom regions.
// Duplicate names keep the first occurrence.
func NewRegistry(names []string, custom ...types.MaskRegion) (*Registry, error) {
	r := &Registry{}
	seen := make(map[string]bool)

	for _, name := range names {
		region, ok := standard[name]
		if !ok {
			return nil, fmt.Errorf("unknown standard mask %q (known: %v)", name, StandardNames())
		}
		if !seen[name] {
			seen[name] = true
			r.regions = append(r.regions, region)
		}
	}

	for _, region := range custom {
		if err := region.Validate(); err != nil {
			return nil, err
		}
		if !seen[region.Name] {
			seen[region.Name] = true
			r.regions = append(r.regions, region)
		}
	}

	return r, nil
}

// DefaultRegistry holds every standard region. Capture uses it unless configured otherwise.
func DefaultRegistry() *Registry {
	r, _ := NewRegistry(StandardNames())
	return r
}

// PowerMonitoring is the preset used for the power monitoring page.
func PowerMonitoring() *Registry {
	r, _ := NewRegistry([]string{Grafana, PowerReadings, Timestamps})
	return r
}

// Regions returns a copy of the registry's regions in application order.
func (r *Registry) Regions() []types.MaskRegion {
	out := make([]types.MaskRegion, len(r.regions))
	copy(out, r.regions)
	return out
}

// Len returns the number of regions.
func (r *Registry) Len() int {
	return len(r.regions)
}

// Policy fingerprints the configured regions. Snapshots whose visual dimension
// was captured under different policies are not directly comparable.
func (r *Registry) Policy() string {
	list := make(types.AppliedMaskList, 0, len(r.regions))
	for _, region := range r.regions {
		list = append(list, types.AppliedMask{MaskRegion: region})
	}
	return list.Policy()
}
