package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Mask categories.
const (
	MaskCategoryDynamicData     = "dynamic-data"
	MaskCategoryTimestamp       = "timestamp"
	MaskCategoryAnimation       = "animation"
	MaskCategoryExternalContent = "external-content"
)

// MaskRegion is a named rule for a page area whose content is expected to vary
// between captures and must be hidden before a screenshot.
type MaskRegion struct {
	Name     string `json:"name" yaml:"name" validate:"required"`
	Selector string `json:"selector" yaml:"selector" validate:"required"`
	Label    string `json:"label" yaml:"label" validate:"required"`
	Reason   string `json:"reason" yaml:"reason" validate:"required"`
	Category string `json:"category" yaml:"category" validate:"required,oneof=dynamic-data timestamp animation external-content"`
}

// Validate validates the MaskRegion using the validator.
func (r MaskRegion) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid mask region %q: %w", r.Name, err)
	}
	return nil
}

// AppliedMask is a region that matched at least one element during a capture.
type AppliedMask struct {
	MaskRegion
	Matched int `json:"matched"`
}

// AppliedMaskList is the ordered list of masks applied to one visual capture.
type AppliedMaskList []AppliedMask

// Keys returns the sorted identities (name and selector) of the applied masks.
// Two captures masked with the same policy produce identical keys.
func (l AppliedMaskList) Keys() []string {
	keys := make([]string, 0, len(l))
	for _, m := range l {
		keys = append(keys, m.Name+"="+m.Selector)
	}
	sort.Strings(keys)
	return keys
}

// Policy returns a stable textual fingerprint of the applied masks.
func (l AppliedMaskList) Policy() string {
	return strings.Join(l.Keys(), ";")
}
