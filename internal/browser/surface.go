package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/jonathan/regression-baseline/internal/masking"
)

var _ masking.Surface = (*Session)(nil)

// InjectMaskStyle implements masking.Surface.
func (s *Session) InjectMaskStyle(ctx context.Context) error {
	var ok bool
	return s.run(ctx, chromedp.Evaluate(maskStyleScript(masking.ClassName, masking.LabelAttribute), &ok))
}

// MarkElements implements masking.Surface. When a selector matches more than
// one element each label is suffixed with its position.
func (s *Session) MarkElements(ctx context.Context, selector, label, reason string) (int, error) {
	s.invalidateDOM()
	var n int
	script := markScript(selector, label, reason,
		masking.ClassName, masking.LabelAttribute, masking.ReasonAttr, masking.TestIDValue)
	if err := s.run(ctx, chromedp.Evaluate(script, &n)); err != nil {
		return 0, fmt.Errorf("failed to mark %s: %w", selector, err)
	}
	return n, nil
}

// EmbedManifest implements masking.Surface.
func (s *Session) EmbedManifest(ctx context.Context, manifest string) error {
	var ok bool
	return s.run(ctx, chromedp.Evaluate(manifestScript(masking.ManifestMeta, manifest), &ok))
}

// MaskedElements implements masking.Surface.
func (s *Session) MaskedElements(ctx context.Context) ([]masking.MaskedElement, error) {
	var out []masking.MaskedElement
	script := maskedElementsScript(masking.ClassName, masking.LabelAttribute, masking.ReasonAttr)
	if err := s.run(ctx, chromedp.Evaluate(script, &out)); err != nil {
		return nil, err
	}
	return out, nil
}

// ClearMasks implements masking.Surface.
func (s *Session) ClearMasks(ctx context.Context) error {
	s.invalidateDOM()
	var ok bool
	script := clearScript(masking.ClassName, masking.LabelAttribute, masking.ReasonAttr, masking.ManifestMeta)
	return s.run(ctx, chromedp.Evaluate(script, &ok))
}

// URL implements masking.Surface.
func (s *Session) URL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}
