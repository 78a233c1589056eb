package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonathan/regression-baseline/internal/types"
)

type probeResult struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	OK          bool   `json:"ok"`
	Error       string `json:"error"`
}

// Probe requests url from inside the page and reports its response contract.
// Network failures come back as an error.
func (s *Session) Probe(ctx context.Context, url string) (types.APIContract, error) {
	var res probeResult
	if err := s.run(ctx, evaluateAsync(probeScript(url), &res)); err != nil {
		return types.APIContract{}, fmt.Errorf("in-page probe of %s failed: %w", url, err)
	}
	if res.Error != "" {
		return types.APIContract{}, fmt.Errorf("request to %s failed: %s", url, res.Error)
	}
	return types.APIContract{
		Status:      res.Status,
		ContentType: res.ContentType,
		OK:          res.OK,
	}, nil
}

// FetchJSON requests url from inside the page and decodes the body into out.
func (s *Session) FetchJSON(ctx context.Context, url string, out any) error {
	var body string
	if err := s.run(ctx, evaluateAsync(fetchJSONScript(url), &body)); err != nil {
		return fmt.Errorf("in-page fetch of %s failed: %w", url, err)
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}
