package capture

import (
	"context"

	"github.com/jonathan/regression-baseline/internal/fetch"
	"github.com/jonathan/regression-baseline/internal/types"
)

// HTTPProber probes endpoints with a plain HTTP client instead of from inside the page.
type HTTPProber struct {
	Options *fetch.Options
}

// Probe implements Prober.
func (p HTTPProber) Probe(ctx context.Context, url string) (types.APIContract, error) {
	res, err := fetch.Probe(ctx, url, p.Options)
	if err != nil {
		return types.APIContract{}, err
	}
	return types.APIContract{
		Status:      res.StatusCode,
		ContentType: res.ContentType,
		OK:          res.OK,
	}, nil
}

// FetchJSON implements Prober.
func (p HTTPProber) FetchJSON(ctx context.Context, url string, out any) error {
	return fetch.JSON(ctx, url, p.Options, out)
}
