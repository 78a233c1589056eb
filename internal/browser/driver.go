package browser

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/performance"
	"github.com/chromedp/chromedp"
	"github.com/jonathan/regression-baseline/internal/types"
)

// Navigate loads url and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.invalidateDOM()
	if s.verbose {
		log.Printf("[BROWSER] Navigating to %s", url)
	}
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Reload reloads the current page.
func (s *Session) Reload(ctx context.Context) error {
	s.invalidateDOM()
	return s.run(ctx,
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// HasElement reports whether selector matches an element in the current page state.
func (s *Session) HasElement(ctx context.Context, selector string) (bool, error) {
	dom, err := s.snapshotDOM(ctx)
	if err != nil {
		return false, err
	}
	return dom.Has(selector), nil
}

// ElementText returns the text of the first element matching selector.
func (s *Session) ElementText(ctx context.Context, selector string) (string, bool, error) {
	dom, err := s.snapshotDOM(ctx)
	if err != nil {
		return "", false, err
	}
	text, ok := dom.Text(selector)
	return text, ok, nil
}

// CollectPerformanceMetrics reads navigation, paint, web-vital and resource
// timings from the page, plus the JS heap size from the DevTools performance domain.
func (s *Session) CollectPerformanceMetrics(ctx context.Context) (map[string]float64, error) {
	metrics := make(map[string]float64)
	var heap float64
	var heapOK bool

	err := s.run(ctx,
		evaluateAsync(performanceScript, &metrics),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := performance.Enable().Do(ctx); err != nil {
				return nil
			}
			values, err := performance.GetMetrics().Do(ctx)
			if err != nil {
				return nil
			}
			for _, m := range values {
				if m.Name == "JSHeapUsedSize" {
					heap, heapOK = m.Value, true
				}
			}
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to collect performance metrics: %w", err)
	}
	if heapOK {
		metrics[types.MetricJSHeapUsed] = heap
	}
	return metrics, nil
}

// SetViewport resizes the emulated viewport.
func (s *Session) SetViewport(ctx context.Context, width, height int) error {
	s.invalidateDOM()
	return s.run(ctx, emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false))
}

// Screenshot captures the full page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("full page screenshot failed: %w", err)
	}
	return buf, nil
}

// ScreenshotElement captures the first element matching selector.
// It returns false without error when nothing matches.
func (s *Session) ScreenshotElement(ctx context.Context, selector string) ([]byte, bool, error) {
	var exists bool
	if err := s.run(ctx, chromedp.Evaluate(existsScript(selector), &exists)); err != nil {
		return nil, false, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	if !exists {
		return nil, false, nil
	}

	var buf []byte
	if err := s.run(ctx, chromedp.Screenshot(selector, &buf, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return nil, true, fmt.Errorf("element screenshot %s failed: %w", selector, err)
	}
	return buf, true, nil
}

// ObserveResponses records responses whose URL satisfies match while trigger
// runs. Collection stops once limit responses were seen or window elapsed.
func (s *Session) ObserveResponses(ctx context.Context, match func(url string) bool, limit int, window time.Duration, trigger func(context.Context) error) ([]types.ObservedCall, error) {
	if limit <= 0 {
		return nil, nil
	}

	listenCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	var mu sync.Mutex
	methods := make(map[network.RequestID]string)
	calls := make(chan types.ObservedCall, limit)

	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			mu.Lock()
			methods[e.RequestID] = e.Request.Method
			mu.Unlock()
		case *network.EventResponseReceived:
			if e.Response == nil || !match(e.Response.URL) {
				return
			}
			mu.Lock()
			method := methods[e.RequestID]
			mu.Unlock()
			if method == "" {
				method = "GET"
			}
			select {
			case calls <- types.ObservedCall{URL: e.Response.URL, Method: method, Status: int(e.Response.Status)}:
			default:
			}
		}
	})

	if err := s.run(ctx, network.Enable()); err != nil {
		return nil, fmt.Errorf("failed to enable network events: %w", err)
	}
	if err := trigger(ctx); err != nil {
		return nil, err
	}

	timer := time.NewTimer(window)
	defer timer.Stop()

	var out []types.ObservedCall
	for len(out) < limit {
		select {
		case call := <-calls:
			out = append(out, call)
		case <-timer.C:
			return out, nil
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out, nil
}
