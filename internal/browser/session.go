// Package browser provides a headless Chrome session that implements the
// capture driver, the masking surface and the in-page API prober.
// Requires Chrome/Chromium to be installed on the system.
package browser

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/jonathan/regression-baseline/internal/fetch"
)

// Config configures the browser session.
type Config struct {
	Headless  bool
	UserAgent string
	Width     int
	Height    int
	Verbose   bool
}

// DefaultConfig returns a headless 1920x1080 session.
func DefaultConfig() Config {
	return Config{
		Headless: true,
		Width:    1920,
		Height:   1080,
	}
}

// Session is one browser tab. It is not safe for concurrent use; the capturer
// drives it from a single goroutine.
type Session struct {
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	verbose     bool

	mu  sync.Mutex
	dom *fetch.DOM
}

// NewSession launches Chrome and opens a tab. The browser lives until Close
// or until parent is cancelled.
func NewSession(parent context.Context, cfg Config) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("enable-precise-memory-info", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.Width, cfg.Height))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Start the browser with the long-lived context so later per-call
	// timeouts never tear it down.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if cfg.Width > 0 && cfg.Height > 0 {
		if err := chromedp.Run(tabCtx, emulation.SetDeviceMetricsOverride(int64(cfg.Width), int64(cfg.Height), 1, false)); err != nil {
			tabCancel()
			allocCancel()
			return nil, fmt.Errorf("failed to set initial viewport: %w", err)
		}
	}

	if cfg.Verbose {
		log.Printf("[BROWSER] Started headless=%v viewport=%dx%d", cfg.Headless, cfg.Width, cfg.Height)
	}

	return &Session{
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		verbose:     cfg.Verbose,
	}, nil
}

// Close shuts down the tab and the browser process.
func (s *Session) Close() {
	s.tabCancel()
	s.allocCancel()
}

// run executes actions on the tab, bounded by the caller's deadline and cancellation.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *Session) invalidateDOM() {
	s.mu.Lock()
	s.dom = nil
	s.mu.Unlock()
}

// snapshotDOM returns the parsed markup of the current page state, taking it
// from the browser at most once between navigations.
func (s *Session) snapshotDOM(ctx context.Context) (*fetch.DOM, error) {
	s.mu.Lock()
	cached := s.dom
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("failed to read DOM: %w", err)
	}
	dom, err := fetch.ParseDOM(html)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.dom = dom
	s.mu.Unlock()

	if s.verbose {
		log.Printf("[BROWSER] DOM snapshot: %d bytes", len(html))
	}
	return dom, nil
}
