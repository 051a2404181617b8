package scrape

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"birr-rate-service/internal/domain/ports"
	"birr-rate-service/pkg/logger"
)

var ErrRendererDisabled = errors.New("headless rendering disabled")

const textPollInterval = 250 * time.Millisecond

type RendererOptions struct {
	ExecPath        string
	UserAgent       string
	NavigateTimeout time.Duration
	SelectorTimeout time.Duration
	MaxConcurrent   int64
}

// ChromeRenderer renders pages with a fresh headless Chrome per request.
type ChromeRenderer struct {
	opts RendererOptions
	sem  *semaphore.Weighted
	log  *logger.Logger
}

func NewChromeRenderer(opts RendererOptions, log *logger.Logger) *ChromeRenderer {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = 25 * time.Second
	}
	if opts.SelectorTimeout <= 0 {
		opts.SelectorTimeout = 8 * time.Second
	}
	return &ChromeRenderer{
		opts: opts,
		sem:  semaphore.NewWeighted(opts.MaxConcurrent),
		log:  log,
	}
}

func (r *ChromeRenderer) Render(ctx context.Context, req ports.RenderRequest) (*ports.RenderResult, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for browser slot: %w", err)
	}
	defer r.sem.Release(1)

	budget := r.opts.NavigateTimeout + 2*r.opts.SelectorTimeout + req.Settle
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(1280, 800),
	)
	if r.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(r.opts.UserAgent))
	}
	if r.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	// Start the browser on the tab context so later timeouts only abort
	// individual steps.
	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	start := time.Now()
	navCtx, cancelNav := context.WithTimeout(tabCtx, r.opts.NavigateTimeout)
	err := chromedp.Run(navCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
		chromedp.EmulateViewport(1280, 800),
		chromedp.Navigate(req.URL),
	)
	cancelNav()
	if err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", req.URL, err)
	}

	if req.WaitSelector != "" {
		if err := r.step(tabCtx, chromedp.WaitReady(req.WaitSelector, chromedp.ByQuery)); err != nil {
			r.log.Debug("Selector wait gave up", "url", req.URL, "selector", req.WaitSelector, "error", err)
		}
	}

	if req.Script != "" {
		var ok bool
		script := "(() => {" + req.Script + "; return true })()"
		if err := r.step(tabCtx, chromedp.Evaluate(script, &ok)); err != nil {
			r.log.Debug("Page script failed", "url", req.URL, "error", err)
		}
	}

	if req.WaitText != "" {
		if err := r.waitForText(tabCtx, req.WaitText); err != nil {
			r.log.Debug("Text wait gave up", "url", req.URL, "pattern", req.WaitText, "error", err)
		}
	}

	if req.Settle > 0 {
		if err := chromedp.Run(tabCtx, chromedp.Sleep(req.Settle)); err != nil {
			return nil, err
		}
	}

	var result ports.RenderResult
	err = chromedp.Run(tabCtx,
		chromedp.OuterHTML("html", &result.HTML, chromedp.ByQuery),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &result.Text),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered page %s: %w", req.URL, err)
	}

	r.log.Debug("Rendered page", "url", req.URL, "duration", time.Since(start), "bytes", len(result.HTML))
	return &result, nil
}

func (r *ChromeRenderer) step(ctx context.Context, action chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(ctx, r.opts.SelectorTimeout)
	defer cancel()
	return chromedp.Run(stepCtx, action)
}

func (r *ChromeRenderer) waitForText(ctx context.Context, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.opts.SelectorTimeout)
	defer cancel()

	ticker := time.NewTicker(textPollInterval)
	defer ticker.Stop()

	for {
		var text string
		if err := chromedp.Run(waitCtx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text)); err != nil {
			return err
		}
		if re.MatchString(text) {
			return nil
		}
		select {
		case <-waitCtx.Done():
			return waitCtx.Err()
		case <-ticker.C:
		}
	}
}

// DisabledRenderer is used when no browser is available.
type DisabledRenderer struct{}

func (DisabledRenderer) Render(context.Context, ports.RenderRequest) (*ports.RenderResult, error) {
	return nil, ErrRendererDisabled
}
