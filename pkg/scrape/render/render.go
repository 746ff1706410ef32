// Package render is the headless-browser escalation path: when the static
// HTML cascade cannot produce enough content, the page is rendered under a
// bounded concurrency limit and the cascade is re-run against the rendered
// DOM by the caller.
package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"mentionscan/pkg/metrics"
)

// Renderer runs pages through headless Chrome.
type Renderer struct {
	sem         *semaphore.Weighted
	navTimeout  time.Duration
	settleDelay time.Duration
	allocOpts   []chromedp.ExecAllocatorOption
}

// New creates a Renderer with the given concurrency cap, navigation timeout,
// and post-navigation settle delay.
func New(concurrency int, navTimeout, settleDelay time.Duration) *Renderer {
	if concurrency <= 0 {
		concurrency = 2
	}
	if navTimeout <= 0 {
		navTimeout = 25 * time.Second
	}
	if settleDelay <= 0 {
		settleDelay = 1500 * time.Millisecond
	}
	return &Renderer{
		sem:         semaphore.NewWeighted(int64(concurrency)),
		navTimeout:  navTimeout,
		settleDelay: settleDelay,
		allocOpts: append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
		),
	}
}

// Render loads the page, waits for it to settle, and returns the rendered
// outer HTML plus the final (possibly redirected) URL.
func (r *Renderer) Render(ctx context.Context, url string) (html string, finalURL string, err error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return "", "", fmt.Errorf("acquire render slot: %w", err)
	}
	defer r.sem.Release(1)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocOpts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, r.navTimeout+r.settleDelay)
	defer cancelRun()

	err = chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(r.settleDelay),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		metrics.RenderOutcome.WithLabelValues("error").Inc()
		return "", "", fmt.Errorf("render %s: %w", url, err)
	}
	if finalURL == "" {
		finalURL = url
	}

	metrics.RenderOutcome.WithLabelValues("ok").Inc()
	return html, finalURL, nil
}
