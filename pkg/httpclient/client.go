// Package httpclient wraps net/http with the request policy shared by every
// provider: profile-based headers, per-request timeout, bounded retry with
// backoff, paywall detection, and optional rate limiting per domain.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mentionscan/pkg/metrics"
)

// ClientType selects the header profile for outbound requests.
type ClientType string

const (
	// BrowserClient uses browser-like headers to avoid 406 (Not Acceptable)
	// responses from picky origin servers.
	BrowserClient ClientType = "browser"

	// CloudflareClient uses simple curl-like headers; Cloudflare-fronted
	// sites often allow plain tools while blocking fake browser agents.
	CloudflareClient ClientType = "cloudflare"
)

// ErrPaywalled marks an HTTP 402 response. Treated as a benign skip, never
// retried and never counted as a failure.
var ErrPaywalled = errors.New("paywalled (402)")

// Limiter gates request rate per domain. Implemented by ratelimit.Registry.
type Limiter interface {
	Wait(ctx context.Context, domain string) error
}

// Config tunes retry and timeout behavior.
type Config struct {
	Timeout       time.Duration // per attempt
	RetryAttempts int
	RetryDelay    time.Duration // grows linearly per attempt
	MaxBodyBytes  int64
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 4 << 20
	}
}

// Client is the shared outbound HTTP client.
type Client struct {
	client     *http.Client
	clientType ClientType
	cfg        Config
	limiter    Limiter // may be nil
}

// NewClient creates a client with the given header profile and default policy.
func NewClient(clientType ClientType) *Client {
	return NewClientWithConfig(clientType, Config{}, nil)
}

// NewClientWithConfig creates a client with explicit policy and an optional
// per-domain rate limiter.
func NewClientWithConfig(clientType ClientType, cfg Config, limiter Limiter) *Client {
	cfg.defaults()
	return &Client{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		clientType: clientType,
		cfg:        cfg,
		limiter:    limiter,
	}
}

// Get fetches a URL with retry. Transient failures (network errors, 429, 5xx)
// are retried up to the configured attempt count; 402 returns ErrPaywalled
// immediately; other non-2xx statuses fail without retry. The caller owns the
// response body.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	domain := hostOf(rawURL)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, domain); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, retryable, err := c.attempt(ctx, rawURL, domain)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable || attempt == c.cfg.RetryAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * c.cfg.RetryDelay):
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, rawURL, domain string) (*http.Response, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, false, fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.HTTPDuration.WithLabelValues(domain).Observe(time.Since(start).Seconds())
	if err != nil {
		cancel()
		metrics.HTTPRequests.WithLabelValues(domain, "network_error").Inc()
		return nil, true, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	metrics.HTTPRequests.WithLabelValues(domain, strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		resp.Body.Close()
		cancel()
		return nil, false, ErrPaywalled
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		resp.Body.Close()
		cancel()
		return nil, true, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		cancel()
		return nil, false, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	// Tie the timeout cancel to body close so reads stay bounded too.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, false, nil
}

// GetString fetches a URL and returns its body as a string, capped at
// MaxBodyBytes, with the final (possibly redirected) URL.
func (c *Client) GetString(ctx context.Context, rawURL string) (body string, finalURL string, err error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return "", "", fmt.Errorf("read body: %w", err)
	}

	finalURL = rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return string(raw), finalURL, nil
}

func (c *Client) setHeaders(req *http.Request) {
	switch c.clientType {
	case BrowserClient:
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Connection", "keep-alive")
		req.Header.Set("Upgrade-Insecure-Requests", "1")
	case CloudflareClient:
		req.Header.Set("User-Agent", "curl/8.7.1")
	}
}

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Host
	}
	return "unknown"
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
