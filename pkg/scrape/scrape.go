// Package scrape implements the configurable-site provider: discovery of
// candidate article URLs per (site, keyword), then rate-limited, circuit-broken
// extraction of each candidate with headless-render escalation.
package scrape

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"mentionscan/pkg/breaker"
	"mentionscan/pkg/config"
	"mentionscan/pkg/dates"
	"mentionscan/pkg/domain"
	"mentionscan/pkg/httpclient"
	"mentionscan/pkg/metrics"
	"mentionscan/pkg/scrape/discovery"
	"mentionscan/pkg/scrape/extract"
	"mentionscan/pkg/textutil"
	"mentionscan/pkg/urlutil"
)

// ProviderName labels mentions produced by this engine.
const ProviderName = "sites"

const teaserChars = 300

// PageRenderer is the headless fallback; nil disables escalation.
type PageRenderer interface {
	Render(ctx context.Context, url string) (html string, finalURL string, err error)
}

// Engine drives two-phase scraping across all configured sites.
type Engine struct {
	sources    *config.SourceRegistry
	discoverer *discovery.Discoverer
	extractor  *extract.Extractor
	renderer   PageRenderer
	client     *httpclient.Client

	globalSem  *semaphore.Weighted
	perDomain  int64
	breakerThr int

	mu         sync.Mutex
	domainSems map[string]*semaphore.Weighted
}

// Options configures an Engine.
type Options struct {
	GlobalConcurrency    int
	PerDomainConcurrency int
	MinContentChars      int
	BreakerThreshold     int
}

// NewEngine wires the engine. client is used for article fetches; the
// discoverer carries its own (search-profile) client. renderer may be nil.
func NewEngine(sources *config.SourceRegistry, disc *discovery.Discoverer, client *httpclient.Client, renderer PageRenderer, opts Options) *Engine {
	if opts.GlobalConcurrency <= 0 {
		opts.GlobalConcurrency = 16
	}
	if opts.PerDomainConcurrency <= 0 {
		opts.PerDomainConcurrency = 3
	}
	return &Engine{
		sources:    sources,
		discoverer: disc,
		extractor:  extract.New(opts.MinContentChars),
		renderer:   renderer,
		client:     client,
		globalSem:  semaphore.NewWeighted(int64(opts.GlobalConcurrency)),
		perDomain:  int64(opts.PerDomainConcurrency),
		breakerThr: opts.BreakerThreshold,
		domainSems: make(map[string]*semaphore.Weighted),
	}
}

type candidate struct {
	url     string
	site    domain.SourceConfig
	queries []string // queries whose discovery surfaced this URL
}

// Fetch discovers and extracts mentions for the given queries, keeping only
// articles that match at least one query and survive the cutoff rule.
func (e *Engine) Fetch(ctx context.Context, queries []string, cutoff time.Time) ([]domain.Mention, error) {
	brk := breaker.NewRegistry(e.breakerThr)
	cands := e.discover(ctx, queries)
	if len(cands) == 0 {
		return nil, nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []domain.Mention
	)
	for _, c := range cands {
		wg.Add(1)
		go func(c candidate) {
			defer wg.Done()
			m, ok := e.processCandidate(ctx, c, cutoff, brk)
			if !ok {
				return
			}
			mu.Lock()
			results = append(results, m)
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	return results, nil
}

// discover runs phase 1 for every (configured site, query) pair and merges
// candidates per URL, remembering which queries surfaced each.
func (e *Engine) discover(ctx context.Context, queries []string) []candidate {
	byURL := make(map[string]*candidate)
	var order []string

	for _, site := range e.sources.All() {
		if site.SearchURLTemplate == "" {
			continue
		}
		for _, q := range queries {
			urls, err := e.discoverer.Discover(ctx, site, textutil.CleanQuery(q))
			if err != nil {
				slog.Warn("site discovery failed", "domain", site.Domain, "query", q, "error", err)
				continue
			}
			for _, u := range urls {
				if c, ok := byURL[u]; ok {
					c.queries = appendUnique(c.queries, q)
					continue
				}
				byURL[u] = &candidate{url: u, site: site, queries: []string{q}}
				order = append(order, u)
			}
		}
	}

	out := make([]candidate, 0, len(order))
	for _, u := range order {
		out = append(out, *byURL[u])
	}
	return out
}

// processCandidate runs phase 2 for one URL: fetch, cascade, optional render
// escalation, keyword gate, cutoff rule.
func (e *Engine) processCandidate(ctx context.Context, c candidate, cutoff time.Time, brk *breaker.Registry) (domain.Mention, bool) {
	dom := urlutil.RegistrableDomain(c.url)
	if !brk.Allow(dom) {
		return domain.Mention{}, false
	}

	if err := e.globalSem.Acquire(ctx, 1); err != nil {
		return domain.Mention{}, false
	}
	defer e.globalSem.Release(1)

	domSem := e.domainSem(dom)
	if err := domSem.Acquire(ctx, 1); err != nil {
		return domain.Mention{}, false
	}
	defer domSem.Release(1)

	// Re-check: the breaker may have opened while we waited.
	if !brk.Allow(dom) {
		return domain.Mention{}, false
	}

	html, finalURL, err := e.client.GetString(ctx, c.url)
	if err != nil {
		if errors.Is(err, httpclient.ErrPaywalled) {
			slog.Debug("paywalled, skipping", "url", c.url)
			return domain.Mention{}, false
		}
		e.fail(brk, dom, c.url, err)
		return domain.Mention{}, false
	}

	res := e.extractor.Extract(html, e.siteConfig(c))

	if !res.Sufficient(e.extractor.MinContent()) && e.renderer != nil {
		rendered, renderedURL, rerr := e.renderer.Render(ctx, c.url)
		if rerr != nil {
			e.fail(brk, dom, c.url, rerr)
			return domain.Mention{}, false
		}
		if rres := e.extractor.Extract(rendered, e.siteConfig(c)); rres.Sufficient(e.extractor.MinContent()) {
			res = rres
			finalURL = renderedURL
		}
	}

	brk.Success(dom)

	if !res.Sufficient(e.extractor.MinContent()) {
		return domain.Mention{}, false
	}

	text := res.Title + "\n" + res.Content
	if !anyKeywordMatches(text, c.queries) {
		return domain.Mention{}, false
	}

	// Hard cutoff only on trusted dates; ambiguous dates keep the article.
	if res.PublishedAt != nil && dates.Trusted(res.DateConf, res.DateRaw) && res.PublishedAt.Before(cutoff) {
		metrics.FilteredMentions.WithLabelValues("cutoff").Inc()
		return domain.Mention{}, false
	}

	normalized, err := urlutil.Normalize(finalURL)
	if err != nil {
		normalized = finalURL
	}

	return domain.Mention{
		Title:          res.Title,
		Link:           finalURL,
		NormalizedLink: normalized,
		PublishedAt:    res.PublishedAt,
		Platform:       urlutil.PlatformLabel(finalURL),
		Teaser:         teaser(res.Content),
		Provider:       ProviderName,
	}, true
}

func (e *Engine) siteConfig(c candidate) *domain.SourceConfig {
	if u, err := url.Parse(c.url); err == nil {
		if cfg, ok := e.sources.Lookup(u.Host); ok {
			return &cfg
		}
	}
	cfg := c.site
	return &cfg
}

func (e *Engine) fail(brk *breaker.Registry, dom, url string, err error) {
	if tripped := brk.Failure(dom); tripped {
		slog.Warn("circuit breaker opened", "domain", dom)
	}
	slog.Debug("extraction failed", "url", url, "error", err)
}

func (e *Engine) domainSem(dom string) *semaphore.Weighted {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.domainSems[dom]; ok {
		return s
	}
	s := semaphore.NewWeighted(e.perDomain)
	e.domainSems[dom] = s
	return s
}

func anyKeywordMatches(text string, queries []string) bool {
	for _, q := range queries {
		if textutil.KeywordMatches(text, q) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func teaser(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) <= teaserChars {
		return content
	}
	cut := content[:teaserChars]
	if i := strings.LastIndex(cut, " "); i > teaserChars/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
