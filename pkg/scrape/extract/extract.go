// Package extract pulls title, content, and published date out of article
// HTML through a three-tier cascade: configured per-site selectors, a generic
// selector list, then a readability-style full-text heuristic. Each tier runs
// only when the previous one produced less than the minimum meaningful
// content length.
package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"mentionscan/pkg/dates"
	"mentionscan/pkg/domain"
	"mentionscan/pkg/metrics"
)

// DefaultMinContentChars is the minimum extracted-content length considered
// meaningful; below it the cascade falls through to the next tier.
const DefaultMinContentChars = 80

// readabilityMinHTML keeps the full-text heuristic away from tiny error pages.
const readabilityMinHTML = 2048

// Result is one extraction outcome.
type Result struct {
	Title       string
	Content     string
	PublishedAt *time.Time
	DateConf    dates.Confidence
	DateRaw     string
	Tier        string // winning tier: configured, generic, fulltext, none
}

// Sufficient reports whether the content meets the minimum length.
func (r Result) Sufficient(min int) bool {
	return len(strings.TrimSpace(r.Content)) >= min
}

// Extractor runs the cascade.
type Extractor struct {
	minContent int
}

// New creates an Extractor. minContent <= 0 uses DefaultMinContentChars.
func New(minContent int) *Extractor {
	if minContent <= 0 {
		minContent = DefaultMinContentChars
	}
	return &Extractor{minContent: minContent}
}

// MinContent returns the configured sufficiency threshold.
func (e *Extractor) MinContent() int { return e.minContent }

// Extract runs the cascade over raw HTML. cfg may be nil when the page's
// domain has no configured selectors; the cascade then starts at the generic
// tier. Extract never fails: an empty Result with Tier "none" means nothing
// usable was found.
func (e *Extractor) Extract(html string, cfg *domain.SourceConfig) Result {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		metrics.ExtractionOutcome.WithLabelValues("none", "parse_error").Inc()
		return Result{Tier: "none"}
	}

	var best Result

	if cfg != nil {
		best = e.configuredTier(doc, cfg)
		if best.Sufficient(e.minContent) {
			e.observe(best)
			return best
		}
	}

	generic := e.genericTier(doc)
	best = merge(best, generic)
	if best.Sufficient(e.minContent) {
		e.observe(best)
		return best
	}

	if len(html) >= readabilityMinHTML {
		full := e.fulltextTier(html)
		best = merge(best, full)
	}

	e.observe(best)
	return best
}

func (e *Extractor) configuredTier(doc *goquery.Document, cfg *domain.SourceConfig) Result {
	r := Result{Tier: "configured"}
	if cfg.TitleSelector != "" {
		r.Title = strings.TrimSpace(doc.Find(cfg.TitleSelector).First().Text())
	}
	if cfg.ContentSelector != "" {
		r.Content = joinText(doc.Find(cfg.ContentSelector))
	}
	if cfg.DateSelector != "" {
		r.PublishedAt, r.DateConf, r.DateRaw = dateFromSelection(doc.Find(cfg.DateSelector).First())
	}
	return r
}

func (e *Extractor) fulltextTier(html string) Result {
	article, err := readability.FromReader(strings.NewReader(html), nil)
	if err != nil {
		return Result{Tier: "fulltext"}
	}
	r := Result{
		Tier:    "fulltext",
		Title:   strings.TrimSpace(article.Title),
		Content: strings.TrimSpace(article.TextContent),
	}
	if article.PublishedTime != nil {
		t := article.PublishedTime.UTC()
		r.PublishedAt = &t
		// Readability reads meta tags, which are machine readable.
		r.DateConf = dates.ConfidenceAttribute
	}
	return r
}

func (e *Extractor) observe(r Result) {
	result := "ok"
	if !r.Sufficient(e.minContent) {
		result = "insufficient"
	}
	tier := r.Tier
	if tier == "" {
		tier = "none"
	}
	metrics.ExtractionOutcome.WithLabelValues(tier, result).Inc()
	metrics.ExtractionLength.Observe(float64(len(r.Content)))
}

// merge keeps a's fields, filling gaps from b; the winning tier is whichever
// supplied the content.
func merge(a, b Result) Result {
	out := a
	if len(strings.TrimSpace(b.Content)) > len(strings.TrimSpace(out.Content)) {
		out.Content = b.Content
		out.Tier = b.Tier
	}
	if out.Title == "" {
		out.Title = b.Title
	}
	if out.PublishedAt == nil && b.PublishedAt != nil {
		out.PublishedAt = b.PublishedAt
		out.DateConf = b.DateConf
		out.DateRaw = b.DateRaw
	}
	if out.Tier == "" {
		out.Tier = b.Tier
	}
	return out
}

func joinText(sel *goquery.Selection) string {
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		// Prefer paragraph granularity when the selector points at a container.
		ps := s.Find("p")
		if ps.Length() > 0 {
			ps.Each(func(_ int, p *goquery.Selection) {
				if t := strings.TrimSpace(p.Text()); t != "" {
					parts = append(parts, t)
				}
			})
			return
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}
