package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"mentionscan/pkg/dates"
)

// Generic selector lists tried in order; first non-empty match wins per field.
var (
	genericTitleSelectors = []string{
		"h1.article-title",
		"h1.entry-title",
		"h1.headline",
		"article h1",
		"h1",
		"meta[property='og:title']",
		"title",
	}

	genericContentSelectors = []string{
		"article .article-body",
		".article-body",
		".article-content",
		".post-content",
		".entry-content",
		"article",
		"main .content",
		"main",
		"#content",
	}

	genericDateSelectors = []string{
		"time[datetime]",
		"meta[property='article:published_time']",
		"meta[name='pubdate']",
		"meta[name='date']",
		".published",
		".post-date",
		".article-date",
		".date",
	}
)

func (e *Extractor) genericTier(doc *goquery.Document) Result {
	r := Result{Tier: "generic"}

	for _, sel := range genericTitleSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		title := strings.TrimSpace(s.Text())
		if title == "" {
			title, _ = s.Attr("content")
			title = strings.TrimSpace(title)
		}
		if title != "" {
			r.Title = title
			break
		}
	}

	for _, sel := range genericContentSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		content := joinText(s)
		if len(strings.TrimSpace(content)) >= e.minContent {
			r.Content = content
			break
		}
		if r.Content == "" && strings.TrimSpace(content) != "" {
			r.Content = content
		}
	}

	for _, sel := range genericDateSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if t, conf, raw := dateFromSelection(s); t != nil {
			r.PublishedAt, r.DateConf, r.DateRaw = t, conf, raw
			break
		}
	}

	return r
}

// dateFromSelection reads a date from a node, preferring machine-readable
// attributes (datetime/content) over element text. The confidence records
// which one supplied the value: attribute dates may be acted on for cutoff
// filtering, free-text dates only when unambiguous.
func dateFromSelection(s *goquery.Selection) (*time.Time, dates.Confidence, string) {
	if s.Length() == 0 {
		return nil, dates.ConfidenceNone, ""
	}
	for _, attr := range []string{"datetime", "content"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			if t, err := dates.Parse(v); err == nil {
				return &t, dates.ConfidenceAttribute, v
			}
		}
	}
	text := strings.TrimSpace(s.Text())
	if text != "" {
		if t, err := dates.Parse(text); err == nil {
			return &t, dates.ConfidenceText, text
		}
	}
	return nil, dates.ConfidenceNone, ""
}
