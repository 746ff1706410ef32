// Package discovery turns a (configured site, keyword) pair into candidate
// article URLs: it renders the site's search-results page via its configured
// search-URL template and keeps only links that look like articles.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mentionscan/pkg/domain"
	"mentionscan/pkg/httpclient"
	"mentionscan/pkg/urlutil"
)

// Discoverer finds candidate article links on configured sites.
type Discoverer struct {
	client *httpclient.Client
}

// New creates a Discoverer using the given HTTP client.
func New(client *httpclient.Client) *Discoverer {
	return &Discoverer{client: client}
}

// Discover fetches the site's search page for keyword and returns accepted
// candidate article URLs, deduplicated, in page order.
func (d *Discoverer) Discover(ctx context.Context, site domain.SourceConfig, keyword string) ([]string, error) {
	if site.SearchURLTemplate == "" {
		return nil, fmt.Errorf("site %s has no search template", site.Domain)
	}
	searchURL := strings.ReplaceAll(site.SearchURLTemplate, "{keyword}", url.QueryEscape(keyword))

	html, finalURL, err := d.client.GetString(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("fetch search page %s: %w", searchURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	base, err := url.Parse(finalURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	apex := urlutil.RegistrableDomain(site.Domain)

	var out []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		candidate := abs.String()
		if seen[candidate] {
			return
		}
		if IsArticleCandidate(abs, apex) {
			seen[candidate] = true
			out = append(out, candidate)
		}
	})

	return out, nil
}
