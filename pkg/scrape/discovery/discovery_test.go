package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"mentionscan/pkg/domain"
	"mentionscan/pkg/httpclient"
)

func TestIsArticleCandidate(t *testing.T) {
	cases := []struct {
		link string
		want bool
	}{
		// Strong signals.
		{"https://example.com/2024/05/12/market-update/", true},
		{"https://example.com/news/article-1234567.html", true},
		{"https://example.com/story/98765432", true},
		// Long multi-hyphen slug.
		{"https://example.com/novo-nordisk-expands-wegovy-production", true},
		// Subdomain of the site is fine.
		{"https://news.example.com/2024/05/12/update/", true},
		// Rejections.
		{"https://other.com/2024/05/12/market-update/", false}, // wrong domain
		{"https://example.com/", false},                        // empty path
		{"https://example.com/logo.png", false},                // asset
		{"https://example.com/short-slug", false},              // weak slug
		{"https://example.com/tag/economy", false},             // listing page
		{"https://example.com/newsletter", false},
		// Non-article segment overridden by a strong signal.
		{"https://example.com/tag/2024/05/12/still-an-article/", true},
	}

	for _, c := range cases {
		u, err := url.Parse(c.link)
		if err != nil {
			t.Fatalf("parse %q: %v", c.link, err)
		}
		if got := IsArticleCandidate(u, "example.com"); got != c.want {
			t.Errorf("IsArticleCandidate(%q) = %v, want %v", c.link, got, c.want)
		}
	}
}

func TestDiscoverScansSearchPage(t *testing.T) {
	page := `<html><body>
		<a href="/2024/05/12/wegovy-sales-soar/">Wegovy sales soar</a>
		<a href="/tag/pharma">Pharma tag</a>
		<a href="https://cdn.example.net/banner.jpg">ad</a>
		<a href="/novo-nordisk-announces-new-factory-site">Factory</a>
		<a href="/2024/05/12/wegovy-sales-soar/">duplicate</a>
	</body></html>`

	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	host := strings.TrimPrefix(server.URL, "http://")
	site := domain.SourceConfig{
		Domain:            host,
		SearchURLTemplate: server.URL + "/search?q={keyword}",
	}

	d := New(httpclient.NewClient(httpclient.CloudflareClient))
	urls, err := d.Discover(context.Background(), site, "Novo Nordisk")
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if gotQuery != "Novo Nordisk" {
		t.Errorf("keyword not substituted into template, got query %q", gotQuery)
	}
	if len(urls) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %v", len(urls), urls)
	}
	if !strings.Contains(urls[0], "/2024/05/12/wegovy-sales-soar") {
		t.Errorf("unexpected first candidate %q", urls[0])
	}
}

func TestDiscoverRequiresTemplate(t *testing.T) {
	d := New(httpclient.NewClient(httpclient.CloudflareClient))
	if _, err := d.Discover(context.Background(), domain.SourceConfig{Domain: "example.com"}, "kw"); err == nil {
		t.Fatal("expected error for site without search template")
	}
}
