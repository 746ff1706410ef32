package providers

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/mmcdole/gofeed"

	"mentionscan/pkg/config"
	"mentionscan/pkg/dates"
	"mentionscan/pkg/domain"
	"mentionscan/pkg/urlutil"
)

// Feed is the news-feed search provider: one feed fetch per keyword against
// the endpoint template, parsed with gofeed. Entries without a parsable
// publish date are dropped since the cutoff cannot be applied to them.
type Feed struct {
	cfg    config.FeedConfig
	parser *gofeed.Parser
}

// NewFeed creates the feed adapter.
func NewFeed(cfg config.FeedConfig) *Feed {
	p := gofeed.NewParser()
	p.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Feed{cfg: cfg, parser: p}
}

func (f *Feed) Name() string { return "feed" }

// Fetch fans keyword fetches out over a bounded worker pool and merges the
// per-keyword results. A failed feed fetch skips that keyword only.
func (f *Feed) Fetch(ctx context.Context, queries []string, cutoff time.Time) ([]domain.Mention, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	jobs := make(chan string)
	results := make(chan []domain.Mention, len(queries))

	var wg sync.WaitGroup
	for i := 0; i < f.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for keyword := range jobs {
				results <- f.fetchKeyword(ctx, keyword, cutoff)
			}
		}()
	}

	for _, q := range queries {
		jobs <- q
	}
	close(jobs)
	wg.Wait()
	close(results)

	seen := make(map[string]struct{})
	var mentions []domain.Mention
	for batch := range results {
		for _, m := range batch {
			if _, dup := seen[m.NormalizedLink]; dup {
				continue
			}
			seen[m.NormalizedLink] = struct{}{}
			mentions = append(mentions, m)
		}
	}
	return mentions, nil
}

func (f *Feed) fetchKeyword(ctx context.Context, keyword string, cutoff time.Time) []domain.Mention {
	feedURL := strings.ReplaceAll(f.cfg.EndpointTpl, "{keyword}", url.QueryEscape(keyword))

	parsed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		slog.Warn("feed fetch failed", "provider", f.Name(), "keyword", keyword, "error", err)
		return nil
	}

	var mentions []domain.Mention
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}
		published := itemDate(item)
		if published == nil {
			continue
		}
		if !cutoff.IsZero() && published.Before(cutoff) {
			continue
		}

		normalized, err := urlutil.Normalize(item.Link)
		if err != nil {
			continue
		}
		platform := ""
		if parsed.Title != "" {
			platform = parsed.Title
		}
		if platform == "" {
			platform = urlutil.PlatformLabel(item.Link)
		}
		mentions = append(mentions, domain.Mention{
			Title:          strings.TrimSpace(item.Title),
			Link:           item.Link,
			NormalizedLink: normalized,
			PublishedAt:    published,
			Platform:       platform,
			Teaser:         strings.TrimSpace(item.Description),
			Provider:       f.Name(),
		})
	}
	return mentions
}

func itemDate(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		return &t
	}
	if item.Published != "" {
		if t, err := dates.Parse(item.Published); err == nil {
			return &t
		}
	}
	if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		return &t
	}
	return nil
}
