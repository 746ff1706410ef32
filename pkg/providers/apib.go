package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"mentionscan/pkg/config"
	"mentionscan/pkg/dates"
	"mentionscan/pkg/domain"
	"mentionscan/pkg/textutil"
	"mentionscan/pkg/urlutil"
)

// APIB is the search-engine provider. Query strings have a hard length cap,
// so keywords are chunked into OR-joined groups that fit under MaxQueryLen;
// each chunk runs against the configured engines in order, falling back to
// the next engine only when the previous one returned nothing.
type APIB struct {
	cfg    config.APIBConfig
	client *http.Client
}

// NewAPIB creates the search-engine adapter.
func NewAPIB(cfg config.APIBConfig) *APIB {
	return &APIB{
		cfg:    cfg,
		client: &http.Client{Timeout: 20 * time.Second},
	}
}

func (b *APIB) Name() string { return "api_b" }

type apibResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
		Source  string `json:"source"`
	} `json:"results"`
	Error string `json:"error"`
}

// Fetch runs every chunk against the engine list and merges results. A quota
// or rate-limit rejection aborts the remaining engines for that chunk
// immediately; the already collected mentions are still returned alongside
// ErrQuotaExhausted so the caller can keep partial results.
func (b *APIB) Fetch(ctx context.Context, queries []string, cutoff time.Time) ([]domain.Mention, error) {
	chunks := chunkQueries(queries, b.cfg.MaxQueryLen)
	if len(chunks) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var mentions []domain.Mention
	for _, chunk := range chunks {
		q := chunk
		if !cutoff.IsZero() {
			q += " after:" + cutoff.UTC().Format("2006-01-02")
		}

		got, err := b.runEngines(ctx, q, cutoff, seen)
		mentions = append(mentions, got...)
		if err != nil {
			return mentions, err
		}
	}
	return mentions, nil
}

func (b *APIB) runEngines(ctx context.Context, q string, cutoff time.Time, seen map[string]struct{}) ([]domain.Mention, error) {
	var mentions []domain.Mention
	for _, engine := range b.cfg.Engines {
		got, err := b.search(ctx, q, engine, cutoff, seen)
		if err != nil {
			if isQuotaError(err) {
				slog.Warn("search quota exhausted", "provider", b.Name(), "engine", engine)
				return mentions, fmt.Errorf("%s engine %s: %w", b.Name(), engine, ErrQuotaExhausted)
			}
			slog.Warn("engine failed, trying next", "provider", b.Name(), "engine", engine, "error", err)
			continue
		}
		mentions = append(mentions, got...)
		if len(got) > 0 {
			break
		}
		slog.Debug("engine returned nothing, falling back", "provider", b.Name(), "engine", engine)
	}
	return mentions, nil
}

func (b *APIB) search(ctx context.Context, q, engine string, cutoff time.Time, seen map[string]struct{}) ([]domain.Mention, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("engine", engine)
	if bucket := timeBucket(cutoff); bucket != "" {
		params.Set("time_range", bucket)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusPaymentRequired {
		return nil, fmt.Errorf("search status %d: quota", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed apibResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("search error: %s", parsed.Error)
	}

	var mentions []domain.Mention
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		normalized, err := urlutil.Normalize(r.URL)
		if err != nil {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}

		var published *time.Time
		if r.Date != "" {
			if t, err := dates.Parse(r.Date); err == nil {
				if !cutoff.IsZero() && t.Before(cutoff) {
					continue
				}
				published = &t
			}
		}

		platform := r.Source
		if platform == "" {
			platform = urlutil.PlatformLabel(r.URL)
		}
		mentions = append(mentions, domain.Mention{
			Title:          r.Title,
			Link:           r.URL,
			NormalizedLink: normalized,
			PublishedAt:    published,
			Platform:       platform,
			Teaser:         r.Snippet,
			Provider:       b.Name(),
		})
	}
	return mentions, nil
}

// chunkQueries packs cleaned keywords into OR-joined groups no longer than
// maxLen. A single keyword longer than maxLen gets its own chunk rather than
// being dropped.
func chunkQueries(queries []string, maxLen int) []string {
	var chunks []string
	var cur strings.Builder
	for _, q := range queries {
		c := textutil.CleanQuery(q)
		if c == "" {
			continue
		}
		if cur.Len() == 0 {
			cur.WriteString(c)
			continue
		}
		if cur.Len()+len(" OR ")+len(c) > maxLen {
			chunks = append(chunks, cur.String())
			cur.Reset()
			cur.WriteString(c)
			continue
		}
		cur.WriteString(" OR ")
		cur.WriteString(c)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// timeBucket maps the cutoff to the engine's coarse relative ranges. The
// exact after: date stays in the query string; the bucket narrows what the
// engine returns in the first place.
func timeBucket(cutoff time.Time) string {
	if cutoff.IsZero() {
		return ""
	}
	age := time.Since(cutoff)
	switch {
	case age <= 24*time.Hour:
		return "d"
	case age <= 7*24*time.Hour:
		return "w"
	case age <= 31*24*time.Hour:
		return "m"
	default:
		return "y"
	}
}

func isQuotaError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
