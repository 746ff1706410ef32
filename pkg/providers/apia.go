package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mentionscan/pkg/config"
	"mentionscan/pkg/dates"
	"mentionscan/pkg/domain"
	"mentionscan/pkg/metrics"
	"mentionscan/pkg/textutil"
	"mentionscan/pkg/urlutil"
)

// APIA is the aggregator-search provider: one HTTP query with OR-joined
// keywords. Some accounts reject certain language filter combinations with
// HTTP 400, so the language filter degrades across a fixed attempt sequence:
// combined languages, first language, second language, no filter.
type APIA struct {
	cfg    config.APIAConfig
	client *http.Client
}

// NewAPIA creates the aggregator-search adapter.
func NewAPIA(cfg config.APIAConfig) *APIA {
	return &APIA{
		cfg:    cfg,
		client: &http.Client{Timeout: 20 * time.Second},
	}
}

func (a *APIA) Name() string { return "api_a" }

type apiaResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Description string `json:"description"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Fetch issues the search with language-filter degradation and applies the
// cutoff strictly, counting missing, unparseable, and too-old results
// separately.
func (a *APIA) Fetch(ctx context.Context, queries []string, cutoff time.Time) ([]domain.Mention, error) {
	q := orJoin(queries)
	if q == "" {
		return nil, nil
	}

	var resp *apiaResponse
	var lastErr error
	for _, langs := range a.languageAttempts() {
		r, status, err := a.search(ctx, q, langs, cutoff)
		if err == nil {
			resp = r
			break
		}
		lastErr = err
		if status != http.StatusBadRequest {
			return nil, err
		}
		slog.Debug("language filter rejected, degrading", "provider", a.Name(), "languages", langs)
	}
	if resp == nil {
		return nil, fmt.Errorf("all language attempts failed: %w", lastErr)
	}

	var mentions []domain.Mention
	var missing, unparseable, tooOld int
	for _, art := range resp.Articles {
		if art.URL == "" {
			continue
		}
		var published *time.Time
		switch {
		case art.PublishedAt == "":
			missing++
			continue
		default:
			t, err := dates.Parse(art.PublishedAt)
			if err != nil {
				unparseable++
				continue
			}
			if t.Before(cutoff) {
				tooOld++
				continue
			}
			published = &t
		}

		normalized, err := urlutil.Normalize(art.URL)
		if err != nil {
			continue
		}
		mentions = append(mentions, domain.Mention{
			Title:          art.Title,
			Link:           art.URL,
			NormalizedLink: normalized,
			PublishedAt:    published,
			Platform:       art.Source.Name,
			Teaser:         art.Description,
			Provider:       a.Name(),
		})
	}

	if missing+unparseable+tooOld > 0 {
		slog.Debug("date filtering", "provider", a.Name(),
			"missing", missing, "unparseable", unparseable, "too_old", tooOld)
		metrics.FilteredMentions.WithLabelValues("cutoff").Add(float64(tooOld))
	}
	return mentions, nil
}

// languageAttempts is the fixed degradation sequence; empty string means no
// language filter.
func (a *APIA) languageAttempts() []string {
	langs := a.cfg.Languages
	switch {
	case len(langs) >= 2:
		return []string{langs[0] + "," + langs[1], langs[0], langs[1], ""}
	case len(langs) == 1:
		return []string{langs[0], ""}
	default:
		return []string{""}
	}
}

func (a *APIA) search(ctx context.Context, q, langs string, cutoff time.Time) (*apiaResponse, int, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", fmt.Sprint(a.cfg.PageSize))
	if !cutoff.IsZero() {
		params.Set("from", cutoff.UTC().Format(time.RFC3339))
	}
	if langs != "" {
		params.Set("language", langs)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-Api-Key", a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, resp.StatusCode, fmt.Errorf("search status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed apiaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return &parsed, resp.StatusCode, nil
}

func orJoin(queries []string) string {
	cleaned := make([]string, 0, len(queries))
	for _, q := range queries {
		if c := textutil.CleanQuery(q); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return strings.Join(cleaned, " OR ")
}
