// Package relevance asks an OpenAI-compatible chat endpoint whether each
// mention is actually about the brand. Any failure keeps the mention: the
// filter only removes what the model confidently rejects.
package relevance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"log/slog"

	"mentionscan/pkg/config"
	"mentionscan/pkg/domain"
	"mentionscan/pkg/metrics"
)

const maxConcurrent = 8

// Checker classifies mentions against a brand's keyword context.
type Checker struct {
	cfg    config.RelevanceConfig
	client *http.Client
}

// New creates a checker from config.
func New(cfg config.RelevanceConfig) *Checker {
	return &Checker{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Filter classifies mentions concurrently and drops the ones the model
// answered "no" for. Errors and ambiguous answers keep the mention.
func (c *Checker) Filter(ctx context.Context, brandName string, keywords []string, mentions []domain.Mention) []domain.Mention {
	if len(mentions) == 0 {
		return mentions
	}

	relevant := make([]bool, len(mentions))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for i := range mentions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			relevant[i] = c.check(ctx, brandName, keywords, mentions[i])
		}(i)
	}
	wg.Wait()

	out := mentions[:0:0]
	for i, m := range mentions {
		if relevant[i] {
			out = append(out, m)
			continue
		}
		slog.Debug("relevance filtered", "title", m.Title, "link", m.NormalizedLink)
		metrics.FilteredMentions.WithLabelValues("relevance").Inc()
	}
	return out
}

func (c *Checker) check(ctx context.Context, brandName string, keywords []string, m domain.Mention) bool {
	answer, err := c.ask(ctx, c.prompt(brandName, keywords, m))
	if err != nil {
		slog.Warn("relevance check failed, keeping mention", "link", m.NormalizedLink, "error", err)
		return true
	}
	return !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "no")
}

func (c *Checker) prompt(brandName string, keywords []string, m domain.Mention) string {
	if len(keywords) > c.cfg.MaxKeywords {
		keywords = keywords[:c.cfg.MaxKeywords]
	}
	teaser := truncateRunes(m.Teaser, c.cfg.TeaserChars)

	var b strings.Builder
	fmt.Fprintf(&b, "Brand: %s\n", brandName)
	fmt.Fprintf(&b, "Tracked keywords: %s\n", strings.Join(keywords, ", "))
	fmt.Fprintf(&b, "Article title: %s\n", m.Title)
	if teaser != "" {
		fmt.Fprintf(&b, "Article teaser: %s\n", teaser)
	}
	b.WriteString("Is this article about the brand above? Answer only yes or no.")
	return b.String()
}

// truncateRunes cuts s to at most n bytes without splitting a multi-byte
// rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (c *Checker) ask(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You classify whether news articles mention a specific brand. Answer only yes or no."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   5,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("chat error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
