// Package orchestrator fans a brand's queries out to every enabled provider
// and merges the results. One provider failing never hides what the others
// found.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"mentionscan/pkg/dedup"
	"mentionscan/pkg/domain"
	"mentionscan/pkg/metrics"
	"mentionscan/pkg/providers"
	"mentionscan/pkg/urlutil"
)

// Orchestrator runs providers concurrently and normalizes the merged output.
type Orchestrator struct {
	providers []providers.Provider
}

// New wires an orchestrator over the given providers.
func New(ps ...providers.Provider) *Orchestrator {
	return &Orchestrator{providers: ps}
}

type providerResult struct {
	name     string
	mentions []domain.Mention
	err      error
}

// Fetch runs every provider with the same queries and cutoff. Provider
// errors are logged and counted but treated as empty results; partial
// results returned alongside an error are still merged. The merged list is
// exact-deduplicated by normalized link, first provider wins.
func (o *Orchestrator) Fetch(ctx context.Context, queries []string, cutoff time.Time) []domain.Mention {
	results := make(chan providerResult, len(o.providers))
	for _, p := range o.providers {
		go func(p providers.Provider) {
			start := time.Now()
			mentions, err := p.Fetch(ctx, queries, cutoff)
			metrics.ProviderDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
			results <- providerResult{name: p.Name(), mentions: mentions, err: err}
		}(p)
	}

	byName := make(map[string][]domain.Mention, len(o.providers))
	for range o.providers {
		r := <-results
		if r.err != nil {
			status := "error"
			if errors.Is(r.err, providers.ErrQuotaExhausted) {
				status = "quota"
			}
			metrics.ProviderOutcome.WithLabelValues(r.name, status).Inc()
			slog.Error("provider failed", "provider", r.name, "partial", len(r.mentions), "error", r.err)
		} else {
			metrics.ProviderOutcome.WithLabelValues(r.name, "ok").Inc()
		}
		metrics.ProviderMentions.WithLabelValues(r.name).Add(float64(len(r.mentions)))
		byName[r.name] = r.mentions
	}

	// deterministic merge order: provider registration order
	var merged []domain.Mention
	for _, p := range o.providers {
		merged = append(merged, normalizeAll(byName[p.Name()])...)
	}
	return dedup.ExactByURL(merged)
}

// normalizeAll fills the fields providers are allowed to leave blank.
func normalizeAll(mentions []domain.Mention) []domain.Mention {
	out := mentions[:0]
	for _, m := range mentions {
		if m.NormalizedLink == "" {
			normalized, err := urlutil.Normalize(m.Link)
			if err != nil {
				slog.Debug("dropping mention with unparsable link", "link", m.Link)
				continue
			}
			m.NormalizedLink = normalized
		}
		if m.Platform == "" {
			m.Platform = urlutil.PlatformLabel(m.NormalizedLink)
		}
		out = append(out, m)
	}
	return out
}
