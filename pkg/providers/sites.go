package providers

import (
	"context"
	"time"

	"mentionscan/pkg/domain"
	"mentionscan/pkg/scrape"
)

// Sites adapts the configurable-site scrape engine to the Provider
// interface. The engine already implements Fetch; this wrapper only supplies
// the name so the orchestrator can label its metrics and logs.
type Sites struct {
	engine *scrape.Engine
}

// NewSites wraps a scrape engine.
func NewSites(engine *scrape.Engine) *Sites {
	return &Sites{engine: engine}
}

func (s *Sites) Name() string { return scrape.ProviderName }

func (s *Sites) Fetch(ctx context.Context, queries []string, cutoff time.Time) ([]domain.Mention, error) {
	return s.engine.Fetch(ctx, queries, cutoff)
}
