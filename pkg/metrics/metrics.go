// Package metrics exposes the Prometheus instruments shared by the scraping
// core. Label dimensions (provider, domain, status, stage, tier) are part of
// the external contract: dashboards are built against them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentionscan_runs_total",
		Help: "Brand scrape runs by terminal status.",
	}, []string{"status"})

	ProviderOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentionscan_provider_fetches_total",
		Help: "Provider fetches by provider and outcome.",
	}, []string{"provider", "status"})

	ProviderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mentionscan_provider_fetch_seconds",
		Help:    "Provider fetch duration.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"provider"})

	ProviderMentions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentionscan_provider_mentions_total",
		Help: "Mentions returned per provider before merging.",
	}, []string{"provider"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentionscan_http_requests_total",
		Help: "Outbound HTTP requests by domain and result.",
	}, []string{"domain", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mentionscan_http_request_seconds",
		Help:    "Outbound HTTP request duration by domain.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"domain"})

	ExtractionOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentionscan_extractions_total",
		Help: "Extraction attempts by winning tier and result.",
	}, []string{"tier", "result"})

	ExtractionLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mentionscan_extraction_content_chars",
		Help:    "Extracted content length in characters.",
		Buckets: prometheus.ExponentialBuckets(64, 2, 12),
	})

	RenderOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentionscan_render_fallbacks_total",
		Help: "Headless render fallbacks by result.",
	}, []string{"result"})

	DuplicatesRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentionscan_duplicates_removed_total",
		Help: "Mentions dropped by dedup stage (exact, near, history).",
	}, []string{"stage"})

	BreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentionscan_breaker_trips_total",
		Help: "Per-domain circuit breaker trips.",
	}, []string{"domain"})

	FilteredMentions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentionscan_filtered_mentions_total",
		Help: "Mentions dropped by filters (language, relevance, cutoff).",
	}, []string{"filter"})
)
