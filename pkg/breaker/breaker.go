// Package breaker implements the per-domain circuit breaker used while
// scraping configured sites: after a fixed number of consecutive extraction
// failures, all further URLs for that domain are skipped for the rest of the
// run. A Registry is scoped to one run.
package breaker

import (
	"sync"

	"mentionscan/pkg/metrics"
)

// DefaultThreshold is the consecutive-failure count that opens a domain.
const DefaultThreshold = 5

// Registry tracks consecutive failures per domain.
type Registry struct {
	mu        sync.Mutex
	threshold int
	failures  map[string]int
	open      map[string]bool
}

// NewRegistry creates a breaker registry. threshold <= 0 uses DefaultThreshold.
func NewRegistry(threshold int) *Registry {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Registry{
		threshold: threshold,
		failures:  make(map[string]int),
		open:      make(map[string]bool),
	}
}

// Allow reports whether the domain may still be attempted.
func (r *Registry) Allow(domain string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.open[domain]
}

// Failure records one failed attempt. Returns true when this failure tripped
// the breaker open.
func (r *Registry) Failure(domain string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open[domain] {
		return false
	}
	r.failures[domain]++
	if r.failures[domain] >= r.threshold {
		r.open[domain] = true
		metrics.BreakerTrips.WithLabelValues(domain).Inc()
		return true
	}
	return false
}

// Success resets the consecutive-failure count for the domain.
func (r *Registry) Success(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open[domain] {
		r.failures[domain] = 0
	}
}
