package config

import (
	"strings"
	"sync"

	"mentionscan/pkg/domain"
)

// SourceRegistry resolves a SourceConfig for a host, walking subdomains up to
// the parent domain (a.b.example.com -> b.example.com -> example.com).
// Lookups are cached for the process lifetime.
type SourceRegistry struct {
	mu       sync.RWMutex
	byDomain map[string]domain.SourceConfig
	cache    map[string]*domain.SourceConfig // nil value = known miss
}

// NewSourceRegistry builds a registry from configured sources.
func NewSourceRegistry(sources []domain.SourceConfig) *SourceRegistry {
	byDomain := make(map[string]domain.SourceConfig, len(sources))
	for _, s := range sources {
		byDomain[strings.ToLower(s.Domain)] = s
	}
	return &SourceRegistry{
		byDomain: byDomain,
		cache:    make(map[string]*domain.SourceConfig),
	}
}

// Lookup returns the config for host or the closest configured parent domain.
func (r *SourceRegistry) Lookup(host string) (domain.SourceConfig, bool) {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))

	r.mu.RLock()
	cached, seen := r.cache[host]
	r.mu.RUnlock()
	if seen {
		if cached == nil {
			return domain.SourceConfig{}, false
		}
		return *cached, true
	}

	candidate := host
	for {
		if cfg, ok := r.byDomain[candidate]; ok {
			r.store(host, &cfg)
			return cfg, true
		}
		i := strings.Index(candidate, ".")
		if i < 0 || !strings.Contains(candidate[i+1:], ".") {
			break
		}
		candidate = candidate[i+1:]
	}

	r.store(host, nil)
	return domain.SourceConfig{}, false
}

// All returns every configured source.
func (r *SourceRegistry) All() []domain.SourceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SourceConfig, 0, len(r.byDomain))
	for _, s := range r.byDomain {
		out = append(out, s)
	}
	return out
}

func (r *SourceRegistry) store(host string, cfg *domain.SourceConfig) {
	r.mu.Lock()
	r.cache[host] = cfg
	r.mu.Unlock()
}
