// Package ratelimit provides a process-wide registry of token buckets keyed
// by (traffic profile, domain). Buckets are created lazily and live for the
// process lifetime; there is no teardown.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Profile names a traffic class with its own bucket parameters, e.g. search
// result pages vs article fetches.
type Profile string

const (
	ProfileSearch  Profile = "search"
	ProfileArticle Profile = "article"
	ProfileFeed    Profile = "feed"
	ProfileAPI     Profile = "api"
)

// Limit describes one profile's token bucket.
type Limit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Registry hands out per-(profile, domain) limiters.
type Registry struct {
	mu       sync.Mutex
	limits   map[Profile]Limit
	fallback Limit
	buckets  map[string]*rate.Limiter
}

// NewRegistry creates a registry with per-profile limits. Profiles without an
// entry use fallback.
func NewRegistry(limits map[Profile]Limit, fallback Limit) *Registry {
	if fallback.RPS <= 0 {
		fallback = Limit{RPS: 1, Burst: 2}
	}
	if fallback.Burst <= 0 {
		fallback.Burst = 1
	}
	return &Registry{
		limits:   limits,
		fallback: fallback,
		buckets:  make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the (profile, domain) bucket grants a token or ctx ends.
func (r *Registry) Wait(ctx context.Context, profile Profile, domain string) error {
	return r.limiter(profile, domain).Wait(ctx)
}

// ForProfile adapts the registry to the httpclient.Limiter interface with the
// profile fixed.
func (r *Registry) ForProfile(profile Profile) *ProfileLimiter {
	return &ProfileLimiter{registry: r, profile: profile}
}

func (r *Registry) limiter(profile Profile, domain string) *rate.Limiter {
	key := string(profile) + "|" + domain

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.buckets[key]; ok {
		return l
	}
	lim, ok := r.limits[profile]
	if !ok || lim.RPS <= 0 {
		lim = r.fallback
	}
	if lim.Burst <= 0 {
		lim.Burst = 1
	}
	l := rate.NewLimiter(rate.Limit(lim.RPS), lim.Burst)
	r.buckets[key] = l
	return l
}

// ProfileLimiter is a Registry view bound to one traffic profile.
type ProfileLimiter struct {
	registry *Registry
	profile  Profile
}

// Wait implements httpclient.Limiter.
func (p *ProfileLimiter) Wait(ctx context.Context, domain string) error {
	return p.registry.Wait(ctx, p.profile, domain)
}
