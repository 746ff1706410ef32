// Package config loads YAML configuration with environment overrides and
// hosts the process-wide source-config registry.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"mentionscan/pkg/domain"
	"mentionscan/pkg/ratelimit"
)

const (
	databaseDSNEnv  = "DATABASE_DSN"
	apiAKeyEnv      = "APIA_API_KEY"
	apiBKeyEnv      = "APIB_API_KEY"
	relevanceKeyEnv = "RELEVANCE_API_KEY"
)

// Config holds all settings for the scraping core.
type Config struct {
	Database  DatabaseConfig                     `yaml:"database"`
	HTTP      HTTPConfig                         `yaml:"http"`
	RateLimit map[ratelimit.Profile]ratelimit.Limit `yaml:"rate_limits"`
	Scrape    ScrapeConfig                       `yaml:"scrape"`
	Providers ProvidersConfig                    `yaml:"providers"`
	Dedup     DedupConfig                        `yaml:"dedup"`
	Relevance RelevanceConfig                    `yaml:"relevance"`
	Sources   []domain.SourceConfig              `yaml:"sources"`
}

// DatabaseConfig describes the Postgres connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// HTTPConfig tunes the shared outbound client.
type HTTPConfig struct {
	TimeoutSeconds    int `yaml:"timeout_seconds"`
	RetryAttempts     int `yaml:"retry_attempts"`
	RetryDelaySeconds int `yaml:"retry_delay_seconds"`
}

func (h HTTPConfig) Timeout() time.Duration    { return time.Duration(h.TimeoutSeconds) * time.Second }
func (h HTTPConfig) RetryDelay() time.Duration { return time.Duration(h.RetryDelaySeconds) * time.Second }

// ScrapeConfig tunes the configurable-site engine.
type ScrapeConfig struct {
	GlobalConcurrency    int          `yaml:"global_concurrency"`
	PerDomainConcurrency int          `yaml:"per_domain_concurrency"`
	MinContentChars      int          `yaml:"min_content_chars"`
	BreakerThreshold     int          `yaml:"breaker_threshold"`
	Render               RenderConfig `yaml:"render"`
}

// RenderConfig tunes the headless-browser fallback.
type RenderConfig struct {
	Enabled           bool `yaml:"enabled"`
	Concurrency       int  `yaml:"concurrency"`
	NavTimeoutSeconds int  `yaml:"nav_timeout_seconds"`
	SettleDelayMillis int  `yaml:"settle_delay_millis"`
}

func (r RenderConfig) NavTimeout() time.Duration {
	return time.Duration(r.NavTimeoutSeconds) * time.Second
}

func (r RenderConfig) SettleDelay() time.Duration {
	return time.Duration(r.SettleDelayMillis) * time.Millisecond
}

// ProvidersConfig groups the four provider adapters.
type ProvidersConfig struct {
	APIA APIAConfig `yaml:"api_a"`
	APIB APIBConfig `yaml:"api_b"`
	Feed FeedConfig `yaml:"feed"`
	Sites SitesConfig `yaml:"sites"`
}

// APIAConfig configures the aggregator-search provider.
type APIAConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Endpoint  string   `yaml:"endpoint"`
	APIKey    string   `yaml:"api_key"`
	Languages []string `yaml:"languages"` // degradation sequence source, max 2 used
	PageSize  int      `yaml:"page_size"`
}

// APIBConfig configures the search-engine provider.
type APIBConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Endpoint    string   `yaml:"endpoint"`
	APIKey      string   `yaml:"api_key"`
	MaxQueryLen int      `yaml:"max_query_len"`
	Engines     []string `yaml:"engines"` // primary first, then fallbacks
}

// FeedConfig configures the news-feed search provider.
type FeedConfig struct {
	Enabled     bool   `yaml:"enabled"`
	EndpointTpl string `yaml:"endpoint_template"` // "{keyword}" placeholder
	Workers     int    `yaml:"workers"`
}

// SitesConfig toggles the configurable-site provider.
type SitesConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DedupConfig tunes near-duplicate detection.
type DedupConfig struct {
	SimilarityThreshold int `yaml:"similarity_threshold"` // 0-100 token-set ratio
	DayWindow           int `yaml:"day_window"`
	SignatureTokens     int `yaml:"signature_tokens"`
	HistoryDays         int `yaml:"history_days"`
	HistoryLimit        int `yaml:"history_limit"`
}

// RelevanceConfig configures the optional AI relevance filter.
//
// NOTE: enabled defaults to false and the pipeline honors it as-is. Whether
// the filter should ever run in production is an open product question; the
// toggle is kept explicit instead of hardcoded so flipping it is a config
// change, not a code change.
type RelevanceConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	MaxKeywords int    `yaml:"max_keywords"`
	TeaserChars int    `yaml:"teaser_chars"`
}

// Load reads the YAML file at path (optional) and applies env overrides and
// defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{TimeoutSeconds: 20, RetryAttempts: 3, RetryDelaySeconds: 2},
		RateLimit: map[ratelimit.Profile]ratelimit.Limit{
			ratelimit.ProfileSearch:  {RPS: 0.5, Burst: 1},
			ratelimit.ProfileArticle: {RPS: 2, Burst: 4},
			ratelimit.ProfileFeed:    {RPS: 1, Burst: 2},
			ratelimit.ProfileAPI:     {RPS: 4, Burst: 8},
		},
		Scrape: ScrapeConfig{
			GlobalConcurrency:    16,
			PerDomainConcurrency: 3,
			MinContentChars:      80,
			BreakerThreshold:     5,
			Render: RenderConfig{
				Enabled:           true,
				Concurrency:       2,
				NavTimeoutSeconds: 25,
				SettleDelayMillis: 1500,
			},
		},
		Dedup: DedupConfig{
			SimilarityThreshold: 90,
			DayWindow:           2,
			SignatureTokens:     4,
			HistoryDays:         14,
			HistoryLimit:        500,
		},
		Relevance: RelevanceConfig{
			Enabled:     false,
			Model:       "gpt-4o-mini",
			MaxKeywords: 20,
			TeaserChars: 400,
		},
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(apiAKeyEnv); v != "" {
		c.Providers.APIA.APIKey = v
	}
	if v := os.Getenv(apiBKeyEnv); v != "" {
		c.Providers.APIB.APIKey = v
	}
	if v := os.Getenv(relevanceKeyEnv); v != "" {
		c.Relevance.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Providers.APIB.MaxQueryLen <= 0 {
		c.Providers.APIB.MaxQueryLen = 380
	}
	if len(c.Providers.APIB.Engines) == 0 {
		c.Providers.APIB.Engines = []string{"news", "search"}
	}
	if c.Providers.Feed.Workers <= 0 {
		c.Providers.Feed.Workers = 4
	}
	if c.Providers.APIA.PageSize <= 0 {
		c.Providers.APIA.PageSize = 100
	}
	if c.Relevance.MaxKeywords <= 0 {
		c.Relevance.MaxKeywords = 20
	}
	if c.Relevance.TeaserChars <= 0 {
		c.Relevance.TeaserChars = 400
	}
}
