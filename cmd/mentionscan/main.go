package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mentionscan/pkg/config"
	"mentionscan/pkg/dedup"
	"mentionscan/pkg/domain"
	"mentionscan/pkg/httpclient"
	"mentionscan/pkg/logger"
	"mentionscan/pkg/orchestrator"
	"mentionscan/pkg/pipeline"
	"mentionscan/pkg/providers"
	"mentionscan/pkg/ratelimit"
	"mentionscan/pkg/relevance"
	"mentionscan/pkg/scrape"
	"mentionscan/pkg/scrape/discovery"
	"mentionscan/pkg/scrape/render"
	"mentionscan/pkg/store"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		brandID     = flag.Int64("brand", 0, "Scrape a single brand by id")
		allBrands   = flag.Bool("all", false, "Scrape every active brand")
		metricsAddr = flag.String("metrics-addr", "", "Expose /metrics on this address (e.g. :9100); empty disables")
		skipSchema  = flag.Bool("skip-schema", false, "Skip schema creation on start")
	)
	flag.Parse()

	logger.Init()

	if *brandID == 0 && !*allBrands {
		fmt.Fprintln(os.Stderr, "usage: mentionscan -brand <id> | -all [-config path]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	st := store.New(store.Config{DSN: cfg.Database.DSN})
	if err := st.Connect(ctx); err != nil {
		slog.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if !*skipSchema {
		if err := st.EnsureSchema(ctx); err != nil {
			slog.Error("schema setup failed", "error", err)
			os.Exit(1)
		}
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr)
	}

	runner, err := buildRunner(ctx, cfg, st)
	if err != nil {
		slog.Error("wiring failed", "error", err)
		os.Exit(1)
	}

	start := time.Now()
	var results []domain.RunResult
	if *allBrands {
		ids, err := st.ActiveBrands(ctx)
		if err != nil {
			slog.Error("listing active brands failed", "error", err)
			os.Exit(1)
		}
		for _, id := range ids {
			results = append(results, runner.Run(ctx, id))
		}
	} else {
		results = append(results, runner.Run(ctx, *brandID))
	}

	failed := 0
	for _, res := range results {
		printResult(res)
		if res.Status == domain.StatusError {
			failed++
		}
	}
	slog.Info("all runs finished", "runs", len(results), "failed", failed, "duration", time.Since(start))
	if failed > 0 {
		os.Exit(1)
	}
}

func buildRunner(ctx context.Context, cfg *config.Config, st *store.Postgres) (*pipeline.Runner, error) {
	limits := ratelimit.NewRegistry(cfg.RateLimit, ratelimit.Limit{})

	var ps []providers.Provider
	if cfg.Providers.APIA.Enabled {
		ps = append(ps, providers.NewAPIA(cfg.Providers.APIA))
	}
	if cfg.Providers.APIB.Enabled {
		ps = append(ps, providers.NewAPIB(cfg.Providers.APIB))
	}
	if cfg.Providers.Feed.Enabled {
		ps = append(ps, providers.NewFeed(cfg.Providers.Feed))
	}
	if cfg.Providers.Sites.Enabled {
		engine, err := buildSitesEngine(ctx, cfg, st, limits)
		if err != nil {
			return nil, err
		}
		ps = append(ps, providers.NewSites(engine))
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}
	slog.Info("providers enabled", "providers", providerNames(ps))

	opts := pipeline.Options{
		Deduper: dedup.New(cfg.Dedup.SimilarityThreshold, cfg.Dedup.DayWindow,
			cfg.Dedup.SignatureTokens),
		HistoryDays:  cfg.Dedup.HistoryDays,
		HistoryLimit: cfg.Dedup.HistoryLimit,
	}
	if cfg.Relevance.Enabled {
		opts.Relevance = relevance.New(cfg.Relevance)
	}

	return pipeline.New(st, orchestrator.New(ps...), opts), nil
}

func buildSitesEngine(ctx context.Context, cfg *config.Config, st *store.Postgres, limits *ratelimit.Registry) (*scrape.Engine, error) {
	// file-configured sources plus anything stored in the database
	sources := cfg.Sources
	dbSources, err := st.SourceConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load source configs: %w", err)
	}
	sources = append(sources, dbSources...)
	registry := config.NewSourceRegistry(sources)

	httpCfg := httpclient.Config{
		Timeout:       cfg.HTTP.Timeout(),
		RetryAttempts: cfg.HTTP.RetryAttempts,
		RetryDelay:    cfg.HTTP.RetryDelay(),
	}
	searchClient := httpclient.NewClientWithConfig(httpclient.BrowserClient, httpCfg, limits.ForProfile(ratelimit.ProfileSearch))
	articleClient := httpclient.NewClientWithConfig(httpclient.BrowserClient, httpCfg, limits.ForProfile(ratelimit.ProfileArticle))

	var renderer scrape.PageRenderer
	if cfg.Scrape.Render.Enabled {
		renderer = render.New(cfg.Scrape.Render.Concurrency,
			cfg.Scrape.Render.NavTimeout(), cfg.Scrape.Render.SettleDelay())
	}

	return scrape.NewEngine(registry, discovery.New(searchClient), articleClient, renderer, scrape.Options{
		GlobalConcurrency:    cfg.Scrape.GlobalConcurrency,
		PerDomainConcurrency: cfg.Scrape.PerDomainConcurrency,
		MinContentChars:      cfg.Scrape.MinContentChars,
		BreakerThreshold:     cfg.Scrape.BreakerThreshold,
	}), nil
}

func providerNames(ps []providers.Provider) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name()
	}
	return strings.Join(names, ",")
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server failed", "error", err)
	}
}

func printResult(res domain.RunResult) {
	fmt.Printf("brand %d (%s): %s", res.BrandID, res.BrandName, res.Status)
	if res.Status == domain.StatusSuccess || res.Status == domain.StatusNoMentions {
		fmt.Printf(" found=%d saved=%d", res.MentionsFound, res.MentionsSaved)
	}
	fmt.Println()
	for _, e := range res.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}
