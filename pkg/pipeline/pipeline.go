// Package pipeline runs one brand scrape end to end: lock, fetch, filter,
// attribute, persist, unlock. Errors never escape Run; they land in the
// RunResult.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"mentionscan/pkg/dedup"
	"mentionscan/pkg/domain"
	"mentionscan/pkg/langfilter"
	"mentionscan/pkg/metrics"
	"mentionscan/pkg/store"
	"mentionscan/pkg/textutil"
)

const upsertBatchSize = 50

// Store is the persistence surface the runner needs. *store.Postgres
// implements it.
type Store interface {
	// GetBrand returns the brand or store.ErrNotFound.
	GetBrand(ctx context.Context, brandID int64) (*domain.Brand, error)
	// TryLockBrand acquires the scrape lock; false means another run holds it.
	TryLockBrand(ctx context.Context, brandID int64) (bool, error)
	UnlockBrand(ctx context.Context, brandID int64) error
	ActiveTopics(ctx context.Context, brandID int64) ([]domain.Topic, error)
	// RecentMentions returns stored mentions newer than since, newest first,
	// capped at limit.
	RecentMentions(ctx context.Context, brandID int64, since time.Time, limit int) ([]domain.Mention, error)
	// UpsertMentions persists a batch keyed (link, topic id) and returns how
	// many rows were written.
	UpsertMentions(ctx context.Context, brandID int64, mentions []domain.Mention) (int, error)
	InsertKeywordMatches(ctx context.Context, matches []domain.KeywordMatch) error
	SetLastScraped(ctx context.Context, brandID int64, at time.Time) error
}

// Fetcher produces the merged mention list for a set of queries.
// *orchestrator.Orchestrator implements it.
type Fetcher interface {
	Fetch(ctx context.Context, queries []string, cutoff time.Time) []domain.Mention
}

// RelevanceFilter drops mentions a classifier rejects. Optional.
type RelevanceFilter interface {
	Filter(ctx context.Context, brandName string, keywords []string, mentions []domain.Mention) []domain.Mention
}

// Options tunes the runner.
type Options struct {
	Deduper      *dedup.Deduper
	Relevance    RelevanceFilter // nil disables the relevance stage
	HistoryDays  int
	HistoryLimit int
}

// Runner executes brand scrape runs.
type Runner struct {
	store Store
	fetch Fetcher
	opts  Options
}

// New wires a runner.
func New(store Store, fetch Fetcher, opts Options) *Runner {
	if opts.Deduper == nil {
		opts.Deduper = dedup.New(0, 0, 0)
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 14
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 500
	}
	return &Runner{store: store, fetch: fetch, opts: opts}
}

// Run scrapes one brand and reports a terminal status. The scrape lock is
// always released, including on panic; the watermark only advances on
// success.
func (r *Runner) Run(ctx context.Context, brandID int64) (result domain.RunResult) {
	runID := uuid.NewString()
	start := time.Now().UTC()
	result = domain.RunResult{BrandID: brandID}
	log := slog.With("run_id", runID, "brand_id", brandID)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("run panicked", "panic", rec)
			result.Status = domain.StatusError
			result.Errors = append(result.Errors, fmt.Sprintf("panic: %v", rec))
		}
		metrics.RunOutcome.WithLabelValues(string(result.Status)).Inc()
		log.Info("run finished", "status", result.Status,
			"found", result.MentionsFound, "saved", result.MentionsSaved)
	}()

	brand, err := r.store.GetBrand(ctx, brandID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			result.Status = domain.StatusNotFound
			return result
		}
		result.Status = domain.StatusError
		result.Errors = append(result.Errors, fmt.Sprintf("load brand: %v", err))
		return result
	}
	result.BrandName = brand.Name

	locked, err := r.store.TryLockBrand(ctx, brandID)
	if err != nil {
		result.Status = domain.StatusError
		result.Errors = append(result.Errors, fmt.Sprintf("lock: %v", err))
		return result
	}
	if !locked {
		result.Status = domain.StatusLocked
		return result
	}
	defer func() {
		if err := r.store.UnlockBrand(context.WithoutCancel(ctx), brandID); err != nil {
			log.Error("unlock failed", "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("unlock: %v", err))
		}
	}()

	topics, err := r.store.ActiveTopics(ctx, brandID)
	if err != nil {
		result.Status = domain.StatusError
		result.Errors = append(result.Errors, fmt.Sprintf("load topics: %v", err))
		return result
	}
	if len(topics) == 0 {
		result.Status = domain.StatusNoTopics
		return result
	}

	queries, keywordTexts := buildQueries(topics)
	result.Keywords = keywordTexts
	if len(queries) == 0 {
		result.Status = domain.StatusNoKeywords
		return result
	}

	cutoff := r.cutoff(brand, start)
	log.Info("run starting", "brand", brand.Name, "queries", len(queries), "cutoff", cutoff)

	mentions := r.fetch.Fetch(ctx, queries, cutoff)
	result.MentionsFound = len(mentions)
	if len(mentions) == 0 {
		result.Status = domain.StatusNoMentions
		return result
	}

	mentions = r.opts.Deduper.NearDuplicates(mentions)
	mentions = r.dropHistorical(ctx, brandID, mentions, log)
	mentions = langfilter.Filter(mentions, brand.Languages)
	if r.opts.Relevance != nil {
		mentions = r.opts.Relevance.Filter(ctx, brand.Name, keywordTexts, mentions)
	}
	if len(mentions) == 0 {
		result.Status = domain.StatusNoMentions
		return result
	}

	mentions, matches := attribute(mentions, topics)

	saved, errs := r.persist(ctx, brandID, mentions, matches)
	result.MentionsSaved = saved
	result.Errors = append(result.Errors, errs...)
	if saved == 0 {
		result.Status = domain.StatusError
		return result
	}

	if err := r.store.SetLastScraped(ctx, brandID, start); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("advance watermark: %v", err))
	}
	result.Status = domain.StatusSuccess
	return result
}

// cutoff is the brand's watermark, or now minus the initial lookback before
// the first run.
func (r *Runner) cutoff(brand *domain.Brand, now time.Time) time.Time {
	if brand.LastScrapedAt != nil {
		return *brand.LastScrapedAt
	}
	days := brand.LookbackDays
	if days <= 0 {
		days = 7
	}
	return now.AddDate(0, 0, -days)
}

func (r *Runner) dropHistorical(ctx context.Context, brandID int64, mentions []domain.Mention, log *slog.Logger) []domain.Mention {
	since := time.Now().UTC().AddDate(0, 0, -r.opts.HistoryDays)
	history, err := r.store.RecentMentions(ctx, brandID, since, r.opts.HistoryLimit)
	if err != nil {
		// fail open; the (link, topic id) upsert still absorbs exact repeats
		log.Warn("history load failed, skipping historical dedup", "error", err)
		return mentions
	}
	return r.opts.Deduper.AgainstHistory(mentions, history)
}

func (r *Runner) persist(ctx context.Context, brandID int64, mentions []domain.Mention, matches []domain.KeywordMatch) (int, []string) {
	var saved int
	var errs []string
	for start := 0; start < len(mentions); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(mentions) {
			end = len(mentions)
		}
		n, err := r.store.UpsertMentions(ctx, brandID, mentions[start:end])
		saved += n
		if err != nil {
			errs = append(errs, fmt.Sprintf("upsert batch at %d: %v", start, err))
		}
	}
	if saved > 0 {
		if err := r.store.InsertKeywordMatches(ctx, matches); err != nil {
			errs = append(errs, fmt.Sprintf("keyword matches: %v", err))
		}
	}
	return saved, errs
}

// buildQueries expands every active keyword through its topic's query
// template and returns the deduplicated query list plus the raw keyword
// texts.
func buildQueries(topics []domain.Topic) (queries []string, keywords []string) {
	seenQuery := make(map[string]struct{})
	seenKeyword := make(map[string]struct{})
	for _, topic := range topics {
		for _, kw := range topic.Keywords {
			if kw.Text == "" {
				continue
			}
			if _, dup := seenKeyword[kw.Text]; !dup {
				seenKeyword[kw.Text] = struct{}{}
				keywords = append(keywords, kw.Text)
			}
			q := kw.Text
			if topic.QueryTemplate != "" {
				q = strings.ReplaceAll(topic.QueryTemplate, "{keyword}", kw.Text)
			}
			if _, dup := seenQuery[q]; dup {
				continue
			}
			seenQuery[q] = struct{}{}
			queries = append(queries, q)
		}
	}
	return queries, keywords
}

// attribute assigns each mention the best-scoring (topic, keyword) pair and
// collects one KeywordMatch per matching pair. A title hit outranks a
// teaser-only hit; longer keywords outrank shorter ones; ties keep the
// earliest topic and keyword so attribution is deterministic. Mentions
// matching nothing fall back to the first topic's first keyword and get no
// match row.
func attribute(mentions []domain.Mention, topics []domain.Topic) ([]domain.Mention, []domain.KeywordMatch) {
	var matches []domain.KeywordMatch
	for i := range mentions {
		m := &mentions[i]
		bestScore := 0
		for _, topic := range topics {
			for _, kw := range topic.Keywords {
				score := matchScore(m, kw.Text)
				if score == 0 {
					continue
				}
				matches = append(matches, domain.KeywordMatch{
					BrandID:        topic.BrandID,
					TopicID:        topic.ID,
					KeywordID:      kw.ID,
					NormalizedLink: m.NormalizedLink,
				})
				if score > bestScore {
					bestScore = score
					m.TopicID = topic.ID
					m.KeywordID = kw.ID
				}
			}
		}
		// Default attribution only; a match row would fabricate provenance
		// for a keyword that never hit.
		if bestScore == 0 {
			m.TopicID = topics[0].ID
			if len(topics[0].Keywords) > 0 {
				m.KeywordID = topics[0].Keywords[0].ID
			}
		}
	}
	return mentions, matches
}

// matchScore weights where the keyword hit: title beats teaser, longer
// keyword text breaks ties.
func matchScore(m *domain.Mention, keyword string) int {
	switch {
	case textutil.KeywordMatches(m.Title, keyword):
		return 1000 + len(keyword)
	case textutil.KeywordMatches(m.Teaser, keyword):
		return 100 + len(keyword)
	default:
		return 0
	}
}
