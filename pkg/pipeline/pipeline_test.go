package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"mentionscan/pkg/domain"
	"mentionscan/pkg/store"
)

type fakeStore struct {
	brand       *domain.Brand
	brandErr    error
	lockHeld    bool
	topics      []domain.Topic
	history     []domain.Mention
	upsertErr   error
	saved       []domain.Mention
	matches     []domain.KeywordMatch
	unlocked    bool
	watermarkAt *time.Time
}

func (s *fakeStore) GetBrand(ctx context.Context, brandID int64) (*domain.Brand, error) {
	if s.brandErr != nil {
		return nil, s.brandErr
	}
	if s.brand == nil {
		return nil, store.ErrNotFound
	}
	return s.brand, nil
}

func (s *fakeStore) TryLockBrand(ctx context.Context, brandID int64) (bool, error) {
	if s.lockHeld {
		return false, nil
	}
	s.lockHeld = true
	return true, nil
}

func (s *fakeStore) UnlockBrand(ctx context.Context, brandID int64) error {
	s.unlocked = true
	s.lockHeld = false
	return nil
}

func (s *fakeStore) ActiveTopics(ctx context.Context, brandID int64) ([]domain.Topic, error) {
	return s.topics, nil
}

func (s *fakeStore) RecentMentions(ctx context.Context, brandID int64, since time.Time, limit int) ([]domain.Mention, error) {
	return s.history, nil
}

func (s *fakeStore) UpsertMentions(ctx context.Context, brandID int64, mentions []domain.Mention) (int, error) {
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	s.saved = append(s.saved, mentions...)
	return len(mentions), nil
}

func (s *fakeStore) InsertKeywordMatches(ctx context.Context, matches []domain.KeywordMatch) error {
	s.matches = append(s.matches, matches...)
	return nil
}

func (s *fakeStore) SetLastScraped(ctx context.Context, brandID int64, at time.Time) error {
	s.watermarkAt = &at
	return nil
}

type fakeFetcher struct {
	mentions []domain.Mention
	queries  []string
	cutoff   time.Time
}

func (f *fakeFetcher) Fetch(ctx context.Context, queries []string, cutoff time.Time) []domain.Mention {
	f.queries = queries
	f.cutoff = cutoff
	return f.mentions
}

func testBrand() *domain.Brand {
	return &domain.Brand{ID: 1, Name: "Acme", Active: true, LookbackDays: 7}
}

func testTopics() []domain.Topic {
	return []domain.Topic{
		{ID: 10, BrandID: 1, Name: "Product", Active: true, Keywords: []domain.Keyword{
			{ID: 100, Text: "acme"},
			{ID: 101, Text: "acme widget"},
		}},
		{ID: 11, BrandID: 1, Name: "Corporate", Active: true, Keywords: []domain.Keyword{
			{ID: 110, Text: "acme corp"},
		}},
	}
}

func TestRunBrandNotFound(t *testing.T) {
	r := New(&fakeStore{}, &fakeFetcher{}, Options{})
	res := r.Run(context.Background(), 1)
	if res.Status != domain.StatusNotFound {
		t.Fatalf("status = %q, want not_found", res.Status)
	}
}

func TestRunBrandLoadFailureIsError(t *testing.T) {
	st := &fakeStore{brandErr: errors.New("connection refused")}
	res := New(st, &fakeFetcher{}, Options{}).Run(context.Background(), 1)
	if res.Status != domain.StatusError {
		t.Fatalf("status = %q, want error: a store outage is not a missing brand", res.Status)
	}
	if len(res.Errors) == 0 {
		t.Error("error detail missing")
	}
}

func TestRunLocked(t *testing.T) {
	st := &fakeStore{brand: testBrand(), lockHeld: true}
	res := New(st, &fakeFetcher{}, Options{}).Run(context.Background(), 1)
	if res.Status != domain.StatusLocked {
		t.Fatalf("status = %q, want locked", res.Status)
	}
	if st.unlocked {
		t.Error("a locked run must not release the other run's lock")
	}
}

func TestRunNoTopics(t *testing.T) {
	st := &fakeStore{brand: testBrand()}
	res := New(st, &fakeFetcher{}, Options{}).Run(context.Background(), 1)
	if res.Status != domain.StatusNoTopics {
		t.Fatalf("status = %q, want no_topics", res.Status)
	}
	if !st.unlocked {
		t.Error("lock not released")
	}
}

func TestRunNoKeywords(t *testing.T) {
	st := &fakeStore{brand: testBrand(), topics: []domain.Topic{
		{ID: 10, BrandID: 1, Active: true},
	}}
	res := New(st, &fakeFetcher{}, Options{}).Run(context.Background(), 1)
	if res.Status != domain.StatusNoKeywords {
		t.Fatalf("status = %q, want no_keywords", res.Status)
	}
}

func TestRunNoMentions(t *testing.T) {
	st := &fakeStore{brand: testBrand(), topics: testTopics()}
	res := New(st, &fakeFetcher{}, Options{}).Run(context.Background(), 1)
	if res.Status != domain.StatusNoMentions {
		t.Fatalf("status = %q, want no_mentions", res.Status)
	}
	if st.watermarkAt != nil {
		t.Error("watermark must not advance without saved mentions")
	}
}

func TestRunLookbackCutoff(t *testing.T) {
	st := &fakeStore{brand: testBrand(), topics: testTopics()}
	f := &fakeFetcher{}
	New(st, f, Options{}).Run(context.Background(), 1)

	want := time.Now().UTC().AddDate(0, 0, -7)
	if diff := f.cutoff.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want about 7 days back", f.cutoff)
	}
}

func TestRunWatermarkCutoff(t *testing.T) {
	mark := time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC)
	brand := testBrand()
	brand.LastScrapedAt = &mark
	st := &fakeStore{brand: brand, topics: testTopics()}
	f := &fakeFetcher{}
	New(st, f, Options{}).Run(context.Background(), 1)

	if !f.cutoff.Equal(mark) {
		t.Errorf("cutoff = %v, want watermark %v", f.cutoff, mark)
	}
}

func TestRunSuccess(t *testing.T) {
	pub := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	st := &fakeStore{brand: testBrand(), topics: testTopics()}
	f := &fakeFetcher{mentions: []domain.Mention{
		{Title: "Acme widget reviewed", NormalizedLink: "https://news.example.com/widget", PublishedAt: &pub, Provider: "api_a"},
		{Title: "Acme corp earnings call", NormalizedLink: "https://news.example.com/earnings", PublishedAt: &pub, Provider: "feed"},
	}}

	start := time.Now().UTC()
	res := New(st, f, Options{}).Run(context.Background(), 1)
	if res.Status != domain.StatusSuccess {
		t.Fatalf("status = %q (errors %v), want success", res.Status, res.Errors)
	}
	if res.MentionsFound != 2 || res.MentionsSaved != 2 {
		t.Errorf("found/saved = %d/%d, want 2/2", res.MentionsFound, res.MentionsSaved)
	}
	if !st.unlocked {
		t.Error("lock not released")
	}
	if st.watermarkAt == nil {
		t.Fatal("watermark not advanced")
	}
	if st.watermarkAt.Before(start.Add(-time.Minute)) {
		t.Errorf("watermark = %v, want run start", st.watermarkAt)
	}
	if len(st.matches) == 0 {
		t.Error("no keyword matches recorded")
	}
}

func TestRunAttributionPrefersLongerTitleMatch(t *testing.T) {
	pub := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	st := &fakeStore{brand: testBrand(), topics: testTopics()}
	f := &fakeFetcher{mentions: []domain.Mention{
		{Title: "Acme widget ships worldwide", NormalizedLink: "https://news.example.com/ship", PublishedAt: &pub},
	}}

	res := New(st, f, Options{}).Run(context.Background(), 1)
	if res.Status != domain.StatusSuccess {
		t.Fatalf("status = %q", res.Status)
	}
	m := st.saved[0]
	if m.TopicID != 10 || m.KeywordID != 101 {
		t.Errorf("attributed (topic %d, keyword %d), want (10, 101) for the longer title match", m.TopicID, m.KeywordID)
	}
}

func TestRunAttributionFallback(t *testing.T) {
	pub := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	st := &fakeStore{brand: testBrand(), topics: testTopics()}
	f := &fakeFetcher{mentions: []domain.Mention{
		{Title: "Widget industry roundup", NormalizedLink: "https://news.example.com/roundup", PublishedAt: &pub},
	}}

	res := New(st, f, Options{}).Run(context.Background(), 1)
	if res.Status != domain.StatusSuccess {
		t.Fatalf("status = %q", res.Status)
	}
	m := st.saved[0]
	if m.TopicID != 10 || m.KeywordID != 100 {
		t.Errorf("fallback attribution (topic %d, keyword %d), want first topic's first keyword (10, 100)", m.TopicID, m.KeywordID)
	}
	if len(st.matches) != 0 {
		t.Errorf("recorded %d match rows for a mention no keyword hit, want none", len(st.matches))
	}
}

func TestRunHistoricalDedup(t *testing.T) {
	pub := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	st := &fakeStore{
		brand:  testBrand(),
		topics: testTopics(),
		history: []domain.Mention{
			{Title: "Acme widget reviewed", NormalizedLink: "https://news.example.com/widget"},
		},
	}
	f := &fakeFetcher{mentions: []domain.Mention{
		{Title: "Acme widget reviewed", NormalizedLink: "https://news.example.com/widget", PublishedAt: &pub},
	}}

	res := New(st, f, Options{}).Run(context.Background(), 1)
	if res.Status != domain.StatusNoMentions {
		t.Fatalf("status = %q, want no_mentions after historical dedup", res.Status)
	}
}

func TestRunUpsertFailure(t *testing.T) {
	pub := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	st := &fakeStore{brand: testBrand(), topics: testTopics(), upsertErr: errors.New("db down")}
	f := &fakeFetcher{mentions: []domain.Mention{
		{Title: "Acme widget reviewed", NormalizedLink: "https://news.example.com/widget", PublishedAt: &pub},
	}}

	res := New(st, f, Options{}).Run(context.Background(), 1)
	if res.Status != domain.StatusError {
		t.Fatalf("status = %q, want error", res.Status)
	}
	if len(res.Errors) == 0 {
		t.Error("error detail missing")
	}
	if !st.unlocked {
		t.Error("lock not released on failure")
	}
	if st.watermarkAt != nil {
		t.Error("watermark must not advance on failure")
	}
}

func TestRunQueryTemplate(t *testing.T) {
	st := &fakeStore{brand: testBrand(), topics: []domain.Topic{
		{ID: 10, BrandID: 1, Active: true, QueryTemplate: `"{keyword}" review`, Keywords: []domain.Keyword{
			{ID: 100, Text: "acme"},
		}},
	}}
	f := &fakeFetcher{}
	New(st, f, Options{}).Run(context.Background(), 1)

	if len(f.queries) != 1 || f.queries[0] != `"acme" review` {
		t.Errorf("queries = %v, want template-substituted query", f.queries)
	}
}
