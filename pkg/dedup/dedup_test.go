package dedup

import (
	"testing"
	"time"

	"mentionscan/pkg/domain"
)

func datePtr(t time.Time) *time.Time { return &t }

func TestExactByURLKeepsFirstSeen(t *testing.T) {
	in := []domain.Mention{
		{Title: "Acme launches", NormalizedLink: "https://news.example.com/acme", Provider: "api_a"},
		{Title: "Acme launches (copy)", NormalizedLink: "https://news.example.com/acme", Provider: "feed"},
		{Title: "Other story", NormalizedLink: "https://news.example.com/other"},
	}
	out := ExactByURL(in)
	if len(out) != 2 {
		t.Fatalf("got %d mentions, want 2", len(out))
	}
	if out[0].Provider != "api_a" {
		t.Errorf("survivor provider = %q, want first-seen api_a", out[0].Provider)
	}
}

func TestNearDuplicatesSameDomain(t *testing.T) {
	day := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	in := []domain.Mention{
		{Title: "Acme Corp launches new widget line", Link: "https://news.example.com/a", PublishedAt: datePtr(day)},
		{Title: "Acme Corp launches new widget line today", Link: "https://news.example.com/b", PublishedAt: datePtr(day.Add(24 * time.Hour))},
	}
	out := New(90, 2, 4).NearDuplicates(in)
	if len(out) != 1 {
		t.Fatalf("got %d mentions, want 1", len(out))
	}
}

func TestNearDuplicatesOutsideDayWindowKept(t *testing.T) {
	day := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	in := []domain.Mention{
		{Title: "Acme Corp launches new widget line", Link: "https://news.example.com/a", PublishedAt: datePtr(day)},
		{Title: "Acme Corp launches new widget line today", Link: "https://news.example.com/b", PublishedAt: datePtr(day.Add(10 * 24 * time.Hour))},
	}
	out := New(90, 2, 4).NearDuplicates(in)
	if len(out) != 2 {
		t.Fatalf("got %d mentions, want 2 (outside day window)", len(out))
	}
}

func TestNearDuplicatesMissingDateIgnoresWindow(t *testing.T) {
	day := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	in := []domain.Mention{
		{Title: "Acme Corp launches new widget line", Link: "https://news.example.com/a", PublishedAt: datePtr(day)},
		{Title: "Acme Corp launches new widget line today", Link: "https://news.example.com/b"},
	}
	out := New(90, 2, 4).NearDuplicates(in)
	if len(out) != 1 {
		t.Fatalf("got %d mentions, want 1 (window skipped when date missing)", len(out))
	}
}

func TestNearDuplicatesDifferentDomainsKept(t *testing.T) {
	in := []domain.Mention{
		{Title: "Acme Corp launches new widget line", Link: "https://news.example.com/a"},
		{Title: "Acme Corp launches new widget line", Link: "https://blog.other.com/b"},
	}
	out := New(90, 2, 4).NearDuplicates(in)
	if len(out) != 2 {
		t.Fatalf("got %d mentions, want 2 (blocking key separates domains)", len(out))
	}
}

func TestAgainstHistory(t *testing.T) {
	history := []domain.Mention{
		{Title: "Acme quarterly results announced", NormalizedLink: "https://news.example.com/q2"},
	}
	in := []domain.Mention{
		{Title: "Acme quarterly results announced", NormalizedLink: "https://news.example.com/q2"},
		{Title: "Acme quarterly results announced early", NormalizedLink: "https://news.example.com/q2-early"},
		{Title: "Completely unrelated widget story", NormalizedLink: "https://news.example.com/widgets"},
	}
	out := New(90, 2, 4).AgainstHistory(in, history)
	if len(out) != 1 {
		t.Fatalf("got %d mentions, want 1", len(out))
	}
	if out[0].NormalizedLink != "https://news.example.com/widgets" {
		t.Errorf("survivor = %q", out[0].NormalizedLink)
	}
}
