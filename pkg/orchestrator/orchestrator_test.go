package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"mentionscan/pkg/domain"
)

type fakeProvider struct {
	name     string
	mentions []domain.Mention
	err      error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Fetch(ctx context.Context, queries []string, cutoff time.Time) ([]domain.Mention, error) {
	return f.mentions, f.err
}

func TestFetchIsolatesProviderFailure(t *testing.T) {
	good := &fakeProvider{name: "good", mentions: []domain.Mention{
		{Title: "Story", Link: "https://news.example.com/story"},
	}}
	bad := &fakeProvider{name: "bad", err: errors.New("upstream down")}

	out := New(good, bad).Fetch(context.Background(), []string{"acme"}, time.Time{})
	if len(out) != 1 {
		t.Fatalf("got %d mentions, want 1 despite provider failure", len(out))
	}
}

func TestFetchKeepsPartialResultsFromFailedProvider(t *testing.T) {
	partial := &fakeProvider{
		name:     "partial",
		mentions: []domain.Mention{{Title: "Before quota", Link: "https://news.example.com/partial"}},
		err:      errors.New("quota exhausted"),
	}
	out := New(partial).Fetch(context.Background(), []string{"acme"}, time.Time{})
	if len(out) != 1 {
		t.Fatalf("got %d mentions, want partial result kept", len(out))
	}
}

func TestFetchMergeDedupesFirstProviderWins(t *testing.T) {
	a := &fakeProvider{name: "a", mentions: []domain.Mention{
		{Title: "Shared", Link: "https://news.example.com/shared?utm_source=x", Provider: "a"},
	}}
	b := &fakeProvider{name: "b", mentions: []domain.Mention{
		{Title: "Shared", Link: "https://news.example.com/shared", Provider: "b"},
		{Title: "Unique", Link: "https://news.example.com/unique", Provider: "b"},
	}}

	out := New(a, b).Fetch(context.Background(), []string{"acme"}, time.Time{})
	if len(out) != 2 {
		t.Fatalf("got %d mentions, want 2 after merge dedupe", len(out))
	}
	if out[0].Provider != "a" {
		t.Errorf("survivor provider = %q, want first-registered a", out[0].Provider)
	}
}

func TestFetchFillsNormalizedLinkAndPlatform(t *testing.T) {
	p := &fakeProvider{name: "p", mentions: []domain.Mention{
		{Title: "Story", Link: "https://Sub.News.Example.com/story/"},
	}}
	out := New(p).Fetch(context.Background(), []string{"acme"}, time.Time{})
	if len(out) != 1 {
		t.Fatalf("got %d mentions", len(out))
	}
	if out[0].NormalizedLink != "https://sub.news.example.com/story" {
		t.Errorf("normalized link = %q", out[0].NormalizedLink)
	}
	if out[0].Platform != "example.com" {
		t.Errorf("platform = %q", out[0].Platform)
	}
}
