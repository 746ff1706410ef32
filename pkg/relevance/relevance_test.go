package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"mentionscan/pkg/config"
	"mentionscan/pkg/domain"
)

func newChecker(endpoint string) *Checker {
	return New(config.RelevanceConfig{
		Enabled:     true,
		Endpoint:    endpoint,
		APIKey:      "k",
		Model:       "gpt-4o-mini",
		MaxKeywords: 20,
		TeaserChars: 400,
	})
}

func chatAnswer(answer string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"role":"assistant","content":%q}}]}`, answer)
}

func TestFilterDropsNo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages    []struct{ Content string } `json:"messages"`
			Temperature float64                    `json:"temperature"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Temperature != 0 {
			t.Errorf("temperature = %v, want 0", req.Temperature)
		}
		if strings.Contains(req.Messages[1].Content, "Unrelated apple story") {
			fmt.Fprint(w, chatAnswer("No"))
			return
		}
		fmt.Fprint(w, chatAnswer("Yes"))
	}))
	defer srv.Close()

	in := []domain.Mention{
		{Title: "Acme ships a widget", NormalizedLink: "https://a.example.com/1"},
		{Title: "Unrelated apple story", NormalizedLink: "https://a.example.com/2"},
	}
	out := newChecker(srv.URL).Filter(context.Background(), "Acme", []string{"acme"}, in)
	if len(out) != 1 {
		t.Fatalf("kept %d mentions, want 1", len(out))
	}
	if out[0].Title != "Acme ships a widget" {
		t.Errorf("survivor = %q", out[0].Title)
	}
}

func TestFilterFailsOpenOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	in := []domain.Mention{{Title: "Acme ships a widget", NormalizedLink: "https://a.example.com/1"}}
	out := newChecker(srv.URL).Filter(context.Background(), "Acme", []string{"acme"}, in)
	if len(out) != 1 {
		t.Fatalf("kept %d mentions, want 1 (fail open)", len(out))
	}
}

func TestTruncateRunesKeepsValidUTF8(t *testing.T) {
	s := "résumé coverage of the launch"
	for n := 0; n <= len(s); n++ {
		got := truncateRunes(s, n)
		if len(got) > n {
			t.Fatalf("truncateRunes(%q, %d) = %d bytes", s, n, len(got))
		}
		if !utf8.ValidString(got) {
			t.Fatalf("truncateRunes(%q, %d) = %q, invalid UTF-8", s, n, got)
		}
	}
	if got := truncateRunes("short", 400); got != "short" {
		t.Errorf("truncateRunes under limit = %q", got)
	}
}

func TestFilterFailsOpenOnAmbiguousAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatAnswer("I am not sure"))
	}))
	defer srv.Close()

	in := []domain.Mention{{Title: "Acme ships a widget", NormalizedLink: "https://a.example.com/1"}}
	out := newChecker(srv.URL).Filter(context.Background(), "Acme", []string{"acme"}, in)
	if len(out) != 1 {
		t.Fatalf("kept %d mentions, want 1 (ambiguous answer keeps)", len(out))
	}
}
