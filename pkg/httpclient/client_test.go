package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Timeout:       2 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    10 * time.Millisecond,
	}
}

func TestGetRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClientWithConfig(CloudflareClient, testConfig(), nil)
	body, _, err := client.GetString(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetString failed: %v", err)
	}
	if body != "ok" {
		t.Errorf("body = %q, want ok", body)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestGetPaywallNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	client := NewClientWithConfig(BrowserClient, testConfig(), nil)
	_, err := client.Get(context.Background(), server.URL)
	if !errors.Is(err, ErrPaywalled) {
		t.Fatalf("expected ErrPaywalled, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("402 must not be retried; got %d attempts", calls.Load())
	}
}

func TestGetNotFoundNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClientWithConfig(CloudflareClient, testConfig(), nil)
	if _, err := client.Get(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls.Load() != 1 {
		t.Errorf("4xx must not be retried; got %d attempts", calls.Load())
	}
}

func TestGetStringFollowsRedirect(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("landed"))
	}))
	defer final.Close()
	start := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/article", http.StatusFound)
	}))
	defer start.Close()

	client := NewClientWithConfig(CloudflareClient, testConfig(), nil)
	body, finalURL, err := client.GetString(context.Background(), start.URL)
	if err != nil {
		t.Fatalf("GetString failed: %v", err)
	}
	if body != "landed" {
		t.Errorf("body = %q", body)
	}
	if finalURL != final.URL+"/article" {
		t.Errorf("finalURL = %q, want %q", finalURL, final.URL+"/article")
	}
}
