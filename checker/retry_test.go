package checker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lukemcguire/mdlinkcheck/result"
)

func fastRetryConfig(maxRetries int) Config {
	return Config{
		RequestTimeout: 5 * time.Second,
		RetryPolicy:    RetryPolicy{MaxRetries: maxRetries, BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond},
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()
	if policy.MaxRetries != 0 {
		t.Errorf("expected MaxRetries=0, got %d", policy.MaxRetries)
	}
	if policy.BaseDelay != 1*time.Second {
		t.Errorf("expected BaseDelay=1s, got %v", policy.BaseDelay)
	}
	if policy.MaxDelay != 30*time.Second {
		t.Errorf("expected MaxDelay=30s, got %v", policy.MaxDelay)
	}
}

func TestCheckWithRetry_RetriesOn5xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	v := NewValidator(fastRetryConfig(2), NewHTTPClient(), nil, nil)
	outcome := v.Check(context.Background(), server.URL)

	if outcome.Status != result.StatusValid {
		t.Errorf("expected valid after retries, got %+v", outcome)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestCheckWithRetry_RetriesOn429(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	v := NewValidator(fastRetryConfig(2), NewHTTPClient(), nil, nil)
	outcome := v.Check(context.Background(), server.URL)

	if outcome.Status != result.StatusValid {
		t.Errorf("expected valid after retry, got %+v", outcome)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestCheckWithRetry_NoRetryOn4xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	v := NewValidator(fastRetryConfig(2), NewHTTPClient(), nil, nil)
	outcome := v.Check(context.Background(), server.URL)

	if outcome.Status != result.StatusBroken || outcome.Reason != "404 Not Found" {
		t.Errorf("expected broken 404 Not Found, got %+v", outcome)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("expected 1 attempt (no retry on 404), got %d", got)
	}
}

func TestCheckWithRetry_ExhaustsRetries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	v := NewValidator(fastRetryConfig(2), NewHTTPClient(), nil, nil)
	outcome := v.Check(context.Background(), server.URL)

	if outcome.Status != result.StatusBroken {
		t.Fatalf("expected broken outcome, got %+v", outcome)
	}
	if outcome.Reason != "500 Internal Server Error (after 3 attempts)" {
		t.Errorf("unexpected reason %q", outcome.Reason)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("expected 3 attempts (1 initial + 2 retries), got %d", got)
	}
}

func TestCheckWithRetry_ContextCancellation(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := Config{
		RequestTimeout: 5 * time.Second,
		RetryPolicy:    RetryPolicy{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: time.Second},
	}
	v := NewValidator(cfg, NewHTTPClient(), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	outcome := v.Check(ctx, server.URL)

	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("expected cancellation to cut backoff short, took %v", elapsed)
	}
	if outcome.Status != result.StatusBroken || !strings.HasPrefix(outcome.Reason, "503") {
		t.Errorf("expected last real outcome (503), got %+v", outcome)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", got)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name        string
		outcome     result.LinkOutcome
		status      int
		shouldRetry bool
	}{
		{"timeout", result.Errored(string(result.CategoryTimeout)), 0, true},
		{"connection refused", result.Errored(string(result.CategoryConnectionRefused)), 0, true},
		{"connection reset", result.Errored(string(result.CategoryConnectionReset)), 0, true},
		{"DNS failure", result.Errored(string(result.CategoryDNSFailure)), 0, true},
		{"500 server error", result.Broken("500 Internal Server Error"), 500, true},
		{"429 rate limited", result.Broken("429 Too Many Requests"), 429, true},
		{"404 not found", result.Broken("404 Not Found"), 404, false},
		{"403 forbidden", result.Broken("403 Forbidden"), 403, false},
		{"too many redirects", result.Errored(result.ReasonTooManyRedirects), 0, false},
		{"robots disallowed", result.Errored(result.ReasonRobotsDisallowed), 0, false},
		{"TLS failure", result.Errored(string(result.CategoryTLSFailure)), 0, false},
		{"success", result.Valid(), 200, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.outcome, tt.status); got != tt.shouldRetry {
				t.Errorf("shouldRetry() = %v, want %v", got, tt.shouldRetry)
			}
		})
	}
}
