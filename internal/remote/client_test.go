package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastClient(server *httptest.Server) *apiClient {
	client := newAPIClient(server.Client())
	client.baseDelay = time.Millisecond
	client.maxDelay = 5 * time.Millisecond
	return client
}

func TestDoJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := fastClient(server).doJSON(context.Background(), http.MethodGet, server.URL, nil, nil, &out)
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if !out.OK {
		t.Fatalf("expected decoded response")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestDoJSONRetriesRateLimit(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := fastClient(server).doJSON(context.Background(), http.MethodGet, server.URL, nil, nil, nil); err != nil {
		t.Fatalf("expected retry after 429, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestDoJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code": "not_found", "message": "missing"}`))
	}))
	defer server.Close()

	err := fastClient(server).doJSON(context.Background(), http.MethodGet, server.URL, nil, nil, nil)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusNotFound || httpErr.Code != "not_found" {
		t.Fatalf("unexpected error payload: %+v", httpErr)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single attempt for 404, got %d", calls.Load())
	}
	if !isHTTPStatus(err, http.StatusNotFound) {
		t.Fatalf("isHTTPStatus failed to match")
	}
}

func TestDoJSONGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := fastClient(server)
	err := client.doJSON(context.Background(), http.MethodGet, server.URL, nil, nil, nil)
	if !isHTTPStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("expected final 503, got %v", err)
	}
	if calls.Load() != int64(client.maxRetries)+1 {
		t.Fatalf("expected %d attempts, got %d", client.maxRetries+1, calls.Load())
	}
}

func TestDoJSONHonorsContextDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newAPIClient(server.Client())
	client.maxDelay = time.Minute
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := client.doJSON(ctx, http.MethodGet, server.URL, nil, nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	if got := parseRetryAfter("2"); got != 2*time.Second {
		t.Fatalf("expected 2s, got %s", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Fatalf("expected 0 for empty header, got %s", got)
	}
	if got := parseRetryAfter("garbage"); got != 0 {
		t.Fatalf("expected 0 for malformed header, got %s", got)
	}
}
