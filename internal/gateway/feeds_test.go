package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/trungha/formgate/internal/core/config"
	"github.com/trungha/formgate/internal/core/domain"
	"github.com/trungha/formgate/internal/infra/storage/memory"
)

func newFeedServer(t *testing.T, feeds []domain.Feed) *httptest.Server {
	t.Helper()
	sessions := NewSessionManager(config.UploadConfig{
		MaxSize:    1024,
		MaxFiles:   10,
		SessionTTL: time.Hour,
	}, memory.NewSessionRepo(), slog.Default())

	server, err := NewServer(0, feeds, sessions, nil, slog.Default())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestFeeds_ServesNormalizedData(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("expected api key header, got %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":1},{"id":2}]}`))
	}))
	defer upstream.Close()

	ts := newFeedServer(t, []domain.Feed{{
		Name:          "items",
		URL:           upstream.URL,
		Headers:       map[string]string{"X-Api-Key": "secret"},
		RetryAttempts: -1,
		RetryDelay:    time.Millisecond,
	}})

	resp, err := http.Get(ts.URL + "/api/feeds/items")
	if err != nil {
		t.Fatalf("get feed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Data) != 2 {
		t.Errorf("expected 2 items, got %d", len(out.Data))
	}
}

func TestFeeds_UnknownFeed(t *testing.T) {
	ts := newFeedServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/feeds/nope")
	if err != nil {
		t.Fatalf("get feed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestFeeds_UpstreamFailureIs502(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	ts := newFeedServer(t, []domain.Feed{{
		Name:          "broken",
		URL:           upstream.URL,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	}})

	resp, err := http.Get(ts.URL + "/api/feeds/broken")
	if err != nil {
		t.Fatalf("get feed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", resp.StatusCode)
	}

	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["error"] == "" {
		t.Error("expected error message in body")
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newFeedServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", out["status"])
	}
}
