package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trungha/formgate/internal/core/domain"
	redisclient "github.com/trungha/formgate/internal/infra/redis"
)

// HealthChecker is implemented by backing stores that can be pinged.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server exposes feeds and upload sessions over HTTP.
type Server struct {
	feeds    map[string]*feedHandle
	sessions *SessionManager
	cache    *redisclient.Cache // nil when caching is disabled
	checkers map[string]HealthChecker
	server   *http.Server
	log      *slog.Logger
}

// NewServer creates the gateway HTTP server. cache may be nil.
func NewServer(
	port int,
	feeds []domain.Feed,
	sessions *SessionManager,
	cache *redisclient.Cache,
	log *slog.Logger,
) (*Server, error) {
	mux := http.NewServeMux()
	s := &Server{
		feeds:    make(map[string]*feedHandle),
		sessions: sessions,
		cache:    cache,
		checkers: make(map[string]HealthChecker),
		log:      log,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	for _, feed := range feeds {
		handle, err := newFeedHandle(feed)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", feed.Name, err)
		}
		s.feeds[feed.Name] = handle
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/feeds/{name}", s.handleFeed)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /api/sessions/{id}/files", s.handleListFiles)
	mux.HandleFunc("POST /api/sessions/{id}/files", s.handleAddFiles)
	mux.HandleFunc("DELETE /api/sessions/{id}/files/{index}", s.handleRemoveFile)
	mux.HandleFunc("DELETE /api/sessions/{id}/files", s.handleClearFiles)
	mux.HandleFunc("POST /api/sessions/{id}/complete", s.handleCompleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/abort", s.handleAbortSession)

	return s, nil
}

// AddHealthChecker registers a named backing store for /health.
func (s *Server) AddHealthChecker(name string, hc HealthChecker) {
	s.checkers[name] = hc
}

// Handler returns the underlying handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server and tears down all feed fetchers.
func (s *Server) Stop(ctx context.Context) error {
	for _, h := range s.feeds {
		h.fetcher.Close()
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	components := make(map[string]string, len(s.checkers))
	for name, hc := range s.checkers {
		if err := hc.Health(r.Context()); err != nil {
			components[name] = err.Error()
			status = "degraded"
		} else {
			components[name] = "ok"
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"components": components,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
