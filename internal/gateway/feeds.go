package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/trungha/formgate/internal/core/domain"
	"github.com/trungha/formgate/internal/fetch"
	"github.com/trungha/formgate/internal/gateway/metrics"
)

// feedHandle pairs a feed's config with its fetcher. The fetcher is
// deferred: the first request to the feed triggers the first chain.
type feedHandle struct {
	feed    domain.Feed
	fetcher *fetch.Fetcher
}

func newFeedHandle(feed domain.Feed) (*feedHandle, error) {
	fetcher, err := fetch.New(fetch.Config{
		URL:           feed.URL,
		Headers:       feed.Headers,
		RetryAttempts: feed.RetryAttempts,
		RetryDelay:    feed.RetryDelay,
		Deferred:      true,
	})
	if err != nil {
		return nil, err
	}
	return &feedHandle{feed: feed, fetcher: fetcher}, nil
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	handle, ok := s.feeds[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown feed: "+name)
		return
	}

	refresh := r.URL.Query().Get("refresh") == "1"
	cacheable := s.cache != nil && handle.feed.CacheTTL > 0

	if cacheable && !refresh {
		if body, hit, err := s.cache.GetFeed(r.Context(), name); err == nil && hit {
			metrics.FeedCacheHits.WithLabelValues(name).Inc()
			metrics.FeedRequestsTotal.WithLabelValues(name, "cached").Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		} else if err != nil {
			s.log.Warn("Feed cache read failed", "feed", name, "error", err)
		}
		metrics.FeedCacheMisses.WithLabelValues(name).Inc()
	}

	start := time.Now()
	data, err := handle.fetcher.FetchNow(r.Context())
	metrics.FeedFetchLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())

	// A concurrent request restarted the chain; its result replaced
	// ours, so serve whatever that chain produced.
	if errors.Is(err, fetch.ErrSuperseded) {
		snap := handle.fetcher.Snapshot()
		data, err = snap.Data, snap.Err
	}

	if err != nil {
		metrics.FeedRequestsTotal.WithLabelValues(name, "error").Inc()
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	metrics.FeedRequestsTotal.WithLabelValues(name, "ok").Inc()
	body, marshalErr := json.Marshal(map[string]any{"data": data})
	if marshalErr != nil {
		writeError(w, http.StatusInternalServerError, marshalErr.Error())
		return
	}

	if cacheable {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if cacheErr := s.cache.SetFeed(ctx, name, body, handle.feed.CacheTTL); cacheErr != nil {
			s.log.Warn("Feed cache write failed", "feed", name, "error", cacheErr)
		}
		cancel()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
