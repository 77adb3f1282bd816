package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// waitIdle polls until the fetcher leaves its loading state.
func waitIdle(t *testing.T, f *Fetcher, timeout time.Duration) Snapshot {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		snap := f.Snapshot()
		if !snap.Loading {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("fetcher still loading after %v", timeout)
	return Snapshot{}
}

func TestFetcher_SuccessAfterRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":1},{"id":2}]}`))
	}))
	defer server.Close()

	f, err := New(Config{
		URL:           server.URL,
		RetryAttempts: 2,
		RetryDelay:    10 * time.Millisecond,
		Deferred:      true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	data, err := f.FetchNow(context.Background())
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if len(data) != 2 {
		t.Errorf("expected 2 items, got %d", len(data))
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected exactly 3 requests, got %d", got)
	}

	snap := f.Snapshot()
	if snap.Err != nil {
		t.Errorf("expected nil error after success, got %v", snap.Err)
	}
	if snap.State != StateIdle {
		t.Errorf("expected state %s, got %s", StateIdle, snap.State)
	}
}

func TestFetcher_ExhaustsRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	var onErrCalls atomic.Int32
	f, err := New(Config{
		URL:           server.URL,
		RetryAttempts: 2,
		RetryDelay:    5 * time.Millisecond,
		Deferred:      true,
		OnError:       func(error) { onErrCalls.Add(1) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	_, err = f.FetchNow(context.Background())
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if !strings.Contains(err.Error(), "failed after 3 attempts") {
		t.Errorf("unexpected error message: %v", err)
	}
	// N retries means exactly N+1 attempts
	if got := requests.Load(); got != 3 {
		t.Errorf("expected exactly 3 requests, got %d", got)
	}
	if got := onErrCalls.Load(); got != 1 {
		t.Errorf("expected OnError to fire once, got %d", got)
	}

	snap := f.Snapshot()
	if snap.Loading {
		t.Error("expected loading=false after exhaustion")
	}
	if snap.State != StateFailed {
		t.Errorf("expected state %s, got %s", StateFailed, snap.State)
	}
}

func TestFetcher_BackoffMonotonicity(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	const base = 20 * time.Millisecond
	f, err := New(Config{
		URL:           server.URL,
		RetryAttempts: 2,
		RetryDelay:    base,
		Deferred:      true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	_, _ = f.FetchNow(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(stamps) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(stamps))
	}
	// k-th retry waits at least base * 2^k
	if gap := stamps[1].Sub(stamps[0]); gap < base {
		t.Errorf("first retry after %v, want >= %v", gap, base)
	}
	if gap := stamps[2].Sub(stamps[1]); gap < 2*base {
		t.Errorf("second retry after %v, want >= %v", gap, 2*base)
	}
}

func TestFetcher_ImmediateFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[1,2,3]`))
	}))
	defer server.Close()

	f, err := New(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	snap := waitIdle(t, f, 2*time.Second)
	if len(snap.Data) != 3 {
		t.Errorf("expected 3 items, got %d", len(snap.Data))
	}
}

func TestFetcher_CancellationSilence(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`["stale"]`))
	}))
	defer slow.Close()

	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["fresh"]`))
	}))
	defer fast.Close()

	var terminals atomic.Int32
	f, err := New(Config{
		URL:           slow.URL,
		RetryAttempts: -1,
		RetryDelay:    time.Millisecond,
		Deferred:      true,
		OnSuccess:     func([]any, json.RawMessage) { terminals.Add(1) },
		OnError:       func(error) { terminals.Add(1) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	// Start the slow chain, then supersede it before it resolves.
	f.Refetch()
	time.Sleep(20 * time.Millisecond)
	f.SetURL(fast.URL)

	snap := waitIdle(t, f, 2*time.Second)
	if snap.Err != nil {
		t.Fatalf("unexpected error: %v", snap.Err)
	}
	if len(snap.Data) != 1 || snap.Data[0] != "fresh" {
		t.Fatalf("expected fresh payload, got %v", snap.Data)
	}

	// Let the stale request resolve; its result must not be applied.
	close(release)
	time.Sleep(50 * time.Millisecond)

	snap = f.Snapshot()
	if len(snap.Data) != 1 || snap.Data[0] != "fresh" {
		t.Errorf("stale response overwrote state: %v", snap.Data)
	}
	if got := terminals.Load(); got != 1 {
		t.Errorf("expected exactly 1 terminal callback, got %d", got)
	}
}

func TestFetcher_RefetchSupersedesPending(t *testing.T) {
	var requests atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			<-release
			http.Error(w, "slow failure", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`["second"]`))
	}))
	defer server.Close()

	f, err := New(Config{
		URL:           server.URL,
		RetryAttempts: -1,
		RetryDelay:    time.Millisecond,
		Deferred:      true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	f.Refetch()
	time.Sleep(20 * time.Millisecond)

	data, err := f.FetchNow(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != 1 || data[0] != "second" {
		t.Fatalf("expected second payload, got %v", data)
	}

	// The first chain's failure must not surface once resolved.
	close(release)
	time.Sleep(50 * time.Millisecond)

	snap := f.Snapshot()
	if snap.Err != nil {
		t.Errorf("stale failure surfaced: %v", snap.Err)
	}
	if len(snap.Data) != 1 || snap.Data[0] != "second" {
		t.Errorf("stale resolution altered state: %v", snap.Data)
	}
}

func TestFetcher_CloseSilencesInFlight(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`["late"]`))
	}))
	defer server.Close()

	var callbacks atomic.Int32
	f, err := New(Config{
		URL:       server.URL,
		Deferred:  true,
		OnSuccess: func([]any, json.RawMessage) { callbacks.Add(1) },
		OnError:   func(error) { callbacks.Add(1) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.Refetch()
	time.Sleep(20 * time.Millisecond)
	f.Close()
	close(release)
	time.Sleep(50 * time.Millisecond)

	snap := f.Snapshot()
	if len(snap.Data) != 0 {
		t.Errorf("state written after Close: %v", snap.Data)
	}
	if got := callbacks.Load(); got != 0 {
		t.Errorf("callback fired after Close: %d", got)
	}
}

func TestFetcher_ChainKeepsConfigSnapshot(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	f, err := New(Config{
		URL:           server.URL,
		RetryAttempts: 2,
		RetryDelay:    30 * time.Millisecond,
		Deferred:      true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	f.Refetch()
	time.Sleep(10 * time.Millisecond)
	// Shrinking the retry budget mid-chain must not affect the chain
	// that is already running.
	f.SetRetry(0, time.Millisecond)

	waitIdle(t, f, 2*time.Second)
	if got := requests.Load(); got != 3 {
		t.Errorf("expected the running chain to keep 3 attempts, got %d", got)
	}
}

func TestFetcher_FetchNowSuperseded(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`[true]`))
	}))
	defer server.Close()

	f, err := New(Config{URL: server.URL, Deferred: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := f.FetchNow(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	f.Refetch()
	close(release)

	if err := <-errCh; !errors.Is(err, ErrSuperseded) {
		t.Errorf("expected ErrSuperseded, got %v", err)
	}
}
