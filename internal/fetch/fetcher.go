package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrSuperseded is returned by FetchNow when the awaited attempt chain
// was cancelled by a newer one before producing a terminal state.
var ErrSuperseded = errors.New("fetch superseded by a newer request")

// Config controls a Fetcher. URL is required, everything else optional.
type Config struct {
	URL     string
	Headers map[string]string

	// RetryAttempts is the number of retries after the initial attempt.
	// Zero means the default of 3; negative disables retries.
	RetryAttempts int

	// RetryDelay is the backoff base: the k-th retry waits
	// RetryDelay * 2^k. Zero means the default of 1s.
	RetryDelay time.Duration

	// Timeout bounds a single HTTP attempt. Zero leaves it to the
	// transport's own defaults.
	Timeout time.Duration

	// Deferred suppresses the automatic fetch on New; the first chain
	// then starts on Refetch or FetchNow.
	Deferred bool

	OnSuccess func(data []any, raw json.RawMessage)
	OnError   func(err error)
}

// Snapshot is a point-in-time view of fetcher state.
// Err is only ever set while Loading is false.
type Snapshot struct {
	Data    []any
	Loading bool
	Err     error
	State   State
}

// Fetcher performs GET requests against one URL, retrying transient
// failures with exponential backoff. At most one attempt chain is
// current at any time; starting a new one cancels the previous chain,
// and a cancelled chain never writes state or fires callbacks.
type Fetcher struct {
	mu     sync.Mutex
	cfg    Config
	client *http.Client

	data    []any
	loading bool
	err     error
	state   State

	gen    uint64 // current chain generation
	cancel context.CancelFunc
	done   chan struct{} // closed when the current chain's goroutine exits
	closed bool
}

// chainSpec is the configuration snapshot one attempt chain runs with.
// Mutating the fetcher's config mid-chain does not affect a running chain.
type chainSpec struct {
	url       string
	headers   map[string]string
	attempts  int
	delay     time.Duration
	onSuccess func(data []any, raw json.RawMessage)
	onError   func(err error)
}

// New creates a Fetcher and, unless cfg.Deferred is set, starts the
// first attempt chain immediately.
func New(cfg Config) (*Fetcher, error) {
	if cfg.URL == "" {
		return nil, errors.New("fetch: URL is required")
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 1 * time.Second
	}

	f := &Fetcher{
		cfg:   cfg,
		state: StateIdle,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}

	if !cfg.Deferred {
		f.mu.Lock()
		f.startChain()
		f.mu.Unlock()
	}
	return f, nil
}

// Snapshot returns the current state. The data slice is shared and must
// not be mutated by the caller.
func (f *Fetcher) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{Data: f.data, Loading: f.loading, Err: f.err, State: f.state}
}

// Refetch restarts the attempt chain from attempt 0, cancelling any
// in-flight attempt first.
func (f *Fetcher) Refetch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startChain()
}

// FetchNow restarts the attempt chain and blocks until it reaches a
// terminal state, ctx expires, or a newer chain supersedes it.
func (f *Fetcher) FetchNow(ctx context.Context) ([]any, error) {
	f.mu.Lock()
	f.startChain()
	gen := f.gen
	done := f.done
	f.mu.Unlock()

	if done == nil {
		return nil, errors.New("fetch: fetcher is closed")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		return nil, ErrSuperseded
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

// SetURL changes the target URL and restarts the chain. The old chain
// is cancelled before the new one starts.
func (f *Fetcher) SetURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if url == "" || url == f.cfg.URL {
		return
	}
	f.cfg.URL = url
	f.startChain()
}

// SetRetry updates the retry settings for future chains. A chain that
// is already running keeps the settings it started with.
func (f *Fetcher) SetRetry(attempts int, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if attempts >= 0 {
		f.cfg.RetryAttempts = attempts
	}
	if delay > 0 {
		f.cfg.RetryDelay = delay
	}
}

// Close cancels any in-flight work. No state write or callback happens
// after Close returns; a still-running HTTP request resolves into the
// void.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.client.CloseIdleConnections()
}

// startChain cancels the current chain and launches a new one.
// Caller must hold f.mu.
func (f *Fetcher) startChain() {
	if f.closed {
		return
	}
	if f.cancel != nil {
		f.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.gen++
	f.done = make(chan struct{})
	f.loading = true
	f.err = nil
	f.state = StateFetching

	spec := chainSpec{
		url:       f.cfg.URL,
		attempts:  f.cfg.RetryAttempts,
		delay:     f.cfg.RetryDelay,
		onSuccess: f.cfg.OnSuccess,
		onError:   f.cfg.OnError,
	}
	if len(f.cfg.Headers) > 0 {
		spec.headers = make(map[string]string, len(f.cfg.Headers))
		for k, v := range f.cfg.Headers {
			spec.headers[k] = v
		}
	}

	go f.run(ctx, f.gen, f.done, spec)
}

// run executes one attempt chain. Every state write is gated on the
// chain still being current; a superseded or closed chain drops its
// result silently.
func (f *Fetcher) run(ctx context.Context, gen uint64, done chan struct{}, spec chainSpec) {
	defer close(done)

	var lastErr error
	for attempt := 0; attempt <= spec.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff(spec.delay, attempt-1)):
			}

			if !f.transition(gen, StateFetching) {
				return
			}
		}

		data, raw, err := fetchOnce(ctx, f.client, spec.url, spec.headers)
		if err == nil {
			f.mu.Lock()
			if f.gen != gen || f.closed {
				f.mu.Unlock()
				return
			}
			f.data = data
			f.err = nil
			f.loading = false
			f.state = StateIdle
			f.mu.Unlock()

			if spec.onSuccess != nil {
				spec.onSuccess(data, raw)
			}
			return
		}

		// Cancellation is not a failure: a superseded or torn-down
		// chain resolves into nothing.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}

		lastErr = err
		if attempt < spec.attempts {
			if !f.transition(gen, StateRetrying) {
				return
			}
		}
	}

	terminal := fmt.Errorf("failed after %d attempts: %w", spec.attempts+1, lastErr)

	f.mu.Lock()
	if f.gen != gen || f.closed {
		f.mu.Unlock()
		return
	}
	f.err = terminal
	f.loading = false
	f.state = StateFailed
	f.mu.Unlock()

	if spec.onError != nil {
		spec.onError(terminal)
	}
}

// transition moves the state machine if the chain is still current.
func (f *Fetcher) transition(gen uint64, to State) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen || f.closed {
		return false
	}
	f.state = to
	return true
}

// backoff returns the delay before the k-th retry (k starting at 0).
func backoff(base time.Duration, k int) time.Duration {
	return base * time.Duration(1<<uint(k))
}
