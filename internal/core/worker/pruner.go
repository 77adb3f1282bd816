package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/trungha/formgate/internal/gateway"
)

// SessionPruner deletes upload sessions whose TTL has passed.
type SessionPruner struct {
	ttl      time.Duration
	sessions *gateway.SessionManager
}

// NewSessionPruner creates a new SessionPruner worker.
func NewSessionPruner(ttl time.Duration, sessions *gateway.SessionManager) *SessionPruner {
	return &SessionPruner{ttl: ttl, sessions: sessions}
}

// Start runs the pruner loop.
func (p *SessionPruner) Start(ctx context.Context) {
	if p.ttl <= 0 {
		return // Expiry disabled
	}

	// Check at 10% of the TTL, clamped between 1 minute and 1 hour.
	interval := min(p.ttl/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *SessionPruner) prune(ctx context.Context) {
	if n := p.sessions.PruneExpired(ctx, time.Now()); n > 0 {
		slog.Debug("Pruned expired upload sessions", "count", n)
	}
}
