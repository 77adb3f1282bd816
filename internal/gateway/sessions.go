package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trungha/formgate/internal/core/config"
	"github.com/trungha/formgate/internal/core/domain"
	"github.com/trungha/formgate/internal/gateway/metrics"
	"github.com/trungha/formgate/internal/infra/storage"
	"github.com/trungha/formgate/internal/upload"
)

// Session pairs one upload session's metadata with the validator that
// owns its live file list.
type Session struct {
	Meta      domain.UploadSession
	Validator *upload.Validator
}

// SessionManager owns the in-process upload sessions. Each session gets
// its own validator instance; the repository only keeps an audit mirror
// of session metadata and admitted files.
type SessionManager struct {
	mu       sync.RWMutex
	cfg      config.UploadConfig
	repo     storage.SessionRepository
	sessions map[uuid.UUID]*Session
	log      *slog.Logger
}

// NewSessionManager creates a session manager backed by the given repository.
func NewSessionManager(
	cfg config.UploadConfig,
	repo storage.SessionRepository,
	log *slog.Logger,
) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		repo:     repo,
		sessions: make(map[uuid.UUID]*Session),
		log:      log,
	}
}

// Create opens a new upload session.
func (m *SessionManager) Create(ctx context.Context) (*Session, error) {
	now := time.Now()
	meta := domain.UploadSession{
		ID:        uuid.New(),
		Status:    domain.SessionStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(m.cfg.SessionTTL),
	}

	id := meta.ID
	validator := upload.New(upload.Config{
		MaxSize:  m.cfg.MaxSize,
		MaxFiles: m.cfg.MaxFiles,
		Accept:   m.cfg.Accept,
		OnError: func(err error) {
			metrics.FilesRejectedTotal.WithLabelValues(classifyRejection(err)).Inc()
		},
		OnFilesChange: func(files []domain.FileMeta) {
			m.mirrorFiles(id, files)
		},
	})

	session := &Session{Meta: meta, Validator: validator}

	if err := m.repo.Create(ctx, &meta); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	metrics.SessionsCreatedTotal.Inc()
	metrics.ActiveSessions.Inc()
	return session, nil
}

// Get returns an open, unexpired session.
func (m *SessionManager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	if session.Meta.Expired(time.Now()) {
		return nil, storage.ErrSessionNotFound
	}
	return session, nil
}

// SetStatus marks a session completed or aborted. A closed session
// stays readable until it expires.
func (m *SessionManager) SetStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.SessionStatus,
) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		session.Meta.Status = status
		session.Meta.UpdatedAt = time.Now()
	}
	m.mu.Unlock()
	if !ok {
		return storage.ErrSessionNotFound
	}

	if err := m.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	if status != domain.SessionStatusOpen {
		metrics.ActiveSessions.Dec()
	}
	return nil
}

// PruneExpired drops sessions whose expiry has passed, both in memory
// and from the repository.
func (m *SessionManager) PruneExpired(ctx context.Context, now time.Time) int {
	m.mu.Lock()
	var expired []uuid.UUID
	for id, s := range m.sessions {
		if s.Meta.Expired(now) {
			expired = append(expired, id)
			delete(m.sessions, id)
			// Closed sessions already left the gauge.
			if s.Meta.Status == domain.SessionStatusOpen {
				metrics.ActiveSessions.Dec()
			}
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		if err := m.repo.Delete(ctx, id); err != nil {
			m.log.Warn("Failed to delete expired session", "session", id, "error", err)
		}
	}

	// Repository may hold sessions from a previous process.
	stale, err := m.repo.ListExpired(ctx, now)
	if err != nil {
		m.log.Warn("Failed to list expired sessions", "error", err)
		return len(expired)
	}
	for _, id := range stale {
		if err := m.repo.Delete(ctx, id); err != nil {
			m.log.Warn("Failed to delete expired session", "session", id, "error", err)
		}
	}

	return len(expired)
}

// mirrorFiles copies the validator's current list into the audit store.
func (m *SessionManager) mirrorFiles(id uuid.UUID, files []domain.FileMeta) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.repo.ReplaceFiles(ctx, id, files); err != nil {
		m.log.Warn("Failed to mirror session files", "session", id, "error", err)
	}
}

// classifyRejection buckets a validation error by its message shape.
func classifyRejection(err error) string {
	s := err.Error()
	switch {
	case strings.Contains(s, "Maximum"):
		return "capacity"
	case strings.Contains(s, "too large"):
		return "size"
	case strings.Contains(s, "invalid type"):
		return "type"
	case strings.Contains(s, "already added"):
		return "duplicate"
	default:
		return "other"
	}
}
