package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trungha/formgate/internal/core/domain"
	"github.com/trungha/formgate/internal/infra/storage"
)

// SessionRepo is the in-memory default session store.
type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*domain.UploadSession
	files    map[uuid.UUID][]domain.FileMeta
}

// NewSessionRepo creates an empty in-memory session repository.
func NewSessionRepo() *SessionRepo {
	return &SessionRepo{
		sessions: make(map[uuid.UUID]*domain.UploadSession),
		files:    make(map[uuid.UUID][]domain.FileMeta),
	}
}

func (r *SessionRepo) Create(ctx context.Context, session *domain.UploadSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *session
	r.sessions[session.ID] = &stored
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	out := *s
	return &out, nil
}

func (r *SessionRepo) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.SessionStatus,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return storage.ErrSessionNotFound
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	return nil
}

func (r *SessionRepo) ReplaceFiles(
	ctx context.Context,
	id uuid.UUID,
	files []domain.FileMeta,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return storage.ErrSessionNotFound
	}
	copied := make([]domain.FileMeta, len(files))
	copy(copied, files)
	r.files[id] = copied
	s.UpdatedAt = time.Now()
	return nil
}

func (r *SessionRepo) GetFiles(ctx context.Context, id uuid.UUID) ([]domain.FileMeta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.sessions[id]; !ok {
		return nil, storage.ErrSessionNotFound
	}
	files := r.files[id]
	out := make([]domain.FileMeta, len(files))
	copy(out, files)
	return out, nil
}

func (r *SessionRepo) ListExpired(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var expired []uuid.UUID
	for id, s := range r.sessions {
		if !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(before) {
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (r *SessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	delete(r.files, id)
	return nil
}
