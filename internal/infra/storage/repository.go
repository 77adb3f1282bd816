package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trungha/formgate/internal/core/domain"
)

var (
	// ErrSessionNotFound is returned when a session doesn't exist
	ErrSessionNotFound = errors.New("session not found")
)

// SessionRepository persists upload session metadata and an audit copy
// of each session's admitted files. The live file list itself is owned
// by the in-process validator; this store only mirrors it.
type SessionRepository interface {
	// Create saves a new session
	Create(ctx context.Context, session *domain.UploadSession) error

	// Get retrieves a session by ID
	Get(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error)

	// UpdateStatus updates a session's status
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error

	// ReplaceFiles replaces the audit copy of a session's file list
	ReplaceFiles(ctx context.Context, id uuid.UUID, files []domain.FileMeta) error

	// GetFiles retrieves the audit copy of a session's file list
	GetFiles(ctx context.Context, id uuid.UUID) ([]domain.FileMeta, error)

	// ListExpired returns sessions that expired before the given time
	ListExpired(ctx context.Context, before time.Time) ([]uuid.UUID, error)

	// Delete removes a session and its file records
	Delete(ctx context.Context, id uuid.UUID) error
}
