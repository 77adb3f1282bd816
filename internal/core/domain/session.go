package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of an upload session.
type SessionStatus string

const (
	SessionStatusOpen      SessionStatus = "open"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAborted   SessionStatus = "aborted"
)

// UploadSession groups the admitted files of one upload control.
type UploadSession struct {
	ID        uuid.UUID     `json:"id"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// Expired reports whether the session has passed its expiry time.
func (s *UploadSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
