package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trungha/formgate/internal/core/domain"
	"github.com/trungha/formgate/internal/infra/storage"
)

// SessionRepo implements storage.SessionRepository using PostgreSQL.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new PostgreSQL session repository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

type sessionRow struct {
	ID        uuid.UUID `db:"id"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

type fileRow struct {
	Position     int       `db:"position"`
	Name         string    `db:"name"`
	Size         int64     `db:"size_bytes"`
	Type         string    `db:"mime_type"`
	LastModified time.Time `db:"last_modified"`
}

func (r *SessionRepo) Create(ctx context.Context, session *domain.UploadSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO upload_sessions (id, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		session.ID, string(session.Status),
		session.CreatedAt, session.UpdatedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, status, created_at, updated_at, expires_at
		FROM upload_sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &domain.UploadSession{
		ID:        row.ID,
		Status:    domain.SessionStatus(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

func (r *SessionRepo) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.SessionStatus,
) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE upload_sessions SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrSessionNotFound
	}
	return nil
}

// ReplaceFiles rewrites the audit file list atomically.
func (r *SessionRepo) ReplaceFiles(
	ctx context.Context,
	id uuid.UUID,
	files []domain.FileMeta,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM upload_session_files WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear session files: %w", err)
	}

	for i, f := range files {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO upload_session_files
				(session_id, position, name, size_bytes, mime_type, last_modified)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, i, f.Name, f.Size, f.Type, f.LastModified); err != nil {
			return fmt.Errorf("failed to insert session file: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE upload_sessions SET updated_at = $1 WHERE id = $2`,
		time.Now(), id); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return tx.Commit()
}

func (r *SessionRepo) GetFiles(ctx context.Context, id uuid.UUID) ([]domain.FileMeta, error) {
	var rows []fileRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT position, name, size_bytes, mime_type, last_modified
		FROM upload_session_files
		WHERE session_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session files: %w", err)
	}

	files := make([]domain.FileMeta, len(rows))
	for i, row := range rows {
		files[i] = domain.FileMeta{
			Name:         row.Name,
			Size:         row.Size,
			Type:         row.Type,
			LastModified: row.LastModified,
		}
	}
	return files, nil
}

func (r *SessionRepo) ListExpired(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM upload_sessions WHERE expires_at < $1`, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	return ids, nil
}

func (r *SessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM upload_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
