package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"booksys/internal/domain"
)

// CreateSession inserts a login session
func (r *Repository) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, session.ID, session.UserID, toMillis(session.ExpiresAt), toMillis(session.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID, expired or not
func (r *Repository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var (
		userID               string
		expiresAt, createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, expires_at, created_at FROM sessions WHERE id = ?
	`, id).Scan(&userID, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	return &domain.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: fromMillis(expiresAt),
		CreatedAt: fromMillis(createdAt),
	}, nil
}

// DeleteSession removes a session. Deleting an unknown session is not an error.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes every session expiring at or before now
func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
