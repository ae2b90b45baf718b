package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateSession issues a bearer token for userID valid for the session TTL.
func (s *Store) CreateSession(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, token, userID, now.Unix(), now.Add(s.sessionTTL).Unix())
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// SessionUser resolves a bearer token to its user id.
func (s *Store) SessionUser(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", newError(ErrCodeInvalidSession, "missing token")
	}
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM sessions
		WHERE token = ? AND expires_at > ?
	`, token, s.now().Unix()).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", newError(ErrCodeInvalidSession, "invalid or expired token")
	}
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	return userID, nil
}

// DeleteSession revokes token. Unknown tokens are not an error.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PruneSessions deletes expired sessions and returns how many were removed.
func (s *Store) PruneSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune sessions: rows affected: %w", err)
	}
	return n, nil
}
