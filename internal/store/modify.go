package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/bebetter/internal/reward"
)

// Delta is one modify request. RequestID is optional; when set, a second
// request with the same id for the same user is not applied again.
type Delta struct {
	XP        int
	Coins     int
	RequestID string
}

// Modify applies d to the user's totals, recomputes level from the new xp,
// and returns the resulting row.
//
// Everything happens in one transaction. xp and coins are floored at 0.
//
// Returns:
//   - user: the row after the change (or the current row for a replay)
//   - applied: false if RequestID was already seen
//   - error: ErrCodeNotFound if the user does not exist
func (s *Store) Modify(ctx context.Context, userID string, d Delta) (user User, applied bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, false, fmt.Errorf("modify: begin tx: %w", err)
	}
	defer tx.Rollback()

	// Step 1: Claim the request id
	if d.RequestID != "" {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO modifications
			(user_id, request_id, xp_delta, coins_delta, created_at)
			SELECT id, ?, ?, ?, ? FROM users WHERE id = ?
			ON CONFLICT(user_id, request_id) DO NOTHING
		`, d.RequestID, d.XP, d.Coins, s.now().Unix(), userID)
		if err != nil {
			return User{}, false, fmt.Errorf("modify: claim request: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return User{}, false, fmt.Errorf("modify: rows affected: %w", err)
		}
		if rows == 0 {
			// Replay, or the user is gone. Either way nothing changes.
			u, err := s.queryUser(ctx, tx, "id = ?", userID)
			if errors.Is(err, sql.ErrNoRows) {
				return User{}, false, newError(ErrCodeNotFound, "user %s not found", userID)
			}
			if err != nil {
				return User{}, false, fmt.Errorf("modify: read replayed: %w", err)
			}
			if err := tx.Commit(); err != nil {
				return User{}, false, fmt.Errorf("modify: commit (replay): %w", err)
			}
			return u, false, nil
		}
	}

	// Step 2: Apply deltas
	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET xp = MAX(0, xp + ?), coins = MAX(0, coins + ?)
		WHERE id = ?
	`, d.XP, d.Coins, userID)
	if err != nil {
		return User{}, false, fmt.Errorf("modify: update totals: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return User{}, false, fmt.Errorf("modify: rows affected: %w", err)
	}
	if rows == 0 {
		return User{}, false, newError(ErrCodeNotFound, "user %s not found", userID)
	}

	// Step 3: Recompute level from the stored xp
	var xp int
	if err := tx.QueryRowContext(ctx, "SELECT xp FROM users WHERE id = ?", userID).Scan(&xp); err != nil {
		return User{}, false, fmt.Errorf("modify: read xp: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET level = ? WHERE id = ?", reward.LevelForXP(xp), userID); err != nil {
		return User{}, false, fmt.Errorf("modify: update level: %w", err)
	}

	user, err = s.queryUser(ctx, tx, "id = ?", userID)
	if err != nil {
		return User{}, false, fmt.Errorf("modify: read back: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return User{}, false, fmt.Errorf("modify: commit: %w", err)
	}
	return user, true, nil
}
