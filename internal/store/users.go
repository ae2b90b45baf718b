package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/bebetter/internal/reward"
)

// User is a row of the users table.
type User struct {
	ID           string
	Username     string
	Email        *string
	PasswordHash string
	XP           int
	Coins        int
	Level        int
	CreatedAt    time.Time
}

const userColumns = `id, username, email, password_hash, xp, coins, level, created_at`

// NormalizeUsername trims, NFC-normalizes and lowercases a username so
// visually identical names collide.
func NormalizeUsername(name string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(name)))
}

// CreateUser registers a user with xp 0, level 1 and the configured
// starting coins. email may be empty.
func (s *Store) CreateUser(ctx context.Context, username, email, password string) (User, error) {
	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return User{}, newError(ErrCodeInvalidInput, "username and password required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("create user: hash password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Coins:        s.startingCoins,
		Level:        reward.LevelForXP(0),
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	if e := strings.TrimSpace(email); e != "" {
		u.Email = &e
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		u.ID,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.XP,
		u.Coins,
		u.Level,
		u.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return User{}, newError(ErrCodeUsernameTaken, "username %q already taken", username)
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Authenticate checks a username/password pair.
func (s *Store) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := s.queryUser(ctx, s.db, "username = ?", NormalizeUsername(username))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, newError(ErrCodeInvalidCredentials, "invalid credentials")
	}
	if err != nil {
		return User{}, fmt.Errorf("authenticate: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, newError(ErrCodeInvalidCredentials, "invalid credentials")
	}
	return u, nil
}

// UserByID loads a user.
func (s *Store) UserByID(ctx context.Context, id string) (User, error) {
	u, err := s.queryUser(ctx, s.db, "id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, newError(ErrCodeNotFound, "user %s not found", id)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) queryUser(ctx context.Context, q queryer, where string, arg any) (User, error) {
	var (
		u       User
		email   sql.NullString
		created string
	)
	err := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).Scan(
		&u.ID,
		&u.Username,
		&email,
		&u.PasswordHash,
		&u.XP,
		&u.Coins,
		&u.Level,
		&created,
	)
	if err != nil {
		return User{}, err
	}
	if email.Valid {
		u.Email = &email.String
	}
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		u.CreatedAt = t
	}
	return u, nil
}
