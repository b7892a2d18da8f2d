// Package session keeps server-side login sessions keyed by an opaque token.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
)

// Session is the state bound to a login cookie.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store defines the interface for session backends.
type Store interface {
	// Create opens a session for user and returns it with a fresh token.
	Create(ctx context.Context, user *domain.User) (*Session, error)

	// Get returns the session for token.
	// Returns domain.ErrSessionNotFound if it doesn't exist or has expired.
	Get(ctx context.Context, token string) (*Session, error)

	// Delete removes a session. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteUser removes every session of a user.
	DeleteUser(ctx context.Context, userID int64) error
}

func newSession(user *domain.User, ttl time.Duration, now time.Time) *Session {
	return &Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		IsAdmin:   user.IsAdmin,
		ExpiresAt: now.Add(ttl),
	}
}
