package domain

import (
	"time"
)

// User represents an account that can log into the application.
// Only administrators may change the catalog.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Username is the unique username for login and display.
	Username string `json:"username"`

	// Email is optional; when present it is unique.
	Email *string `json:"email,omitempty"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in responses or logs.
	PasswordHash string `json:"-"`

	// IsAdmin indicates whether the user may manage the catalog and other users.
	IsAdmin bool `json:"is_admin"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// LastLoginAt is set on every successful authentication.
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// NewUser creates a new User with default values.
func NewUser(username string, email *string, passwordHash string, isAdmin bool) *User {
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    time.Now().UTC(),
	}
}
