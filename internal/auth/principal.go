// Package auth provides the request principal and the admin gate for Base Documentaire.
package auth

import (
	"context"

	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/session"
)

type contextKey string

// PrincipalContextKey is the context key for the request Principal.
const PrincipalContextKey contextKey = "principal"

// Principal identifies who is making a request. The zero value is an
// anonymous visitor.
type Principal struct {
	// UserID is nil for anonymous visitors.
	UserID *int64

	Username string
	IsAdmin  bool
}

// Anonymous returns the principal of a visitor without a session.
func Anonymous() Principal {
	return Principal{}
}

// System returns the administrator principal used by command-line tools,
// which run with the operator's authority.
func System() Principal {
	return Principal{Username: "system", IsAdmin: true}
}

// FromSession builds the principal carried by a session.
func FromSession(sess *session.Session) Principal {
	if sess == nil {
		return Anonymous()
	}
	id := sess.UserID
	return Principal{
		UserID:   &id,
		Username: sess.Username,
		IsAdmin:  sess.IsAdmin,
	}
}

// Authenticated reports whether the principal belongs to a logged-in user.
func (p Principal) Authenticated() bool {
	return p.UserID != nil
}

// Is reports whether the principal is the user with the given id.
func (p Principal) Is(userID int64) bool {
	return p.UserID != nil && *p.UserID == userID
}

// RequireAdmin returns domain.ErrUnauthorized unless p is an administrator.
func RequireAdmin(p Principal) error {
	if !p.IsAdmin {
		return domain.NewDomainError(domain.ErrUnauthorized, "administrator access required", p.Username)
	}
	return nil
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// PrincipalFromContext returns the request principal, or Anonymous when none is set.
func PrincipalFromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(PrincipalContextKey).(Principal); ok {
		return p
	}
	return Anonymous()
}
