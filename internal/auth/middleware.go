package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/session"
)

// SessionGetter loads a session by token.
type SessionGetter interface {
	Get(ctx context.Context, token string) (*session.Session, error)
}

// Config contains configuration for the auth middleware.
type Config struct {
	// CookieName is the name of the session cookie.
	CookieName string

	// LoginPath is where RequireAdminMiddleware sends visitors.
	LoginPath string
}

// DefaultConfig returns the default auth configuration.
func DefaultConfig() Config {
	return Config{
		CookieName: "basedoc_session",
		LoginPath:  "/auth/login",
	}
}

// Middleware resolves the session cookie into a Principal stored in the
// request context. Requests without a valid session continue as Anonymous.
func Middleware(store SessionGetter, config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := Anonymous()

			if cookie, err := r.Cookie(config.CookieName); err == nil && cookie.Value != "" {
				sess, err := store.Get(r.Context(), cookie.Value)
				switch {
				case err == nil:
					principal = FromSession(sess)
				case errors.Is(err, domain.ErrSessionNotFound):
					// Stale cookie.
				default:
					log.Warn().Err(err).Str("path", r.URL.Path).Msg("failed to load session")
				}
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAdminMiddleware redirects non-administrators to the login page,
// keeping the requested path in the "next" query parameter.
func RequireAdminMiddleware(config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := RequireAdmin(PrincipalFromContext(r.Context())); err != nil {
				target := config.LoginPath
				if r.Method == http.MethodGet {
					target += "?next=" + url.QueryEscape(r.URL.RequestURI())
				}
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SafeNext returns next when it is a local path, and fallback otherwise.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return fallback
	}
	// "//host" and "/\host" are protocol-relative in browsers.
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}
