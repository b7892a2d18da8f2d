package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ErnestDikoum/basedocumentaire/internal/auth"
	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
)

// LoginPageData contains the login form state.
type LoginPageData struct {
	Username string
	Next     string
}

// LoginPage handles GET /auth/login.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageLogin, "Login", LoginPageData{
		Next: auth.SafeNext(r.URL.Query().Get("next"), ""),
	})
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, domain.NewDomainError(domain.ErrInvalidInput, "invalid form data", ""))
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	next := auth.SafeNext(r.FormValue("next"), "")
	data := LoginPageData{Username: username, Next: next}

	if username == "" || password == "" {
		h.addFlash(w, r, flashWarning, "Please fill in every field.")
		h.render(w, r, http.StatusBadRequest, pageLogin, "Login", data)
		return
	}

	sess, err := h.sessions.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			h.logger.Warn().Str("username", username).Msg("login failed")
			h.addFlash(w, r, flashError, "Invalid username or password.")
			h.render(w, r, http.StatusUnauthorized, pageLogin, "Login", data)
			return
		}
		h.renderError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.auth.CookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionTTL.Seconds()),
	})

	h.addFlash(w, r, flashSuccess, "Logged in.")
	h.redirect(w, r, auth.SafeNext(next, "/"))
}

// Logout handles GET /auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.auth.CookieName); err == nil {
		if err := h.sessions.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Warn().Err(err).Msg("failed to close session")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.auth.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	h.addFlash(w, r, flashSuccess, "Logged out.")
	h.redirect(w, r, "/")
}

// Register handles GET /auth/register. Self-registration is disabled.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	h.addFlash(w, r, flashInfo, "Public registration is disabled. Contact an administrator.")
	h.redirect(w, r, h.auth.LoginPath)
}
