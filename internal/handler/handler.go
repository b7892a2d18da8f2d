// Package handler provides the HTTP handlers and router for Base Documentaire.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ErnestDikoum/basedocumentaire/internal/auth"
	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/service"
)

// maxMemory is how much of a multipart form is held in memory; the rest is
// spooled to temporary files.
const maxMemory = 32 << 20

// Handler serves the public pages, the login flow and the admin dashboard.
type Handler struct {
	catalog  *service.CatalogService
	settings *service.SettingService
	users    *service.UserService
	sessions *service.SessionService
	pages    *templateSet

	auth         auth.Config
	cookieSecure bool
	sessionTTL   time.Duration

	logger zerolog.Logger
}

// Config contains the dependencies of a Handler.
type Config struct {
	Catalog  *service.CatalogService
	Settings *service.SettingService
	Users    *service.UserService
	Sessions *service.SessionService

	// Auth names the session cookie and the login path.
	Auth auth.Config

	// CookieSecure marks cookies Secure; enable behind HTTPS.
	CookieSecure bool

	// SessionTTL is the session cookie lifetime.
	SessionTTL time.Duration

	Logger zerolog.Logger
}

// New creates a Handler and parses the embedded templates.
func New(cfg Config) (*Handler, error) {
	pages, err := newTemplateSet()
	if err != nil {
		return nil, err
	}

	authCfg := cfg.Auth
	if authCfg.CookieName == "" || authCfg.LoginPath == "" {
		authCfg = auth.DefaultConfig()
	}

	return &Handler{
		catalog:      cfg.Catalog,
		settings:     cfg.Settings,
		users:        cfg.Users,
		sessions:     cfg.Sessions,
		pages:        pages,
		auth:         authCfg,
		cookieSecure: cfg.CookieSecure,
		sessionTTL:   cfg.SessionTTL,
		logger:       cfg.Logger.With().Str("component", "handler").Logger(),
	}, nil
}

// =============================================================================
// Rendering
// =============================================================================

// PageData is what every template receives.
type PageData struct {
	Title        string
	Principal    auth.Principal
	Announcement string
	Flashes      []Flash
	RequestID    string
	Data         any
}

// ErrorPageData is the body of the error page.
type ErrorPageData struct {
	Status  int
	Message string
}

// render writes page with status. Pending flash messages are consumed.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	ctx := r.Context()
	pd := PageData{
		Title:     title + " - Base Documentaire",
		Principal: auth.PrincipalFromContext(ctx),
		Flashes:   h.popFlashes(w, r),
		RequestID: RequestIDFromContext(ctx),
		Data:      data,
	}
	if h.settings != nil {
		pd.Announcement = h.settings.Announcement(ctx)
	}

	buf, err := h.pages.execute(page, pd)
	if err != nil {
		h.logger.Error().Err(err).Str("template", page).Msg("failed to render template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError renders the error page with the status matching err.
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().
			Err(err).
			Str("request_id", RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	h.render(w, r, status, pageError, http.StatusText(status), ErrorPageData{
		Status:  status,
		Message: domain.Reason(err),
	})
}

// fail reports a failed form submission. Errors the user can correct are
// flashed and the browser is sent back to target; the rest get the error page.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, target string) {
	switch statusFor(err) {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnsupportedMediaType:
		h.addFlash(w, r, flashWarning, domain.Reason(err))
		h.redirect(w, r, target)
	default:
		h.renderError(w, r, err)
	}
}

// redirect answers a form post with 303 See Other.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// statusFor maps a domain error kind to an HTTP status.
func statusFor(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRejectedFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

var (
	// errInvalidID is returned for a path id that is not a positive integer.
	errInvalidID = domain.NewDomainError(domain.ErrInvalidInput, "invalid identifier", "")

	errPageNotFound = domain.NewDomainError(domain.ErrNotFound, "page not found", "")
)

// idParam parses the {id} path parameter.
func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// formInt parses an optional integer form or query value; empty or invalid is 0.
func formInt(value string) int64 {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
