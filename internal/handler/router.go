package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ErnestDikoum/basedocumentaire/internal/auth"
	"github.com/ErnestDikoum/basedocumentaire/internal/metrics"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router wires middleware and routes around a Handler.
type Router struct {
	handler      *Handler
	metrics      *metrics.Metrics
	metricsPath  string
	maxBodyBytes int64
	health       HealthChecker
	logger       zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Handler *Handler

	// Metrics may be nil, in which case no metrics route is mounted.
	Metrics     *metrics.Metrics
	MetricsPath string

	// MaxBodyBytes bounds request bodies; 0 disables the limit.
	MaxBodyBytes int64

	// Health is probed by GET /health. May be nil.
	Health HealthChecker

	Logger zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	metricsPath := config.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Router{
		handler:      config.Handler,
		metrics:      config.Metrics,
		metricsPath:  metricsPath,
		maxBodyBytes: config.MaxBodyBytes,
		health:       config.Health,
		logger:       config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	h := rt.handler
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(AccessLog(rt.logger))
	r.Use(middleware.Recoverer)
	r.Use(rt.metrics.Middleware(rt.metricsPath))
	r.Use(BodyLimit(rt.maxBodyBytes))
	r.Use(auth.Middleware(h.sessions, h.auth))

	// Health check and metrics (no session needed)
	r.Get("/health", rt.handleHealth)
	if rt.metrics != nil {
		r.Method(http.MethodGet, rt.metricsPath, rt.metrics.Handler())
	}

	// Public pages
	r.Get("/", h.Home)
	r.Get("/categories/{id}", h.ShowCategory)
	r.Get("/documents/{id}", h.ShowDocument)
	r.Get("/search", h.Search)
	r.Get("/uploads/{filename}", h.Download)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.LoginPage)
		r.Post("/login", h.Login)
		r.Get("/logout", h.Logout)
		r.Get("/register", h.Register)
	})

	// Administration
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAdminMiddleware(h.auth))

		r.Get("/", h.Dashboard)
		r.Post("/categories", h.AddCategory)
		r.Get("/categories/{id}/edit", h.EditCategoryPage)
		r.Post("/categories/{id}/edit", h.EditCategory)
		r.Post("/categories/{id}/delete", h.DeleteCategory)
		r.Post("/documents", h.AddDocuments)
		r.Get("/documents/{id}/edit", h.EditDocumentPage)
		r.Post("/documents/{id}/edit", h.EditDocument)
		r.Post("/documents/{id}/delete", h.DeleteDocument)
		r.Post("/announcement", h.UpdateAnnouncement)
		r.Post("/users", h.CreateUser)
		r.Post("/users/{id}/delete", h.DeleteUser)
		r.Post("/reset", h.ResetCatalog)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.renderError(w, r, errPageNotFound)
	})

	return r
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if rt.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.health.Health(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
