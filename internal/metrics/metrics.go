// Package metrics exposes Prometheus collectors for the HTTP layer and the catalog.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "basedoc"

// Metrics holds every collector of the application. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry prometheus.Gatherer

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	documentsUploaded   prometheus.Counter
	documentsRejected   prometheus.Counter
	documentViews       prometheus.Counter
	blobCleanupFailures prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: reg,
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		documentsUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_uploaded_total",
			Help:      "Documents stored by upload batches.",
		}),
		documentsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_rejected_total",
			Help:      "Uploaded files skipped for a disallowed extension.",
		}),
		documentViews: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_views_total",
			Help:      "Document detail views recorded.",
		}),
		blobCleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_cleanup_failures_total",
			Help:      "Best-effort blob deletions that failed.",
		}),
	}

	collectors := []prometheus.Collector{
		m.requestCount,
		m.requestDuration,
		m.documentsUploaded,
		m.documentsRejected,
		m.documentViews,
		m.blobCleanupFailures,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by route pattern, so /documents/12 and
// /documents/13 share one series. skipPath is not counted.
func (m *Metrics) Middleware(skipPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil || r.URL.Path == skipPath {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			m.requestCount.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// DocumentsUploaded adds n stored documents.
func (m *Metrics) DocumentsUploaded(n int) {
	if m == nil {
		return
	}
	m.documentsUploaded.Add(float64(n))
}

// DocumentsRejected adds n rejected files.
func (m *Metrics) DocumentsRejected(n int) {
	if m == nil {
		return
	}
	m.documentsRejected.Add(float64(n))
}

// DocumentViewed records one detail view.
func (m *Metrics) DocumentViewed() {
	if m == nil {
		return
	}
	m.documentViews.Inc()
}

// BlobCleanupFailed records one failed best-effort blob deletion.
func (m *Metrics) BlobCleanupFailed() {
	if m == nil {
		return
	}
	m.blobCleanupFailures.Inc()
}
