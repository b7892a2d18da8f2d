package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.Middleware("/metrics"))
	r.Get("/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	r.Handle("/metrics", m.Handler())

	for _, path := range []string{"/documents/1", "/documents/2", "/missing", "/metrics"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requestCount.WithLabelValues("GET", "/documents/{id}", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requestCount.WithLabelValues("GET", "/missing", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.requestCount))
	assert.Equal(t, 2, testutil.CollectAndCount(m.requestDuration))
}

func TestDomainCounters(t *testing.T) {
	m := newTestMetrics(t)

	m.DocumentsUploaded(3)
	m.DocumentsRejected(1)
	m.DocumentViewed()
	m.DocumentViewed()
	m.BlobCleanupFailed()

	assert.Equal(t, float64(3), testutil.ToFloat64(m.documentsUploaded))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.documentsRejected))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.documentViews))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.blobCleanupFailures))

	expected := `
# HELP basedoc_document_views_total Document detail views recorded.
# TYPE basedoc_document_views_total counter
basedoc_document_views_total 2
`
	assert.NoError(t, testutil.CollectAndCompare(m.documentViews, strings.NewReader(expected)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.DocumentsUploaded(1)
		m.DocumentsRejected(1)
		m.DocumentViewed()
		m.BlobCleanupFailed()
	})

	called := false
	h := m.Middleware("/metrics")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}
