package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ErnestDikoum/basedocumentaire/internal/auth"
	"github.com/ErnestDikoum/basedocumentaire/internal/cache/memory"
	"github.com/ErnestDikoum/basedocumentaire/internal/config"
	"github.com/ErnestDikoum/basedocumentaire/internal/database"
	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/filestore"
	"github.com/ErnestDikoum/basedocumentaire/internal/metrics"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository/sqldb"
	"github.com/ErnestDikoum/basedocumentaire/internal/service"
	"github.com/ErnestDikoum/basedocumentaire/internal/session"
)

const testMaxBody = 1 << 20

type testApp struct {
	handler  http.Handler
	catalog  *service.CatalogService
	users    *service.UserService
	sessions *service.SessionService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	logger := zerolog.Nop()

	dbCfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "test.db")}
	require.NoError(t, database.Migrate(ctx, dbCfg, logger))
	db, err := database.Open(ctx, dbCfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := filestore.NewFilesystemStore(filepath.Join(dir, "uploads"), []string{".pdf", ".doc", ".docx"}, logger)
	require.NoError(t, err)

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	repos := sqldb.NewRepositories(db)
	settings := service.NewSettingService(repos.Setting, memory.NewCache(), time.Minute, logger)
	catalog := service.NewCatalogService(repos, store, settings, m, logger, service.DefaultCatalogConfig())
	sessionStore := session.NewMemoryStore(time.Hour)
	users := service.NewUserService(repos.User, sessionStore, bcrypt.MinCost, logger)
	sessions := service.NewSessionService(users, sessionStore, logger)

	h, err := New(Config{
		Catalog:    catalog,
		Settings:   settings,
		Users:      users,
		Sessions:   sessions,
		Auth:       auth.DefaultConfig(),
		SessionTTL: time.Hour,
		Logger:     logger,
	})
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Handler:      h,
		Metrics:      m,
		MaxBodyBytes: testMaxBody,
		Health:       db,
		Logger:       logger,
	})

	return &testApp{
		handler:  router.Handler(),
		catalog:  catalog,
		users:    users,
		sessions: sessions,
	}
}

// adminCookie creates an administrator and returns a logged-in session cookie.
func (a *testApp) adminCookie(t *testing.T) *http.Cookie {
	t.Helper()
	ctx := context.Background()

	_, err := a.users.Create(ctx, auth.System(), service.CreateUserInput{
		Username: "admin",
		Password: "password1",
		IsAdmin:  true,
	})
	require.NoError(t, err)

	sess, err := a.sessions.Login(ctx, "admin", "password1")
	require.NoError(t, err)
	return &http.Cookie{Name: auth.DefaultConfig().CookieName, Value: sess.Token}
}

func (a *testApp) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

type part struct {
	name    string
	content string
}

func postMultipart(t *testing.T, target string, fields map[string]string, fileField string, files []part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(fileField, f.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid input", domain.ErrTitleRequired, http.StatusBadRequest},
		{"not found", domain.ErrDocumentNotFound, http.StatusNotFound},
		{"duplicate", domain.ErrCategoryExists, http.StatusConflict},
		{"rejected type", domain.NewDomainError(domain.ErrRejectedFileType, "", "a.exe"), http.StatusUnsupportedMediaType},
		{"unauthorized", domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{"storage", domain.StorageError(errors.New("boom"), "failed"), http.StatusInternalServerError},
		{"too large", fmt.Errorf("parse: %w", &http.MaxBytesError{Limit: 10}), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := app.do(req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestHomeAndCategoryPages(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t)

	category, err := app.catalog.AddCategory(ctx, auth.System(), service.CategoryInput{Name: "Irrigation"})
	require.NoError(t, err)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Irrigation")

	rec = app.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/categories/%d?sort=titre_asc", category.ID), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No document in this category.")

	rec = app.do(httptest.NewRequest(http.MethodGet, "/categories/999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/categories/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/categories/%d?sort=random", category.ID), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRequiresLogin(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login?next=%2Fadmin", rec.Header().Get("Location"))

	rec = app.do(postForm("/admin/categories", url.Values{"name": {"X"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))

	categories, err := app.catalog.Categories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestLoginFlow(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t)

	_, err := app.users.Create(ctx, auth.System(), service.CreateUserInput{Username: "alice", Password: "password1", IsAdmin: true})
	require.NoError(t, err)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/auth/login?next=/admin", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="/admin"`)

	rec = app.do(postForm("/auth/login", url.Values{"username": {"alice"}, "password": {"wrong-pass"}}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password.")

	rec = app.do(postForm("/auth/login", url.Values{"username": {""}, "password": {""}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(postForm("/auth/login", url.Values{
		"username": {"alice"},
		"password": {"password1"},
		"next":     {"https://evil.example/phish"},
	}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	sessionCookie := cookieNamed(rec, auth.DefaultConfig().CookieName)
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/admin", nil), sessionCookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Administration")

	rec = app.do(httptest.NewRequest(http.MethodGet, "/auth/logout", nil), sessionCookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/admin", nil), sessionCookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestRegisterIsDisabled(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/auth/register", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
	assert.NotNil(t, cookieNamed(rec, flashCookieName))
}

func TestAdminCategoryForms(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t)
	admin := app.adminCookie(t)

	rec := app.do(postForm("/admin/categories", url.Values{"name": {"Semences"}}), admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	// The flash is shown on the next page.
	flash := cookieNamed(rec, flashCookieName)
	require.NotNil(t, flash)
	rec = app.do(httptest.NewRequest(http.MethodGet, "/admin", nil), admin, flash)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Category &#34;Semences&#34; added.")

	rec = app.do(postForm("/admin/categories", url.Values{"name": {"Semences"}}), admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotNil(t, cookieNamed(rec, flashCookieName))

	categories, err := app.catalog.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	id := categories[0].ID

	rec = app.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/admin/categories/%d/edit", id), nil), admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(postForm(fmt.Sprintf("/admin/categories/%d/edit", id), url.Values{"name": {"Graines"}}), admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	got, err := app.catalog.GetCategory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Graines", got.Name)

	rec = app.do(postForm(fmt.Sprintf("/admin/categories/%d/delete", id), nil), admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = app.do(postForm("/admin/categories/999/delete", nil), admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminUploadViewAndDownload(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t)
	admin := app.adminCookie(t)

	category, err := app.catalog.AddCategory(ctx, auth.System(), service.CategoryInput{Name: "Plans"})
	require.NoError(t, err)

	req := postMultipart(t, "/admin/documents", map[string]string{
		"title":       "Plan",
		"category_id": fmt.Sprint(category.ID),
	}, "files", []part{
		{name: "plan.pdf", content: "%PDF-1.4 plan"},
		{name: "notes.exe", content: "MZ"},
	})
	rec := app.do(req, admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	_, page, err := app.catalog.ListByCategory(ctx, category.ID, "", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	doc := page.Items[0]
	assert.Equal(t, "Plan - plan.pdf", doc.Title)

	rec = app.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/documents/%d", doc.ID), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Plan - plan.pdf")

	detail, err := app.catalog.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.Document.ViewCount)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/documents/999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/uploads/plan.pdf", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4 plan", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	rec = app.do(httptest.NewRequest(http.MethodGet, "/uploads/missing.pdf", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	// Replace the file through the edit form.
	req = postMultipart(t, fmt.Sprintf("/admin/documents/%d/edit", doc.ID), map[string]string{
		"title":       "Plan v2",
		"category_id": fmt.Sprint(category.ID),
	}, "file", []part{{name: "plan-v2.docx", content: "v2"}})
	rec = app.do(req, admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	detail, err = app.catalog.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Plan v2", detail.Document.Title)
	assert.Equal(t, "plan-v2.docx", detail.Document.StoredFilename)

	rec = app.do(postForm(fmt.Sprintf("/admin/documents/%d/delete", doc.ID), nil), admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/uploads/plan-v2.docx", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestBodyLimit(t *testing.T) {
	app := newTestApp(t)
	admin := app.adminCookie(t)

	req := postMultipart(t, "/admin/documents", map[string]string{"title": "Big"}, "files", []part{
		{name: "big.pdf", content: strings.Repeat("x", testMaxBody+1)},
	})
	rec := app.do(req, admin)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSearchPage(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t)

	category, err := app.catalog.AddCategory(ctx, auth.System(), service.CategoryInput{Name: "Agri"})
	require.NoError(t, err)
	_, err = app.catalog.AddDocuments(ctx, auth.System(), service.AddDocumentsInput{
		Title:      "Plan de culture",
		CategoryID: category.ID,
		Files:      []service.UploadFile{{Name: "culture.pdf", Content: strings.NewReader("c")}},
	})
	require.NoError(t, err)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/search?q=plan&sort=titre_asc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Plan de culture")
	assert.Contains(t, rec.Body.String(), "1 result(s)")

	rec = app.do(httptest.NewRequest(http.MethodGet, "/search", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = app.do(httptest.NewRequest(http.MethodGet, "/search?q=plan&from=2024-13-01", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnnouncementIsShownEverywhere(t *testing.T) {
	app := newTestApp(t)
	admin := app.adminCookie(t)

	rec := app.do(postForm("/admin/announcement", url.Values{"message": {"Fermeture vendredi"}}), admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Fermeture vendredi")
}

func TestAdminUsersAndReset(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t)
	admin := app.adminCookie(t)

	rec := app.do(postForm("/admin/users", url.Values{
		"username": {"bob"},
		"password": {"password1"},
	}), admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	users, err := app.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	var adminID, bobID int64
	for _, u := range users {
		if u.Username == "admin" {
			adminID = u.ID
		} else {
			bobID = u.ID
		}
	}

	// Deleting yourself is refused with a message.
	rec = app.do(postForm(fmt.Sprintf("/admin/users/%d/delete", adminID), nil), admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotNil(t, cookieNamed(rec, flashCookieName))

	bobSess, err := app.sessions.Login(ctx, "bob", "password1")
	require.NoError(t, err)

	rec = app.do(postForm(fmt.Sprintf("/admin/users/%d/delete", bobID), nil), admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	users, err = app.users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	// The deleted user's login no longer resolves.
	_, err = app.sessions.Get(ctx, bobSess.Token)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = app.catalog.AddCategory(ctx, auth.System(), service.CategoryInput{Name: "Temp"})
	require.NoError(t, err)

	rec = app.do(postForm("/admin/reset", url.Values{"confirmation": {"nope"}}), admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	categories, err := app.catalog.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 1)

	rec = app.do(postForm("/admin/reset", url.Values{"confirmation": {service.ResetConfirmation}}), admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	categories, err = app.catalog.Categories(ctx)
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)

	app.do(httptest.NewRequest(http.MethodGet, "/", nil))

	rec := app.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "basedoc_http_requests_total")
}
