package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/session"
)

func TestRequireAdmin(t *testing.T) {
	id := int64(1)

	assert.NoError(t, RequireAdmin(Principal{UserID: &id, Username: "root", IsAdmin: true}))

	err := RequireAdmin(Principal{UserID: &id, Username: "reader"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = RequireAdmin(Anonymous())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestPrincipalFromContext(t *testing.T) {
	assert.False(t, PrincipalFromContext(context.Background()).Authenticated())

	p := FromSession(&session.Session{UserID: 4, Username: "alice", IsAdmin: true})
	ctx := WithPrincipal(context.Background(), p)

	got := PrincipalFromContext(ctx)
	assert.True(t, got.Authenticated())
	assert.True(t, got.Is(4))
	assert.False(t, got.Is(5))
	assert.Equal(t, "alice", got.Username)
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(time.Hour)
	sess, err := store.Create(ctx, &domain.User{ID: 9, Username: "admin", IsAdmin: true})
	require.NoError(t, err)

	config := DefaultConfig()

	var seen Principal
	handler := Middleware(store, config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
	}))

	tests := []struct {
		name      string
		cookie    string
		wantAuth  bool
		wantAdmin bool
	}{
		{"no cookie", "", false, false},
		{"unknown token", "bogus", false, false},
		{"valid session", sess.Token, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: config.CookieName, Value: tt.cookie})
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.wantAuth, seen.Authenticated())
			assert.Equal(t, tt.wantAdmin, seen.IsAdmin)
		})
	}
}

func TestRequireAdminMiddleware(t *testing.T) {
	config := DefaultConfig()
	handler := RequireAdminMiddleware(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("anonymous GET is redirected with next", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin?tab=users", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/auth/login?next=%2Fadmin%3Ftab%3Dusers", rec.Header().Get("Location"))
	})

	t.Run("non-admin POST is redirected", func(t *testing.T) {
		id := int64(2)
		req := httptest.NewRequest(http.MethodPost, "/admin/reset", nil)
		req = req.WithContext(WithPrincipal(req.Context(), Principal{UserID: &id, Username: "reader"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
	})

	t.Run("admin passes", func(t *testing.T) {
		id := int64(1)
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req = req.WithContext(WithPrincipal(req.Context(), Principal{UserID: &id, IsAdmin: true}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"", "/"},
		{"/admin", "/admin"},
		{"/documents/3?x=1", "/documents/3?x=1"},
		{"https://evil.example", "/"},
		{"//evil.example", "/"},
		{`/\evil.example`, "/"},
		{"admin", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeNext(tt.next, "/"))
		})
	}
}
