package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ErnestDikoum/basedocumentaire/internal/auth"
	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/session"
)

func TestUserService_Create(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	user, err := env.users.Create(ctx, adminPrincipal(), CreateUserInput{
		Username: "  alice  ",
		Email:    "alice@example.com",
		Password: "password1",
		IsAdmin:  true,
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	require.NotNil(t, user.Email)
	assert.Equal(t, "alice@example.com", *user.Email)
	assert.NotEqual(t, "password1", user.PasswordHash)

	tests := []struct {
		name    string
		p       auth.Principal
		input   CreateUserInput
		wantErr error
	}{
		{"non-admin", readerPrincipal(), CreateUserInput{Username: "bob", Password: "password1"}, domain.ErrUnauthorized},
		{"short username", adminPrincipal(), CreateUserInput{Username: "bo", Password: "password1"}, ErrInvalidUsername},
		{"short password", adminPrincipal(), CreateUserInput{Username: "bob", Password: "short"}, ErrInvalidPassword},
		{"bad email", adminPrincipal(), CreateUserInput{Username: "bob", Email: "not-an-email", Password: "password1"}, ErrInvalidEmail},
		{"duplicate username", adminPrincipal(), CreateUserInput{Username: "alice", Password: "password1"}, domain.ErrDuplicateName},
		{"duplicate email", adminPrincipal(), CreateUserInput{Username: "alice2", Email: "alice@example.com", Password: "password1"}, domain.ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.users.Create(ctx, tt.p, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	users, err := env.users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserService_Authenticate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.users.Create(ctx, adminPrincipal(), CreateUserInput{Username: "alice", Password: "password1"})
	require.NoError(t, err)
	assert.Nil(t, created.LastLoginAt)

	user, err := env.users.Authenticate(ctx, "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.NotNil(t, user.LastLoginAt)

	stored, err := env.users.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)

	_, err = env.users.Authenticate(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = env.users.Authenticate(ctx, "nobody", "password1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	admin, err := env.users.Create(ctx, adminPrincipal(), CreateUserInput{Username: "root", Password: "password1", IsAdmin: true})
	require.NoError(t, err)
	other, err := env.users.Create(ctx, adminPrincipal(), CreateUserInput{Username: "alice", Password: "password1"})
	require.NoError(t, err)

	self := auth.Principal{UserID: &admin.ID, Username: admin.Username, IsAdmin: true}

	assert.ErrorIs(t, env.users.Delete(ctx, self, admin.ID), domain.ErrCannotDeleteSelf)
	assert.ErrorIs(t, env.users.Delete(ctx, readerPrincipal(), other.ID), domain.ErrUnauthorized)

	require.NoError(t, env.users.Delete(ctx, self, other.ID))
	assert.ErrorIs(t, env.users.Delete(ctx, self, other.ID), domain.ErrNotFound)

	_, err = env.users.GetByID(ctx, other.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserService_DeleteEndsSessions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	admin, err := env.users.Create(ctx, adminPrincipal(), CreateUserInput{Username: "root", Password: "password1", IsAdmin: true})
	require.NoError(t, err)
	_, err = env.users.Create(ctx, adminPrincipal(), CreateUserInput{Username: "alice", Password: "password1", IsAdmin: true})
	require.NoError(t, err)

	sessions := NewSessionService(env.users, env.sessions, zerolog.Nop())
	adminSess, err := sessions.Login(ctx, "root", "password1")
	require.NoError(t, err)
	aliceSess, err := sessions.Login(ctx, "alice", "password1")
	require.NoError(t, err)

	self := auth.Principal{UserID: &admin.ID, Username: admin.Username, IsAdmin: true}
	require.NoError(t, env.users.Delete(ctx, self, aliceSess.UserID))

	_, err = sessions.Get(ctx, aliceSess.Token)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = sessions.Get(ctx, adminSess.Token)
	assert.NoError(t, err)
}

func TestUserService_DeleteWithoutSessionStore(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	users := NewUserService(env.repos.User, nil, bcrypt.MinCost, zerolog.Nop())

	_, err := users.Create(ctx, adminPrincipal(), CreateUserInput{Username: "root", Password: "password1", IsAdmin: true})
	require.NoError(t, err)
	other, err := users.Create(ctx, adminPrincipal(), CreateUserInput{Username: "alice", Password: "password1"})
	require.NoError(t, err)

	require.NoError(t, users.Delete(ctx, adminPrincipal(), other.ID))
	_, err = users.GetByID(ctx, other.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserService_EnsureInitialAdmin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.users.EnsureInitialAdmin(ctx, "", "", "")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = env.users.EnsureInitialAdmin(ctx, "admin", "", "changeme123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = env.users.EnsureInitialAdmin(ctx, "admin2", "", "changeme123")
	require.NoError(t, err)
	assert.False(t, created)

	users, err := env.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsAdmin)

	_, err = newTestEnv(t).users.EnsureInitialAdmin(ctx, "admin", "", "short")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestSessionService_LoginLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.users.Create(ctx, adminPrincipal(), CreateUserInput{Username: "alice", Password: "password1", IsAdmin: true})
	require.NoError(t, err)

	sessions := NewSessionService(env.users, session.NewMemoryStore(time.Hour), zerolog.Nop())

	_, err = sessions.Login(ctx, "alice", "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	sess, err := sessions.Login(ctx, "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Username)
	assert.True(t, sess.IsAdmin)

	got, err := sessions.Get(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)

	require.NoError(t, sessions.Logout(ctx, sess.Token))
	require.NoError(t, sessions.Logout(ctx, ""))

	_, err = sessions.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
