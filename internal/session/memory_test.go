package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	user := &domain.User{ID: 7, Username: "admin", IsAdmin: true}

	sess, err := store.Create(ctx, user)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, int64(7), sess.UserID)
	assert.True(t, sess.IsAdmin)

	got, err := store.Get(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Username)

	require.NoError(t, store.Delete(ctx, sess.Token))
	_, err = store.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// Unknown tokens delete cleanly.
	assert.NoError(t, store.Delete(ctx, "nope"))
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore(30 * time.Minute)
	store.now = func() time.Time { return now }

	old, err := store.Create(ctx, &domain.User{ID: 1, Username: "alice"})
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	_, err = store.Get(ctx, old.Token)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	stale, err := store.Create(ctx, &domain.User{ID: 2, Username: "bob"})
	require.NoError(t, err)
	now = now.Add(time.Hour)

	// Create sweeps expired sessions.
	_, err = store.Create(ctx, &domain.User{ID: 3, Username: "carol"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	_, err = store.Get(ctx, stale.Token)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemoryStore_TokensAreUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	user := &domain.User{ID: 1, Username: "alice"}

	a, err := store.Create(ctx, user)
	require.NoError(t, err)
	b, err := store.Create(ctx, user)
	require.NoError(t, err)

	assert.NotEqual(t, a.Token, b.Token)
}

func TestMemoryStore_DeleteUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	first, err := store.Create(ctx, &domain.User{ID: 5, Username: "lucie"})
	require.NoError(t, err)
	second, err := store.Create(ctx, &domain.User{ID: 5, Username: "lucie"})
	require.NoError(t, err)
	other, err := store.Create(ctx, &domain.User{ID: 6, Username: "marc"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteUser(ctx, 5))
	assert.Equal(t, 1, store.Len())

	for _, token := range []string{first.Token, second.Token} {
		_, err = store.Get(ctx, token)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	}
	_, err = store.Get(ctx, other.Token)
	assert.NoError(t, err)
}
