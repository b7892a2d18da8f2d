package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErnestDikoum/basedocumentaire/internal/repository"
)

func TestCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewCache()

	require.NoError(t, c.Set(ctx, "announcement", []byte("hello"), 0))

	got, err := c.Get(ctx, "announcement")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	// Returned slices are copies.
	got[0] = 'j'
	again, err := c.Get(ctx, "announcement")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), again)

	require.NoError(t, c.Delete(ctx, "announcement"))
	_, err = c.Get(ctx, "announcement")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "forever", []byte("b"), 0))
	assert.Equal(t, 2, c.Len())

	now = now.Add(2 * time.Minute)
	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
	assert.Equal(t, 1, c.Len())

	// Writes sweep expired entries.
	require.NoError(t, c.Set(ctx, "other", []byte("c"), 0))
	c.mu.RLock()
	_, stillThere := c.items["short"]
	c.mu.RUnlock()
	assert.False(t, stillThere)
}

func TestCache_Flush(t *testing.T) {
	ctx := context.Background()
	c := NewCache()
	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 0, c.Len())
}
