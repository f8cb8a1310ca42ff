package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// localCache builds a Cache already in fallback mode, skipping the Redis
// dial entirely.
func localCache() *Cache {
	return &Cache{local: newLocalStore(), logger: zap.NewNop().Sugar()}
}

func TestCache_LocalRoundTrip(t *testing.T) {
	c := localCache()
	ctx := context.Background()

	type page struct {
		Total int64    `json:"total"`
		IDs   []string `json:"ids"`
	}

	require.NoError(t, c.Set(ctx, KeyMainListing+":p1", page{Total: 2, IDs: []string{"a", "b"}}, time.Minute))

	var got page
	require.NoError(t, c.Get(ctx, KeyMainListing+":p1", &got))
	assert.EqualValues(t, 2, got.Total)
	assert.Equal(t, []string{"a", "b"}, got.IDs)

	require.NoError(t, c.Delete(ctx, KeyMainListing+":p1"))
	err := c.Get(ctx, KeyMainListing+":p1", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_Miss(t *testing.T) {
	c := localCache()

	var dest map[string]string
	err := c.Get(context.Background(), "never-set", &dest)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := localCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short-lived", "value", 10*time.Millisecond))

	var got string
	require.NoError(t, c.Get(ctx, "short-lived", &got))
	assert.Equal(t, "value", got)

	time.Sleep(25 * time.Millisecond)
	err := c.Get(ctx, "short-lived", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_DeleteByPrefix(t *testing.T) {
	c := localCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, KeyMainListing+":p1", "a", time.Minute))
	require.NoError(t, c.Set(ctx, KeyMainListing+":p2", "b", time.Minute))
	require.NoError(t, c.Set(ctx, KeyCategory+":travel", "c", time.Minute))

	require.NoError(t, c.DeleteByPrefix(ctx, KeyMainListing))

	var got string
	assert.ErrorIs(t, c.Get(ctx, KeyMainListing+":p1", &got), ErrCacheMiss)
	assert.ErrorIs(t, c.Get(ctx, KeyMainListing+":p2", &got), ErrCacheMiss)
	require.NoError(t, c.Get(ctx, KeyCategory+":travel", &got))
	assert.Equal(t, "c", got)
}

func TestCache_InMemoryMode(t *testing.T) {
	c := localCache()
	assert.True(t, c.IsInMemoryMode())
	assert.NoError(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Delete(context.Background()))
}

func TestLocalStore_ZeroTTLNeverExpires(t *testing.T) {
	s := newLocalStore()
	s.set("k", []byte("v"), 0)

	data, ok := s.get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), data)
}
