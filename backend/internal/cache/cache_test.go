package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTL_ExpiresAndMarkStale(t *testing.T) {
	c := NewTTL[string, int](20 * time.Millisecond)

	c.Set("feed:alice", 3)
	v, ok := c.Get("feed:alice")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 1, c.Len())

	require.Eventually(t, func() bool {
		_, ok := c.Get("feed:alice")
		return !ok
	}, time.Second, 5*time.Millisecond, "entry expires after ttl")
	assert.Equal(t, 0, c.Len())

	c.Set("feed:bob", 1)
	c.MarkStale("feed:bob")
	_, ok = c.Get("feed:bob")
	assert.False(t, ok)

	c.Set("feed:carol", 1)
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestTTL_SetIfAbsent(t *testing.T) {
	c := NewTTL[string, int](time.Minute)

	assert.True(t, c.SetIfAbsent("k", 1))
	assert.False(t, c.SetIfAbsent("k", 2))
	v, _ := c.Get("k")
	assert.Equal(t, 1, v)

	c.MarkStale("k")
	assert.True(t, c.SetIfAbsent("k", 3))
}

func TestMemoryPrivacyCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryPrivacyCache(time.Minute)

	_, ok := c.Get(ctx, "alice")
	assert.False(t, ok)

	c.Set(ctx, "alice", true)
	private, ok := c.Get(ctx, "alice")
	assert.True(t, ok)
	assert.True(t, private)

	c.MarkStale(ctx, "alice")
	_, ok = c.Get(ctx, "alice")
	assert.False(t, ok)
}

func TestMemoryPrivacyCache_StaleFlagIsNotRestored(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryPrivacyCache(time.Minute)

	// A reader fetched the account while it was public, then the owner
	// went private and invalidated before the reader wrote back.
	c.MarkStale(ctx, "alice")
	c.Set(ctx, "alice", false)
	_, ok := c.Get(ctx, "alice")
	assert.False(t, ok)

	// A live entry is kept until it is invalidated.
	c.Set(ctx, "bob", true)
	c.Set(ctx, "bob", false)
	private, ok := c.Get(ctx, "bob")
	require.True(t, ok)
	assert.True(t, private)
}

func TestRedisPrivacyCache(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	ctx := context.Background()
	c := NewRedisPrivacyCache(client, 30*time.Second)

	_, ok := c.Get(ctx, "alice")
	assert.False(t, ok)

	c.Set(ctx, "alice", false)
	private, ok := c.Get(ctx, "alice")
	assert.True(t, ok)
	assert.False(t, private)
	assert.Equal(t, "0", mustGet(t, s, "privacy:alice"))

	c.Set(ctx, "bob", true)
	private, ok = c.Get(ctx, "bob")
	assert.True(t, ok)
	assert.True(t, private)

	c.MarkStale(ctx, "bob")
	_, ok = c.Get(ctx, "bob")
	assert.False(t, ok)

	s.FastForward(31 * time.Second)
	_, ok = c.Get(ctx, "alice")
	assert.False(t, ok, "entry expires with the redis TTL")
}

func TestRedisPrivacyCache_StaleFlagIsNotRestored(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	ctx := context.Background()
	c := NewRedisPrivacyCache(client, 30*time.Second)

	c.Set(ctx, "carol", false)
	c.MarkStale(ctx, "carol")
	c.Set(ctx, "carol", false)
	_, ok := c.Get(ctx, "carol")
	assert.False(t, ok)
	assert.Equal(t, staleValue, mustGet(t, s, "privacy:carol"))

	s.FastForward(31 * time.Second)
	c.Set(ctx, "carol", true)
	private, ok := c.Get(ctx, "carol")
	require.True(t, ok)
	assert.True(t, private)
}

func TestRedisPrivacyCache_BackendDownIsAMiss(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	c := NewRedisPrivacyCache(client, time.Minute)
	c.Set(context.Background(), "alice", true)
	s.Close()

	_, ok := c.Get(context.Background(), "alice")
	assert.False(t, ok)
}

func mustGet(t *testing.T, s *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := s.Get(key)
	require.NoError(t, err)
	return v
}
