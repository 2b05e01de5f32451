package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lookbook/backend/internal/cache"
	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/events"
	"lookbook/backend/pkg/config"
)

func TestOpenStore_Memory(t *testing.T) {
	store, closeFn, err := openStore(context.Background(), &config.Config{StoreBackend: config.BackendMemory}, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &docstore.MemoryStore{}, store)
}

func TestOpenStore_Unknown(t *testing.T) {
	_, _, err := openStore(context.Background(), &config.Config{StoreBackend: "sqlite"}, zap.NewNop())
	assert.Error(t, err)
}

func TestOpenPrivacyCache(t *testing.T) {
	ctx := context.Background()

	c, closeFn, err := openPrivacyCache(ctx, &config.Config{PrivacyCacheTTL: time.Minute})
	require.NoError(t, err)
	closeFn()
	assert.IsType(t, &cache.MemoryPrivacyCache{}, c)

	mr := miniredis.RunT(t)
	c, closeFn, err = openPrivacyCache(ctx, &config.Config{RedisAddr: mr.Addr(), PrivacyCacheTTL: time.Minute})
	require.NoError(t, err)
	defer closeFn()
	c.Set(ctx, "alice", true)
	private, ok := c.Get(ctx, "alice")
	assert.True(t, ok)
	assert.True(t, private)

	addr := mr.Addr()
	mr.Close()
	_, _, err = openPrivacyCache(ctx, &config.Config{RedisAddr: addr})
	assert.Error(t, err)
}

func TestOpenPublisher_Disabled(t *testing.T) {
	pub, closeFn, err := openPublisher(&config.Config{})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, events.NopPublisher{}, pub)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, &config.Config{
			Port:                   "0",
			StoreBackend:           config.BackendMemory,
			FeedPageSize:           10,
			OwnerLookupConcurrency: 2,
		}, zap.NewNop())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
