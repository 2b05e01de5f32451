package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lookbook/backend/pkg/logger"
)

// PrivacyCache remembers each account's isPrivate flag between requests.
// A miss (or any backend error) means "ask the store".
//
// Set never replaces a live entry. MarkStale leaves a tombstone for one TTL
// so a reader that fetched the account before the invalidation cannot put
// the old flag back.
type PrivacyCache interface {
	Get(ctx context.Context, accountID string) (isPrivate bool, ok bool)
	Set(ctx context.Context, accountID string, isPrivate bool)
	MarkStale(ctx context.Context, accountID string)
}

type privacyFlag uint8

const (
	flagStale privacyFlag = iota
	flagPublic
	flagPrivate
)

// MemoryPrivacyCache keeps privacy flags in process.
type MemoryPrivacyCache struct {
	entries *TTL[string, privacyFlag]
}

// NewMemoryPrivacyCache creates an in-process privacy cache.
func NewMemoryPrivacyCache(ttl time.Duration) *MemoryPrivacyCache {
	return &MemoryPrivacyCache{entries: NewTTL[string, privacyFlag](ttl)}
}

func (c *MemoryPrivacyCache) Get(_ context.Context, accountID string) (bool, bool) {
	flag, ok := c.entries.Get(accountID)
	if !ok || flag == flagStale {
		return false, false
	}
	return flag == flagPrivate, true
}

func (c *MemoryPrivacyCache) Set(_ context.Context, accountID string, isPrivate bool) {
	flag := flagPublic
	if isPrivate {
		flag = flagPrivate
	}
	c.entries.SetIfAbsent(accountID, flag)
}

func (c *MemoryPrivacyCache) MarkStale(_ context.Context, accountID string) {
	c.entries.Set(accountID, flagStale)
}

// RedisPrivacyCache shares privacy flags between server instances.
type RedisPrivacyCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisPrivacyCache creates a privacy cache on client.
func NewRedisPrivacyCache(client *redis.Client, ttl time.Duration) *RedisPrivacyCache {
	return &RedisPrivacyCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("privacy_cache"),
	}
}

const staleValue = "stale"

func privacyKey(accountID string) string {
	return "privacy:" + accountID
}

func (c *RedisPrivacyCache) Get(ctx context.Context, accountID string) (bool, bool) {
	val, err := c.client.Get(ctx, privacyKey(accountID)).Result()
	if errors.Is(err, redis.Nil) || val == staleValue {
		return false, false
	}
	if err != nil {
		c.logger.Warn("Privacy cache read failed", zap.String("account_id", accountID), zap.Error(err))
		return false, false
	}
	return val == "1", true
}

func (c *RedisPrivacyCache) Set(ctx context.Context, accountID string, isPrivate bool) {
	val := "0"
	if isPrivate {
		val = "1"
	}
	if err := c.client.SetNX(ctx, privacyKey(accountID), val, c.ttl).Err(); err != nil {
		c.logger.Warn("Privacy cache write failed", zap.String("account_id", accountID), zap.Error(err))
	}
}

func (c *RedisPrivacyCache) MarkStale(ctx context.Context, accountID string) {
	if err := c.client.Set(ctx, privacyKey(accountID), staleValue, c.ttl).Err(); err != nil {
		c.logger.Warn("Privacy cache invalidation failed", zap.String("account_id", accountID), zap.Error(err))
	}
}
