package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/pkg/errors"
	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeNotFound, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "serialization failed")
)

// Cache is a JSON value cache with a key prefix.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
	Ping(ctx context.Context) error
}

type redisCache struct {
	client       *Client
	logger       logging.Logger
	prefix       string
	defaultTTL   time.Duration
	singleflight singleflight.Group
}

type CacheOption func(*redisCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *redisCache) { c.prefix = prefix }
}

func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.defaultTTL = ttl }
}

// NewRedisCache builds a Cache over client. Keys default to the "rigor:"
// prefix and a 24h TTL.
func NewRedisCache(client *Client, log logging.Logger, opts ...CacheOption) Cache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &redisCache{
		client:     client,
		logger:     log,
		prefix:     "rigor:",
		defaultTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *redisCache) fullKey(key string) string {
	return c.prefix + key
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to get from cache")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if err := c.client.Set(ctx, c.fullKey(key), data, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to write cache")
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = c.fullKey(k)
	}
	if err := c.client.Del(ctx, fullKeys...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to delete from cache")
	}
	return nil
}

// Claim sets key only if it is absent and reports whether this caller won.
func (c *redisCache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	ok, err := c.client.SetNX(ctx, c.fullKey(key), "1", ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to claim key")
	}
	return ok, nil
}

// GetOrSet reads key into dest, or runs loader once per key across
// concurrent callers and caches its result.
func (c *redisCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if err != ErrCacheMiss {
		return err
	}

	val, err, _ := c.singleflight.Do(key, func() (interface{}, error) {
		v, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		if setErr := c.Set(ctx, key, v, ttl); setErr != nil {
			c.logger.Warn("Failed to set cache in GetOrSet", logging.String("key", key), logging.Err(setErr))
		}
		return v, nil
	})
	if err != nil {
		return err
	}
	data, err := json.Marshal(val)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return json.Unmarshal(data, dest)
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Audit cache
// ─────────────────────────────────────────────────────────────────────────────

// AuditCache stores finished audits keyed by the hash of their text.
type AuditCache struct {
	cache Cache
	ttl   time.Duration
}

// NewAuditCache wraps cache. A zero ttl uses the cache default.
func NewAuditCache(cache Cache, ttl time.Duration) *AuditCache {
	return &AuditCache{cache: cache, ttl: ttl}
}

// AuditKey is the cache key for text with the given hash.
func AuditKey(textHash string) string {
	return "audit:text:" + textHash
}

// Lookup returns the cached audit for textHash, or ErrCacheMiss.
func (a *AuditCache) Lookup(ctx context.Context, textHash string) (*audit.Record, error) {
	var rec audit.Record
	if err := a.cache.Get(ctx, AuditKey(textHash), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Store caches rec under its text hash.
func (a *AuditCache) Store(ctx context.Context, rec *audit.Record) error {
	return a.cache.Set(ctx, AuditKey(rec.TextHash), rec, a.ttl)
}

// Claim marks an idempotency key as taken; false means another caller holds it.
func (a *AuditCache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return a.cache.Claim(ctx, "claim:"+key, ttl)
}

// Release frees a claimed key so a later delivery can retry.
func (a *AuditCache) Release(ctx context.Context, key string) error {
	return a.cache.Delete(ctx, "claim:"+key)
}

// Ping checks the cache backend.
func (a *AuditCache) Ping(ctx context.Context) error {
	return a.cache.Ping(ctx)
}
