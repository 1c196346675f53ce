// Package cache holds the short-lived coordination state kept outside the database:
// idempotency keys for order placement and the last-run record of background jobs.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	idempotencyPrefix = "idempotent-key:%s"
	lastRunPrefix     = "cleanup:last_run:%s"
)

type Cache interface {
	// Claim records key for ttl and reports whether this caller was first.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops a claim so the key can be used again.
	Release(ctx context.Context, key string) error
	// LastRun returns the zero time when job never ran.
	LastRun(ctx context.Context, job string) (time.Time, error)
	MarkRun(ctx context.Context, job string, at time.Time) error
}

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf(idempotencyPrefix, key), "exists", ttl).Result()
}

func (c *RedisCache) Release(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(idempotencyPrefix, key)).Err()
}

func (c *RedisCache) LastRun(ctx context.Context, job string) (time.Time, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf(lastRunPrefix, job)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, val)
}

func (c *RedisCache) MarkRun(ctx context.Context, job string, at time.Time) error {
	return c.rdb.Set(ctx, fmt.Sprintf(lastRunPrefix, job), at.UTC().Format(time.RFC3339Nano), 0).Err()
}

// MemoryCache is used when no Redis address is configured.
type MemoryCache struct {
	mu      sync.Mutex
	now     func() time.Time
	keys    map[string]time.Time
	lastRun map[string]time.Time
}

func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{now: now, keys: map[string]time.Time{}, lastRun: map[string]time.Time{}}
}

func (c *MemoryCache) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if exp, ok := c.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	c.keys[key] = now.Add(ttl)
	return true, nil
}

func (c *MemoryCache) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}

func (c *MemoryCache) LastRun(_ context.Context, job string) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun[job], nil
}

func (c *MemoryCache) MarkRun(_ context.Context, job string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRun[job] = at
	return nil
}
