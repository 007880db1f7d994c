// Package cache implements the bucket-window cache CorridorFeatureBuilder
// uses to avoid recomputing corridor features for a bucket that has already
// been built; the actor and market builders do not use it. Grounded in the
// teacher's data/cache/cache.go
// Cache interface (in-memory default, optional Redis backing).
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores serialized feature results keyed by bucket identity.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
}

// Memory is the default in-process Cache.
type Memory struct {
	mu sync.Mutex
	m  map[string]entry
}

type entry struct {
	b   []byte
	exp time.Time
}

// NewMemory constructs an empty Memory cache.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]entry)}
}

// Get returns the cached value, or false if absent or expired.
func (c *Memory) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false
	}
	return e.b, true
}

// Set stores a value with an optional ttl (zero means no expiry).
func (c *Memory) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

// Redis is the shared-process Cache backing, for deployments running more
// than one scheduler instance against the same bucket window.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing redis.Client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	v, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	_ = r.client.Set(ctx, key, val, ttl).Err()
}
