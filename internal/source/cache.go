package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long fetched upstream data stays valid.
const DefaultTTL = 300 * time.Second

// Cache is a short-lived key-value store owned by a single source
// client. A hit bypasses the network entirely, including retry logic.
// Concurrent operations on the same key are idempotent: a redundant
// duplicate fetch simply overwrites the entry with an equivalent value.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Key builds a cache key from the operation, the subject key, and the
// window. Distinct keys never conflict under concurrent access.
func Key(op, subject string, windowDays int) string {
	return fmt.Sprintf("%s:%s:%d", op, strings.ToLower(subject), windowDays)
}

// GetJSON reads and decodes a cached value. A decode failure is treated
// as a miss so a corrupt entry can be overwritten by the next fetch.
func GetJSON[T any](ctx context.Context, c Cache, key string, out *T) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// SetJSON encodes and stores a value. Encoding failures are dropped:
// the cache is an optimization, never a source of truth.
func SetJSON[T any](ctx context.Context, c Cache, key string, value T, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.Set(ctx, key, raw, ttl)
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is the in-process Cache used when no Redis is configured
// and in tests, where the clock is substituted for determinism.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache returns a MemoryCache on the real clock.
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithClock(time.Now)
}

// NewMemoryCacheWithClock returns a MemoryCache on the given clock.
func NewMemoryCacheWithClock(now func() time.Time) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
}

// RedisCache backs the Cache interface with Redis so cache entries
// survive restarts and are shared across replicas. TTL semantics match
// MemoryCache; Redis errors degrade to cache misses.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache returns a RedisCache. The prefix namespaces one client
// instance's keys away from the other's.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, c.prefix+":"+key).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	// Best effort: a failed write just means the next call refetches.
	_ = c.client.Set(ctx, c.prefix+":"+key, value, ttl).Err()
}
