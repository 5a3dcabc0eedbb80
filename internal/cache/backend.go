package cache

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync"
	"time"

	rds "autopress/internal/platform/redis"

	redisv8 "github.com/go-redis/redis/v8"
)

// RedisBackend stores cache entries in redis; TTL handling is native.
type RedisBackend struct{ redis *rds.Service }

func NewRedisBackend(redis *rds.Service) *RedisBackend { return &RedisBackend{redis: redis} }

func (b *RedisBackend) Get(ctx context.Context, key string, dest interface{}) error {
	err := b.redis.CacheGet(ctx, key, dest)
	if errors.Is(err, redisv8.Nil) {
		return ErrMiss
	}
	return err
}

func (b *RedisBackend) Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	return b.redis.CacheSet(ctx, key, val, ttl)
}

func (b *RedisBackend) DeletePattern(ctx context.Context, pattern string) (int, error) {
	return b.redis.DeletePattern(ctx, pattern)
}

type memEntry struct {
	data    []byte
	expires time.Time
}

// MemoryBackend is an in-process Backend with lazy TTL expiry. Used by tests
// and as the degraded mode when redis is not reachable at startup.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memEntry), now: time.Now}
}

func (b *MemoryBackend) Get(ctx context.Context, key string, dest interface{}) error {
	b.mu.RLock()
	e, ok := b.entries[key]
	b.mu.RUnlock()
	if !ok {
		return ErrMiss
	}
	if !e.expires.IsZero() && b.now().After(e.expires) {
		b.mu.Lock()
		delete(b.entries, key)
		b.mu.Unlock()
		return ErrMiss
	}
	return json.Unmarshal(e.data, dest)
}

func (b *MemoryBackend) Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	var expires time.Time
	if ttl > 0 {
		expires = b.now().Add(ttl)
	}
	b.mu.Lock()
	b.entries[key] = memEntry{data: data, expires: expires}
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) DeletePattern(ctx context.Context, pattern string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	deleted := 0
	for key := range b.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(b.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

// Len reports the number of live entries, expired included.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
