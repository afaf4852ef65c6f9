package binlookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores remote lookup results.
type Cache interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	Set(ctx context.Context, key string, r Record) error
}

type memoryEntry struct {
	record  Record
	expires time.Time
}

// MemoryCache is an in-process Cache with a fixed TTL.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Record, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Record{}, false, nil
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		delete(c.entries, key)
		return Record{}, false, nil
	}
	return e.record, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, r Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{record: r, expires: c.now().Add(c.ttl)}
	return nil
}

// RedisCache keeps records as JSON under "bin:<key>".
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func redisKey(key string) string { return "bin:" + key }

func (c *RedisCache) Get(ctx context.Context, key string) (Record, bool, error) {
	b, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("redis get: %w", err)
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, false, fmt.Errorf("decode cached record: %w", err)
	}
	r.Source = SourceRemote
	return r, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, r Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := c.client.Set(ctx, redisKey(key), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
