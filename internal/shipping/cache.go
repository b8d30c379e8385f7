package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"dropship-gateway/internal/model"
)

// DefaultTTL is how long a quote lookup stays authoritative.
const DefaultTTL = time.Hour

// Cache memoizes shipping results by Key. A hit is returned as-is for the
// whole TTL; there is no revalidation.
type Cache interface {
	Get(ctx context.Context, key string) (model.ShippingResult, bool, error)
	Set(ctx context.Context, key string, result model.ShippingResult, ttl time.Duration) error
}

// Compile-time interface checks
var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)

// Key builds the cache key "productID:DEST:variant", with "default" standing
// in for an unspecified variant.
func Key(productID, destination, variantID string) string {
	if variantID == "" {
		variantID = "default"
	}
	return productID + ":" + strings.ToUpper(destination) + ":" + variantID
}

// =============================================================================
// MEMORY
// =============================================================================

type memoryEntry struct {
	result    model.ShippingResult
	expiresAt time.Time
}

// MemoryCache is a process-local Cache. Expired entries are dropped lazily on
// Get and in bulk by Purge.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache. A nil now means time.Now.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), now: now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (model.ShippingResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return model.ShippingResult{}, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return model.ShippingResult{}, false, nil
	}
	return copyResult(e.result), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, result model.ShippingResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{result: copyResult(result), expiresAt: c.now().Add(ttl)}
	return nil
}

// Purge removes expired entries and returns how many were dropped.
func (c *MemoryCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func copyResult(r model.ShippingResult) model.ShippingResult {
	if r.Quotes != nil {
		r.Quotes = append([]model.ShippingQuote(nil), r.Quotes...)
	}
	return r
}

// =============================================================================
// REDIS
// =============================================================================

const defaultKeyPrefix = "dropship:shipquote:"

// RedisCache shares quote results across gateway instances. Expiry is
// delegated to Redis (SET with EX).
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache creates a RedisCache over an existing client.
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

// NewRedisCacheFromURL parses a redis:// URL and verifies the connection.
func NewRedisCacheFromURL(ctx context.Context, rawURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisCache(client, ""), nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (model.ShippingResult, bool, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.ShippingResult{}, false, nil
	}
	if err != nil {
		return model.ShippingResult{}, false, fmt.Errorf("failed to read quote cache: %w", err)
	}

	var result model.ShippingResult
	if err := json.Unmarshal(data, &result); err != nil {
		return model.ShippingResult{}, false, fmt.Errorf("failed to decode cached quote: %w", err)
	}
	return result, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, result model.ShippingResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode quote: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write quote cache: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
