// services/farm/internal/infrastructure/cache.go
package infrastructure

import (
	"context"
	"fmt"
	"time"

	"example.com/hydrofarm/services/farm/config"
	"github.com/go-redis/redis/v8"
)

// Cache wraps Redis client for caching operations.
type Cache struct {
	client *redis.Client
}

// Cache key layout lives here so services cannot drift apart on naming.
// Everything is namespaced under farm: to coexist with other tenants on a
// shared Redis.

// LatestReadingKey is where the freshest reading of one sensor is cached.
func LatestReadingKey(sensorID string) string {
	return "farm:reading:latest:" + sensorID
}

// DeviceUIDKey is where a device record is cached by its wire identifier.
func DeviceUIDKey(deviceUID string) string {
	return "farm:device:uid:" + deviceUID
}

// NewCache creates a new cache connection.
func NewCache(cfg config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Set stores a value in cache with expiration.
func (c *Cache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from cache.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

// Delete removes a value from cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Exists checks if a key exists in cache.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	return n > 0, err
}

// Close closes the cache connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
