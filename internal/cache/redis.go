package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// TranslationCache stores backend translations of masked segments in Redis.
// Cache failures never fail a translation; they are logged and counted.
type TranslationCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewTranslationCache creates a new Redis-based translation cache
func NewTranslationCache(config *Config, logger *zap.Logger) (*TranslationCache, error) {
	// Parse Redis URL
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pool
	if config.MaxConnections > 0 {
		opts.PoolSize = config.MaxConnections
	}
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Translation cache initialized successfully",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", opts.PoolSize),
		zap.Duration("default_ttl", config.DefaultTTL))

	return NewTranslationCacheFromClient(client, config, logger), nil
}

// NewTranslationCacheFromClient creates a cache around an existing client.
func NewTranslationCacheFromClient(client *redis.Client, config *Config, logger *zap.Logger) *TranslationCache {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "translateserver:"
	}
	return &TranslationCache{
		client: client,
		config: config,
		logger: logger,
	}
}

// Get returns the cached translation of text for the pair.
func (c *TranslationCache) Get(ctx context.Context, pair, text string) (string, bool) {
	key := c.key(pair, text)

	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		c.misses.Add(1)
		c.logger.Debug("Cache miss", zap.String("key", key))
		return "", false
	} else if err != nil {
		c.errors.Add(1)
		c.logger.Error("Cache lookup failed", zap.Error(err))
		return "", false
	}

	c.hits.Add(1)
	c.logger.Debug("Cache hit", zap.String("key", key))
	return val, true
}

// Set caches the translation of text for the pair with the default TTL.
func (c *TranslationCache) Set(ctx context.Context, pair, text, translation string) error {
	key := c.key(pair, text)

	if err := c.client.Set(ctx, key, translation, c.config.DefaultTTL).Err(); err != nil {
		c.errors.Add(1)
		c.logger.Error("Failed to cache translation", zap.Error(err))
		return fmt.Errorf("failed to cache translation: %w", err)
	}
	return nil
}

// Stats returns cache performance statistics
func (c *TranslationCache) Stats() Stats {
	stats := Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
	}

	// Calculate hit rate
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// Close closes the Redis connection
func (c *TranslationCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// key hashes the segment so arbitrary text makes a bounded key.
func (c *TranslationCache) key(pair, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%str:%s:%s", c.config.KeyPrefix, pair, hex.EncodeToString(sum[:16]))
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	start := 0
	if i := strings.Index(url, "://"); i >= 0 && i < at {
		start = i + 3
	}
	if colon := strings.Index(url[start:at], ":"); colon >= 0 {
		return url[:start+colon+1] + "***" + url[at:]
	}
	return url
}
