package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sammichenVV/translateserver/internal/terms"
	"go.uber.org/zap"
)

// Redis keeps the terms of one language pair in a hash whose fields are
// normalized sources and whose values are JSON entries.
type Redis struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedis connects to cfg.RedisURL.
func NewRedis(cfg Config, src, tgt string, logger *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := NewRedisFromClient(client, cfg.KeyPrefix, src, tgt, logger)
	logger.Info("Redis term store initialized",
		zap.String("redis_url", maskURL(cfg.RedisURL)),
		zap.String("key", s.key))
	return s, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix, src, tgt string, logger *zap.Logger) *Redis {
	return &Redis{
		client: client,
		key:    prefix + "terms:" + pairName(src, tgt, "-"),
		logger: logger,
	}
}

// Load returns every stored entry ordered by key.
func (s *Redis) Load(ctx context.Context) ([]terms.Entry, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load terms: %w", err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]terms.Entry, 0, len(keys))
	for _, k := range keys {
		var e terms.Entry
		if err := json.Unmarshal([]byte(fields[k]), &e); err != nil {
			s.logger.Warn("Skipping corrupt term record", zap.String("field", k), zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Commit applies batch inside MULTI/EXEC.
func (s *Redis) Commit(ctx context.Context, batch terms.Batch) error {
	values := make([]interface{}, 0, 2*len(batch.Upserts))
	for _, e := range batch.Upserts {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal term: %w", err)
		}
		values = append(values, e.Key(), string(data))
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values...)
		}
		if len(batch.Deletes) > 0 {
			pipe.HDel(ctx, s.key, batch.Deletes...)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Term batch failed", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("failed to commit terms: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *Redis) Close() error {
	return s.client.Close()
}

var _ terms.Store = (*Redis)(nil)
