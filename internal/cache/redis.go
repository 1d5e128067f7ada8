package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/internal/models"
	"github.com/flipcheck/flipcheck/pkg/config"
	"github.com/flipcheck/flipcheck/pkg/logging"
)

const keyNamespace = "flipcheck:analysis:"

// RedisStore keeps analyses in Redis as JSON with a per-entry TTL
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewRedisStore connects to the configured Redis instance
func NewRedisStore(cfg *config.CacheConfig) (*RedisStore, error) {
	if !cfg.Enabled {
		return nil, ErrCacheDisabled
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger := logging.WithComponent("cache")
	logger.Info("Redis connection established", zap.Duration("ttl", cfg.TTL))

	return &RedisStore{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

// Get returns the cached analysis for username or ErrMiss
func (c *RedisStore) Get(ctx context.Context, username string) (*models.Analysis, error) {
	if c == nil || c.client == nil {
		return nil, ErrCacheDisabled
	}

	raw, err := c.client.Get(ctx, namespaceKey(username)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var analysis models.Analysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		// An undecodable entry is as good as none
		c.logger.Warn("Dropping corrupt cache entry", zap.String("username", username), zap.Error(err))
		c.misses.Add(1)
		return nil, ErrMiss
	}
	c.hits.Add(1)
	return &analysis, nil
}

// Put stores analysis under username with the configured TTL
func (c *RedisStore) Put(ctx context.Context, username string, analysis *models.Analysis) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	if analysis == nil {
		return fmt.Errorf("cannot cache nil analysis for %q", username)
	}

	raw, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	return c.client.Set(ctx, namespaceKey(username), raw, c.ttl).Err()
}

// Clear removes the entry for username
func (c *RedisStore) Clear(ctx context.Context, username string) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Del(ctx, namespaceKey(username)).Err()
}

// Stats counts the namespaced keys currently stored
func (c *RedisStore) Stats(ctx context.Context) (Stats, error) {
	if c == nil || c.client == nil {
		return Stats{}, ErrCacheDisabled
	}

	entries := 0
	iter := c.client.Scan(ctx, 0, keyNamespace+"*", 100).Iterator()
	for iter.Next(ctx) {
		entries++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("redis scan: %w", err)
	}

	return Stats{
		Backend: "redis",
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Close closes the Redis connection
func (c *RedisStore) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health checks Redis health
func (c *RedisStore) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Ping(ctx).Err()
}

func namespaceKey(username string) string {
	return keyNamespace + NormalizeKey(username)
}
