package cache

import (
	"context"
	"errors"
	"strings"

	"github.com/flipcheck/flipcheck/internal/models"
	"github.com/flipcheck/flipcheck/pkg/config"
)

var (
	// ErrMiss is returned by Get when no analysis is cached for the key
	ErrMiss = errors.New("cache miss")
	// ErrCacheDisabled is returned when cache operations are attempted but cache is disabled
	ErrCacheDisabled = errors.New("cache is disabled")
)

// Stats describes the content of a store
type Stats struct {
	Backend  string `json:"backend"`
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity,omitempty"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
}

// Store memoizes the latest completed analysis per user
type Store interface {
	Get(ctx context.Context, username string) (*models.Analysis, error)
	Put(ctx context.Context, username string, analysis *models.Analysis) error
	Clear(ctx context.Context, username string) error
	Stats(ctx context.Context) (Stats, error)
}

// New returns the Redis store when a Redis URL is configured and an in-memory LRU otherwise
func New(cfg *config.CacheConfig) (Store, error) {
	if cfg.Enabled {
		store, err := NewRedisStore(cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return NewMemoryStore(cfg.Capacity)
}

// NormalizeKey maps every spelling of a username to one cache key:
// surrounding space and a leading "u/" or "/u/" are removed and the result is lowercased.
func NormalizeKey(username string) string {
	key := strings.TrimSpace(username)
	key = strings.TrimPrefix(key, "/")
	if len(key) >= 2 && strings.EqualFold(key[:2], "u/") {
		key = key[2:]
	}
	return strings.ToLower(strings.TrimSpace(key))
}
