package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/internal/models"
	"github.com/flipcheck/flipcheck/pkg/logging"
)

// DefaultCapacity bounds the in-memory store when no capacity is configured
const DefaultCapacity = 500

// MemoryStore is a bounded, least-recently-used analysis cache
type MemoryStore struct {
	entries  *lru.Cache[string, *models.Analysis]
	capacity int
	hits     atomic.Uint64
	misses   atomic.Uint64
}

// NewMemoryStore creates an LRU store holding at most capacity analyses
func NewMemoryStore(capacity int) (*MemoryStore, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	logger := logging.WithComponent("cache")
	entries, err := lru.NewWithEvict(capacity, func(key string, _ *models.Analysis) {
		logger.Debug("Evicted cached analysis", zap.String("key", key))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	logger.Info("In-memory cache initialized", zap.Int("capacity", capacity))

	return &MemoryStore{entries: entries, capacity: capacity}, nil
}

// Get returns the cached analysis for username or ErrMiss
func (m *MemoryStore) Get(_ context.Context, username string) (*models.Analysis, error) {
	a, ok := m.entries.Get(NormalizeKey(username))
	if !ok {
		m.misses.Add(1)
		return nil, ErrMiss
	}
	m.hits.Add(1)
	return a, nil
}

// Put stores analysis under username, replacing any previous entry
func (m *MemoryStore) Put(_ context.Context, username string, analysis *models.Analysis) error {
	if analysis == nil {
		return fmt.Errorf("cannot cache nil analysis for %q", username)
	}
	m.entries.Add(NormalizeKey(username), analysis)
	return nil
}

// Clear removes the entry for username
func (m *MemoryStore) Clear(_ context.Context, username string) error {
	m.entries.Remove(NormalizeKey(username))
	return nil
}

// Stats reports entry count and hit ratio counters
func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	return Stats{
		Backend:  "memory",
		Entries:  m.entries.Len(),
		Capacity: m.capacity,
		Hits:     m.hits.Load(),
		Misses:   m.misses.Load(),
	}, nil
}
