package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flipcheck/flipcheck/internal/models"
	"github.com/flipcheck/flipcheck/pkg/config"
)

func testAnalysis(username string) *models.Analysis {
	now := time.Now().UTC()
	return &models.Analysis{
		ID:              models.AnalysisID(now, username),
		Username:        username,
		ConfidenceScore: 72,
		AnalyzedAt:      now,
		Status:          models.StatusCompleted,
		Report:          models.Report{Summary: "two contradictions"},
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "alice", "alice"},
		{"mixed case", "Alice", "alice"},
		{"u prefix", "u/Alice", "alice"},
		{"upper U prefix", "U/alice", "alice"},
		{"slash u prefix", "/u/alice", "alice"},
		{"surrounding space", "  u/alice  ", "alice"},
		{"space after prefix", "u/ alice", "alice"},
		{"prefix only stripped once", "u/u/alice", "u/alice"},
		{"name starting with u", "ursula", "ursula"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeKey(tt.input); got != tt.expected {
				t.Errorf("NormalizeKey(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMemoryStore_CaseAndPrefixVariantsShareEntry(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(10)
	if err != nil {
		t.Fatalf("NewMemoryStore() error: %v", err)
	}

	a := testAnalysis("alice")
	if err := store.Put(ctx, "alice", a); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	for _, name := range []string{"alice", "u/Alice", "ALICE", " /u/alice "} {
		got, err := store.Get(ctx, name)
		if err != nil {
			t.Fatalf("Get(%q) error: %v", name, err)
		}
		if got != a {
			t.Errorf("Get(%q) returned a different analysis", name)
		}
	}

	if _, err := store.Get(ctx, "bob"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get(bob) error = %v, want ErrMiss", err)
	}

	stats, _ := store.Stats(ctx)
	if stats.Entries != 1 || stats.Hits != 4 || stats.Misses != 1 || stats.Backend != "memory" {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestMemoryStore_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	store, _ := NewMemoryStore(10)

	first := testAnalysis("alice")
	second := testAnalysis("Alice")
	_ = store.Put(ctx, "alice", first)
	_ = store.Put(ctx, "u/Alice", second)

	got, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != second {
		t.Error("expected the most recent analysis")
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	store, _ := NewMemoryStore(10)
	_ = store.Put(ctx, "alice", testAnalysis("alice"))

	if err := store.Clear(ctx, "U/ALICE"); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, err := store.Get(ctx, "alice"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get() after Clear error = %v, want ErrMiss", err)
	}
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	store, _ := NewMemoryStore(2)

	_ = store.Put(ctx, "alice", testAnalysis("alice"))
	_ = store.Put(ctx, "bob", testAnalysis("bob"))
	// Touch alice so bob becomes the eviction candidate
	_, _ = store.Get(ctx, "alice")
	_ = store.Put(ctx, "carol", testAnalysis("carol"))

	if _, err := store.Get(ctx, "bob"); !errors.Is(err, ErrMiss) {
		t.Errorf("bob should have been evicted, got err %v", err)
	}
	if _, err := store.Get(ctx, "alice"); err != nil {
		t.Errorf("alice should still be cached: %v", err)
	}

	stats, _ := store.Stats(ctx)
	if stats.Entries != 2 || stats.Capacity != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestMemoryStore_RejectsNil(t *testing.T) {
	store, _ := NewMemoryStore(1)
	if err := store.Put(context.Background(), "alice", nil); err == nil {
		t.Error("Put(nil) should fail")
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	store, err := New(&config.CacheConfig{Capacity: 3})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("New() without Redis = %T, want *MemoryStore", store)
	}
}
