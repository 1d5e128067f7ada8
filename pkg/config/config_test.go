package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("FLIPCHECK_BUDGET_CEILING", "125.5")
	t.Setenv("FLIPCHECK_REDDIT_PAGE_DELAY", "250ms")
	t.Setenv("FLIPCHECK_BATCH_USERNAMES", "alice, bob,,carol")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Budget.Ceiling != 125.5 {
		t.Errorf("Expected budget ceiling from env, got: %v", cfg.Budget.Ceiling)
	}
	if cfg.Reddit.PageDelay != 250*time.Millisecond {
		t.Errorf("Expected page delay from env, got: %v", cfg.Reddit.PageDelay)
	}
	if len(cfg.Batch.Usernames) != 3 || cfg.Batch.Usernames[1] != "bob" {
		t.Errorf("Expected three batch usernames, got: %v", cfg.Batch.Usernames)
	}
	if cfg.Reddit.CommentsMaxRequests != 50 || cfg.Reddit.PostsMaxRequests != 20 {
		t.Errorf("Unexpected request ceilings: %d/%d", cfg.Reddit.CommentsMaxRequests, cfg.Reddit.PostsMaxRequests)
	}
	if cfg.Budget.WarningPercent != 80 {
		t.Errorf("Expected default warning percent 80, got: %v", cfg.Budget.WarningPercent)
	}
	if cfg.Cache.Enabled && os.Getenv("FLIPCHECK_REDIS_URL") == "" {
		t.Error("Redis cache should be disabled without a URL")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Reddit: RedditConfig{
				BaseURL:             "https://www.reddit.com",
				UserAgent:           "test-agent",
				MaxAttempts:         3,
				CommentsMaxItems:    100,
				PostsMaxItems:       100,
				CommentsMaxRequests: 50,
				PostsMaxRequests:    20,
			},
			Budget: BudgetConfig{Ceiling: 10, WarningPercent: 80},
			Cache:  CacheConfig{Capacity: 10},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("Valid config should not error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base url", func(c *Config) { c.Reddit.BaseURL = "" }},
		{"missing user agent", func(c *Config) { c.Reddit.UserAgent = "" }},
		{"too many attempts", func(c *Config) { c.Reddit.MaxAttempts = 11 }},
		{"zero request ceiling", func(c *Config) { c.Reddit.PostsMaxRequests = 0 }},
		{"negative ceiling", func(c *Config) { c.Budget.Ceiling = -1 }},
		{"warning over 100", func(c *Config) { c.Budget.WarningPercent = 120 }},
		{"zero cache capacity", func(c *Config) { c.Cache.Capacity = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}
