package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/internal/analysis"
	"github.com/flipcheck/flipcheck/internal/budget"
	"github.com/flipcheck/flipcheck/internal/cache"
	"github.com/flipcheck/flipcheck/internal/reddit"
	"github.com/flipcheck/flipcheck/internal/scoring"
	"github.com/flipcheck/flipcheck/pkg/config"
	"github.com/flipcheck/flipcheck/pkg/logging"
)

// App holds the process-wide services shared by the binaries
type App struct {
	Config   *config.Config
	Reddit   *reddit.Client
	Budget   *budget.Tracker
	Cache    cache.Store
	Analyzer *analysis.Analyzer
}

// New builds every service from cfg
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.WithComponent("app")

	redditClient, err := reddit.New(&cfg.Reddit)
	if err != nil {
		return nil, fmt.Errorf("failed to create Reddit client: %w", err)
	}

	pipeline, err := scoring.NewGeminiPipeline(ctx, &cfg.Scoring)
	if err != nil {
		return nil, fmt.Errorf("failed to create scoring pipeline: %w", err)
	}

	tracker := budget.New(&cfg.Budget)
	if err := tracker.RegisterMetrics(); err != nil {
		// Metrics are optional; budgeting works without them
		logger.Warn("Failed to register budget metrics", zap.Error(err))
	}

	store, err := cache.New(&cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	return &App{
		Config:   cfg,
		Reddit:   redditClient,
		Budget:   tracker,
		Cache:    store,
		Analyzer: analysis.New(&cfg.Analysis, redditClient, pipeline, tracker, store),
	}, nil
}

// Close releases connections held by the services
func (a *App) Close() {
	if closer, ok := a.Cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logging.GetLogger().Error("Failed to close cache", zap.Error(err))
		}
	}
}
