package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/internal/analysis"
	"github.com/flipcheck/flipcheck/internal/budget"
	"github.com/flipcheck/flipcheck/internal/cache"
	"github.com/flipcheck/flipcheck/pkg/logging"
)

const (
	// maxBatchSize bounds synchronous batch requests
	maxBatchSize = 25

	healthTimeout = 2 * time.Second
)

// Router sets up API routes
type Router struct {
	analyzer *analysis.Analyzer
	budget   *budget.Tracker
	cache    cache.Store
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(analyzer *analysis.Analyzer, tracker *budget.Tracker, store cache.Store) *Router {
	return &Router{
		analyzer: analyzer,
		budget:   tracker,
		cache:    store,
		logger:   logging.GetLogger().With(zap.String("component", "api-router")),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.Use(requestID(), accessLog())

	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	api := engine.Group("/api")

	api.POST("/analyze", r.analyze)
	api.POST("/analyze/batch", r.analyzeBatch)
	api.GET("/analyze/:username/stream", r.streamAnalysis)
	api.GET("/preview/:username", r.preview)

	api.GET("/budget", r.budgetStatus)
	api.PUT("/budget", r.configureBudget)
	api.POST("/budget/reset", r.resetBudget)

	api.GET("/cache/stats", r.cacheStats)
	api.GET("/cache/:username", r.cachedAnalysis)
	api.DELETE("/cache/:username", r.clearCache)
}

// healthChecker is implemented by cache backends that depend on a remote server
type healthChecker interface {
	Health(ctx context.Context) error
}

// healthHandler handles health check requests. A Redis-backed cache is pinged.
func (r *Router) healthHandler(c *gin.Context) {
	body := gin.H{
		"status":  "OK",
		"service": "flipcheck-api",
	}

	checker, ok := r.cache.(healthChecker)
	if !ok {
		c.JSON(http.StatusOK, body)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := checker.Health(ctx); err != nil {
		r.logger.Warn("Cache health check failed", zap.Error(err))
		body["status"] = "UNHEALTHY"
		body["cache"] = "unavailable"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	body["cache"] = "ok"
	c.JSON(http.StatusOK, body)
}
