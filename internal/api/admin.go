package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/internal/cache"
)

type budgetRequest struct {
	Ceiling        *float64 `json:"ceiling"`
	WarningPercent float64  `json:"warningPercent"`
}

func (r *Router) budgetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.budget.Status())
}

// configureBudget starts a new budget period with the given ceiling and threshold
func (r *Router) configureBudget(c *gin.Context) {
	var req budgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	switch {
	case req.Ceiling == nil:
		abortWithError(c, NewError(http.StatusBadRequest, "ceiling is required"))
		return
	case *req.Ceiling < 0:
		abortWithError(c, NewError(http.StatusBadRequest, "ceiling must not be negative"))
		return
	case req.WarningPercent < 0 || req.WarningPercent > 100:
		abortWithError(c, NewError(http.StatusBadRequest, "warningPercent must be between 0 and 100"))
		return
	}

	r.budget.Configure(*req.Ceiling, req.WarningPercent)
	c.JSON(http.StatusOK, r.budget.Status())
}

func (r *Router) resetBudget(c *gin.Context) {
	r.budget.Reset()
	c.JSON(http.StatusOK, r.budget.Status())
}

func (r *Router) cacheStats(c *gin.Context) {
	stats, err := r.cache.Stats(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// cachedAnalysis returns the full cached analysis, including status and confidence
func (r *Router) cachedAnalysis(c *gin.Context) {
	username := c.Param("username")
	a, err := r.cache.Get(c.Request.Context(), username)
	if errors.Is(err, cache.ErrMiss) {
		abortWithError(c, NewError(http.StatusNotFound, fmt.Sprintf("no cached analysis for %s", username)))
		return
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (r *Router) clearCache(c *gin.Context) {
	username := c.Param("username")
	if err := r.cache.Clear(c.Request.Context(), username); err != nil {
		abortWithError(c, err)
		return
	}
	r.logger.Info("Cleared cached analysis", zap.String("username", cache.NormalizeKey(username)))
	c.Status(http.StatusNoContent)
}
