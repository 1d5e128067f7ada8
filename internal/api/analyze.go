package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/internal/analysis"
	"github.com/flipcheck/flipcheck/internal/cache"
)

type analyzeRequest struct {
	Username string `json:"username"`
	Verbose  bool   `json:"verbose"`
	Force    bool   `json:"force"`
}

type batchRequest struct {
	Usernames []string `json:"usernames"`
}

// analyze runs one analysis and returns its report, serving from cache unless forced
func (r *Router) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		abortWithError(c, NewError(http.StatusBadRequest, "username is required"))
		return
	}

	ctx := c.Request.Context()

	if !req.Force {
		cached, err := r.analyzer.Cached(ctx, req.Username)
		switch {
		case err == nil:
			c.Header("X-Cache", "HIT")
			c.Header("X-Analysis-ID", cached.ID)
			c.JSON(http.StatusOK, cached.Report)
			return
		case !errors.Is(err, cache.ErrMiss):
			// A broken cache must not take analyses down with it
			r.logger.Warn("Cache lookup failed", zap.String("username", req.Username), zap.Error(err))
		}
	}

	result := r.analyzer.AnalyzeUser(ctx, analysis.Request{
		Username:    req.Username,
		RequesterID: requester(c),
		Verbose:     req.Verbose,
	})
	if result.Failed() {
		abortWithError(c, result.Err)
		return
	}

	c.Header("X-Cache", "MISS")
	c.Header("X-Analysis-ID", result.Analysis.ID)
	c.JSON(http.StatusOK, result.Analysis.Report)
}

// streamAnalysis reports analysis stages as server-sent events
func (r *Router) streamAnalysis(c *gin.Context) {
	events := r.analyzer.Stream(c.Request.Context(), analysis.Request{
		Username:    c.Param("username"),
		RequesterID: requester(c),
		Verbose:     c.Query("verbose") == "true",
	})

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		p, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(string(p.Stage), p)
		return !p.Terminal()
	})

	// Let the producer finish if the client went away mid-stream
	for range events {
	}
}

// analyzeBatch analyses several users sequentially and returns the completed analyses
func (r *Router) analyzeBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	usernames := make([]string, 0, len(req.Usernames))
	for _, name := range req.Usernames {
		if name = strings.TrimSpace(name); name != "" {
			usernames = append(usernames, name)
		}
	}
	switch {
	case len(usernames) == 0:
		abortWithError(c, NewError(http.StatusBadRequest, "usernames is required"))
		return
	case len(usernames) > maxBatchSize:
		abortWithError(c, NewError(http.StatusBadRequest, fmt.Sprintf("at most %d usernames per batch", maxBatchSize)))
		return
	}

	analyses := r.analyzer.AnalyzeBatch(c.Request.Context(), usernames, requester(c))

	c.JSON(http.StatusOK, gin.H{
		"requested": len(usernames),
		"completed": len(analyses),
		"analyses":  analyses,
	})
}

// preview returns the cheap account summary
func (r *Router) preview(c *gin.Context) {
	c.JSON(http.StatusOK, r.analyzer.Preview(c.Request.Context(), c.Param("username")))
}
