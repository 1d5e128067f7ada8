package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/internal/analysis"
	"github.com/flipcheck/flipcheck/pkg/logging"
	"github.com/flipcheck/flipcheck/pkg/telemetry"
)

const (
	headerRequestID   = "X-Request-ID"
	headerRequesterID = "X-Requester-ID"
	contextRequestID  = "request_id"
)

// requestID tags every request with an id, reusing the caller's when it sent one
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(contextRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// accessLog traces each request and writes one log line when it finishes
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx, span := telemetry.StartSpan(c.Request.Context(), "http.request")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.String("http.route", c.FullPath()),
			attribute.Int("http.status_code", status),
		)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("requester", requester(c)),
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			fields = append(fields, zap.String("error", errs.String()))
		}

		logger := logging.WithRequestID(c.GetString(contextRequestID)).With(zap.String("component", "api"))
		if status >= 500 {
			logger.Error("Request failed", fields...)
			return
		}
		logger.Info("Request handled", fields...)
	}
}

// requester is the caller identity; authentication happens upstream of this service
func requester(c *gin.Context) string {
	if id := c.GetHeader(headerRequesterID); id != "" {
		return id
	}
	return analysis.DefaultRequester
}
