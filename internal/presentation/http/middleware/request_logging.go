package middleware

import (
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// RequestLogger logs each request on the http channel after it completes.
func RequestLogger(logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
		}
		if visitorID := GetVisitorID(c); visitorID != "" {
			attrs = append(attrs, "visitorId", visitorID)
		}
		switch {
		case status >= 500:
			logger.HTTP().Error("Request failed", attrs...)
		case status >= 400:
			logger.HTTP().Warn("Request rejected", attrs...)
		default:
			logger.HTTP().Debug("Request handled", attrs...)
		}
	}
}
