// Package middleware provides HTTP middleware for the presentation layer.
package middleware

import (
	"net/http"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

// VisitorCookieName holds the signed visitor token.
const VisitorCookieName = "cio_harness_visitor"

const visitorKey = "visitorId"

// VisitorMiddleware resolves the visitor from the signed cookie, minting a new
// visitor when the token is missing or invalid.
func VisitorMiddleware(signingKey []byte, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		marker := perfTracker.StartOperation("middleware_visitor_resolution", "")
		defer marker.Complete()

		if cookie, err := c.Request.Cookie(VisitorCookieName); err == nil {
			visitorID, err := security.ValidateVisitorToken(cookie.Value, signingKey)
			if err == nil {
				marker.VisitorID = visitorID
				c.Set(visitorKey, visitorID)
				c.Next()
				return
			}
			logger.HTTP().Debug("Rejected visitor token", "error", err.Error(), "path", c.Request.URL.Path)
		}

		now := time.Now()
		visitorID := security.GenerateULID()
		token, err := security.GenerateVisitorToken(visitorID, signingKey, now)
		if err != nil {
			marker.SetError(err)
			logger.HTTP().Error("Failed to sign visitor token", "error", err.Error())
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to create visitor"})
			return
		}

		http.SetCookie(c.Writer, &http.Cookie{
			Name:     VisitorCookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(security.VisitorTokenTTL / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		marker.VisitorID = visitorID
		marker.AddMetadata("minted", true)
		logger.HTTP().Info("New visitor", "visitorId", visitorID)

		c.Set(visitorKey, visitorID)
		c.Next()
	}
}

// GetVisitorID returns the visitor resolved by VisitorMiddleware.
func GetVisitorID(c *gin.Context) string {
	return c.GetString(visitorKey)
}
