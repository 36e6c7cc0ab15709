package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/application/services"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// HealthChecker is a dependency that can report its health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandlers serves GET /health.
type HealthHandlers struct {
	db          HealthChecker
	sdkService  *services.SDKService
	perfTracker *performance.Tracker
}

// NewHealthHandlers creates health handlers with injected dependencies
func NewHealthHandlers(db HealthChecker, sdkService *services.SDKService, perfTracker *performance.Tracker) *HealthHandlers {
	return &HealthHandlers{db: db, sdkService: sdkService, perfTracker: perfTracker}
}

// GetHealth reports database reachability and the SDK connection.
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{
		"status":       "ok",
		"database":     "ok",
		"sdkConnected": h.sdkService.Status().Connected,
		"uptime":       h.perfTracker.Uptime().Round(time.Second).String(),
	}
	if err := h.db.HealthCheck(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = err.Error()
	}
	c.JSON(status, body)
}
