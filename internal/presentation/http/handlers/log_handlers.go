package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// LogHandlers serves live logs, log levels and handler timings.
type LogHandlers struct {
	broadcaster *logging.LogBroadcaster
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewLogHandlers creates log handlers with injected dependencies
func NewLogHandlers(broadcaster *logging.LogBroadcaster, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *LogHandlers {
	return &LogHandlers{
		broadcaster: broadcaster,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// StreamLogs handles the SSE connection for live log streaming.
func (h *LogHandlers) StreamLogs(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Log broadcaster not available"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	filters := logging.AppliedFilters{
		Channel: logging.Channel(c.DefaultQuery("channel", "all")),
		Level:   logging.ParseLevel(c.DefaultQuery("level", "INFO")),
	}

	client := h.broadcaster.NewClient(filters)
	if !h.broadcaster.RegisterClient(client) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Log broadcaster stopped"})
		return
	}
	defer h.broadcaster.UnregisterClient(client)

	fmt.Fprintf(c.Writer, ": connection established\n\n")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client.Channel:
			if !ok {
				return false
			}
			fmt.Fprintf(w, "data: %s\n\n", message)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// GetLogLevels handles GET /api/v1/logs/levels - returns current log levels for all channels.
func (h *LogHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"levels": h.logger.GetChannelLevels()})
}

// SetLogLevelRequest is the body of POST /api/v1/logs/levels.
type SetLogLevelRequest struct {
	Channel string `json:"channel" binding:"required"`
	Level   string `json:"level" binding:"required"`
}

// SetLogLevel handles POST /api/v1/logs/levels - changes one channel's level.
func (h *LogHandlers) SetLogLevel(c *gin.Context) {
	var req SetLogLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel and level are required"})
		return
	}

	level := logging.ParseLevel(req.Level)
	if err := h.logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logger.System().Info("Log level changed", "channel", req.Channel, "level", level.String())
	c.JSON(http.StatusOK, gin.H{"levels": h.logger.GetChannelLevels()})
}

// GetPerformance handles GET /api/v1/logs/performance - per-operation timing stats.
func (h *LogHandlers) GetPerformance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"uptime":     h.perfTracker.Uptime().String(),
		"operations": h.perfTracker.Stats(),
		"recent":     h.perfTracker.Recent(),
	})
}
