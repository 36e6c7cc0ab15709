package handlers

import (
	"io"
	"net/http"

	"github.com/AtRiskMedia/cio-harness/internal/application/services"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cio-harness/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SDKHandlers contains the config panel and call form handlers.
type SDKHandlers struct {
	sdkService  *services.SDKService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewSDKHandlers creates SDK handlers with injected dependencies
func NewSDKHandlers(sdkService *services.SDKService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *SDKHandlers {
	return &SDKHandlers{
		sdkService:  sdkService,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// ConfigRequest is the body of POST /api/v1/sdk/config.
type ConfigRequest struct {
	WriteKey string `json:"writeKey"`
	Region   string `json:"region"`
	SiteID   string `json:"siteId"`
}

// IdentifyRequest is the body of POST /api/v1/sdk/identify.
type IdentifyRequest struct {
	UserID  string         `json:"userId"`
	Traits  map[string]any `json:"traits"`
	Options map[string]any `json:"options"`
}

// TrackRequest is the body of POST /api/v1/sdk/track.
type TrackRequest struct {
	Event      string         `json:"event"`
	Properties map[string]any `json:"properties"`
}

// GetConfig handles GET /api/v1/sdk/config
func (h *SDKHandlers) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.sdkService.Status())
}

// PostConfig handles POST /api/v1/sdk/config
func (h *SDKHandlers) PostConfig(c *gin.Context) {
	marker := h.perfTracker.StartOperation("post_sdk_config_request", middleware.GetVisitorID(c))
	defer marker.Complete()

	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	status, err := h.sdkService.Connect(c.Request.Context(), req.WriteKey, req.Region, req.SiteID)
	if err != nil {
		marker.SetError(err)
		c.JSON(sdkErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// DeleteConfig handles DELETE /api/v1/sdk/config
func (h *SDKHandlers) DeleteConfig(c *gin.Context) {
	marker := h.perfTracker.StartOperation("delete_sdk_config_request", middleware.GetVisitorID(c))
	defer marker.Complete()

	if err := h.sdkService.Disconnect(c.Request.Context(), middleware.GetVisitorID(c)); err != nil {
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.sdkService.Status())
}

// PostIdentify handles POST /api/v1/sdk/identify
func (h *SDKHandlers) PostIdentify(c *gin.Context) {
	visitorID := middleware.GetVisitorID(c)
	marker := h.perfTracker.StartOperation("post_sdk_identify_request", visitorID)
	defer marker.Complete()

	var req IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Traits == nil {
		req.Traits = map[string]any{}
	}

	msg, err := h.sdkService.Identify(c.Request.Context(), visitorID, req.UserID, req.Traits, req.Options)
	if err != nil {
		marker.SetError(err)
		c.JSON(sdkErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// PostIdentifyJSON handles POST /api/v1/sdk/identify/json with a raw JSON object body.
func (h *SDKHandlers) PostIdentifyJSON(c *gin.Context) {
	visitorID := middleware.GetVisitorID(c)
	marker := h.perfTracker.StartOperation("post_sdk_identify_json_request", visitorID)
	defer marker.Complete()

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}

	msg, err := h.sdkService.IdentifyFromJSON(c.Request.Context(), visitorID, raw)
	if err != nil {
		marker.SetError(err)
		c.JSON(sdkErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// PostTrack handles POST /api/v1/sdk/track
func (h *SDKHandlers) PostTrack(c *gin.Context) {
	visitorID := middleware.GetVisitorID(c)
	marker := h.perfTracker.StartOperation("post_sdk_track_request", visitorID)
	defer marker.Complete()

	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	msg, err := h.sdkService.Track(c.Request.Context(), visitorID, req.Event, req.Properties)
	if err != nil {
		marker.SetError(err)
		c.JSON(sdkErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// PostReset handles POST /api/v1/sdk/reset
func (h *SDKHandlers) PostReset(c *gin.Context) {
	visitorID := middleware.GetVisitorID(c)
	marker := h.perfTracker.StartOperation("post_sdk_reset_request", visitorID)
	defer marker.Complete()

	if err := h.sdkService.Reset(c.Request.Context(), visitorID); err != nil {
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
