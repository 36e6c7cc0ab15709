package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/AtRiskMedia/cio-harness/internal/application/services"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/storage"
	"github.com/AtRiskMedia/cio-harness/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// UTMHandlers serves the attribution debug API.
type UTMHandlers struct {
	attributionService *services.AttributionService
	sdkService         *services.SDKService
	broadcaster        *messaging.SSEBroadcaster
	logger             *logging.ChanneledLogger
	perfTracker        *performance.Tracker
}

// NewUTMHandlers creates UTM handlers with injected dependencies
func NewUTMHandlers(
	attributionService *services.AttributionService,
	sdkService *services.SDKService,
	broadcaster *messaging.SSEBroadcaster,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *UTMHandlers {
	return &UTMHandlers{
		attributionService: attributionService,
		sdkService:         sdkService,
		broadcaster:        broadcaster,
		logger:             logger,
		perfTracker:        perfTracker,
	}
}

// GetState handles GET /api/v1/utm?url=... and runs a page view without sending it.
func (h *UTMHandlers) GetState(c *gin.Context) {
	visitorID := middleware.GetVisitorID(c)
	marker := h.perfTracker.StartOperation("get_utm_state_request", visitorID)
	defer marker.Complete()

	pageURL, err := pageURLFrom(c, c.Query("url"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url"})
		return
	}

	jar := storage.NewHTTPCookieJar(c.Writer, c.Request)
	state := h.attributionService.PageView(c.Request.Context(), visitorID, jar, pageURL)
	c.JSON(http.StatusOK, state)
}

// PageRequest is the body of POST /api/v1/utm/page.
type PageRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// PostPage handles POST /api/v1/utm/page: builds the payload and sends the page call.
func (h *UTMHandlers) PostPage(c *gin.Context) {
	visitorID := middleware.GetVisitorID(c)
	marker := h.perfTracker.StartOperation("post_utm_page_request", visitorID)
	defer marker.Complete()

	var req PageRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	pageURL, err := pageURLFrom(c, req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url"})
		return
	}
	if req.Name == "" {
		req.Name = "UTM Persistence Test"
	}

	jar := storage.NewHTTPCookieJar(c.Writer, c.Request)
	result, err := h.sdkService.Page(c.Request.Context(), visitorID, jar, pageURL, req.Name)
	if err != nil {
		marker.SetError(err)
		c.JSON(sdkErrorStatus(err), gin.H{"error": err.Error(), "payload": result.Payload})
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeleteLayer handles DELETE /api/v1/utm/:layer for durable, cookie or all.
func (h *UTMHandlers) DeleteLayer(c *gin.Context) {
	visitorID := middleware.GetVisitorID(c)
	marker := h.perfTracker.StartOperation("delete_utm_layer_request", visitorID)
	defer marker.Complete()

	jar := storage.NewHTTPCookieJar(c.Writer, c.Request)
	if err := h.attributionService.Clear(c.Request.Context(), visitorID, jar, c.Param("layer")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "layer": c.Param("layer")})
}

// GetHistory handles GET /api/v1/utm/history?limit=N
func (h *UTMHandlers) GetHistory(c *gin.Context) {
	visitorID := middleware.GetVisitorID(c)
	marker := h.perfTracker.StartOperation("get_utm_history_request", visitorID)
	defer marker.Complete()

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}

	views, err := h.attributionService.History(c.Request.Context(), visitorID, limit)
	if err != nil {
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pageViews": views})
}

// StreamEvents handles GET /api/v1/utm/events, an SSE stream of attribution
// changes for the visitor.
func (h *UTMHandlers) StreamEvents(c *gin.Context) {
	visitorID := middleware.GetVisitorID(c)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ch := h.broadcaster.AddClient(visitorID)
	defer h.broadcaster.RemoveClient(ch, visitorID)

	fmt.Fprintf(c.Writer, ": connection established\n\n")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case message := <-ch:
			fmt.Fprint(w, message)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
