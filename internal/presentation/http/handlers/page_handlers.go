package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/application/services"
	"github.com/AtRiskMedia/cio-harness/internal/domain/attribution"
	"github.com/AtRiskMedia/cio-harness/internal/domain/webhook"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/storage"
	"github.com/AtRiskMedia/cio-harness/internal/presentation/http/middleware"
	"github.com/AtRiskMedia/cio-harness/internal/presentation/pages"
	"github.com/gin-gonic/gin"
)

const utmPageName = "UTM Persistence Test"

// PageHandlers renders the harness pages.
type PageHandlers struct {
	renderer       *pages.Renderer
	sdkService     *services.SDKService
	webhookService *services.WebhookService
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewPageHandlers creates page handlers with injected dependencies
func NewPageHandlers(
	renderer *pages.Renderer,
	sdkService *services.SDKService,
	webhookService *services.WebhookService,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *PageHandlers {
	return &PageHandlers{
		renderer:       renderer,
		sdkService:     sdkService,
		webhookService: webhookService,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// HomePage is the data of the SDK console page.
type HomePage struct {
	Title  string
	Nav    []pages.NavItem
	Status *services.SDKStatus
}

// HelloPage is the data of the page-tracking smoke test page.
type HelloPage struct {
	Title     string
	Nav       []pages.NavItem
	Connected bool
	Sent      bool
}

// FieldRow is one row of the persisted values table.
type FieldRow struct {
	Param string
	Value string
}

// LogLine is one line of the UTM page script log.
type LogLine struct {
	Timestamp string
	Level     string
	Message   string
}

// UTMPage is the data of the UTM persistence test page.
type UTMPage struct {
	Title  string
	Nav    []pages.NavItem
	State  *services.DebugState
	Fields []FieldRow
	Logs   []LogLine
}

// WebhookPage is the data of the webhook data test page.
type WebhookPage struct {
	Title         string
	Nav           []pages.NavItem
	Origin        string
	Keys          []webhook.Summary
	SamplePayload string
}

// Home handles GET /
func (h *PageHandlers) Home(c *gin.Context) {
	h.render(c, "home", HomePage{
		Title:  "Customer.io Pipelines SDK",
		Nav:    pages.Nav("/"),
		Status: h.sdkService.Status(),
	})
}

// Hello handles GET /hello-world, sending a page call for the visit.
func (h *PageHandlers) Hello(c *gin.Context) {
	visitorID := middleware.GetVisitorID(c)
	marker := h.perfTracker.StartOperation("get_hello_page", visitorID)
	defer marker.Complete()

	jar := storage.NewHTTPCookieJar(c.Writer, c.Request)
	result, err := h.sdkService.Page(c.Request.Context(), visitorID, jar, requestURL(c), "Hello World")
	if err != nil {
		marker.SetError(err)
	}
	h.render(c, "hello", HelloPage{
		Title:     "Hello World",
		Nav:       pages.Nav("/hello-world"),
		Connected: h.sdkService.Status().Connected,
		Sent:      result.Sent,
	})
}

// UTMTest handles GET /utm-test. The visit itself is the page view under test.
func (h *PageHandlers) UTMTest(c *gin.Context) {
	visitorID := middleware.GetVisitorID(c)
	marker := h.perfTracker.StartOperation("get_utm_test_page", visitorID)
	defer marker.Complete()

	ctx := c.Request.Context()
	jar := storage.NewHTTPCookieJar(c.Writer, c.Request)
	pageURL := requestURL(c)

	result, err := h.sdkService.Page(ctx, visitorID, jar, pageURL, utmPageName)
	if err != nil {
		marker.SetError(err)
		h.logger.UTM().Warn("Page call failed on UTM test page", "visitorId", visitorID, "error", err.Error())
	}
	state := result.State

	fields := make([]FieldRow, 0, len(attribution.Fields))
	for _, f := range attribution.Fields {
		fields = append(fields, FieldRow{Param: f.QueryParam(), Value: state.UTMData.Get(f)})
	}

	payloadJSON, _ := json.Marshal(state.PagePayload)
	now := time.Now().Format("15:04:05")
	visitorMsg := "[cio-utm-persist] Organic visitor, no UTM data attached"
	if state.HasUTMs {
		visitorMsg = "[cio-utm-persist] Campaign visitor, UTM data attached"
	}

	h.render(c, "utm_test", UTMPage{
		Title:  utmPageName,
		Nav:    pages.Nav("/utm-test"),
		State:  state,
		Fields: fields,
		Logs: []LogLine{
			{Timestamp: now, Level: "INFO", Message: fmt.Sprintf("_cio.page(%q, %s)", utmPageName, payloadJSON)},
			{Timestamp: now, Level: "INFO", Message: visitorMsg},
		},
	})
}

// WebhookDataTest handles GET /webhook-data-test
func (h *PageHandlers) WebhookDataTest(c *gin.Context) {
	keys, err := h.webhookService.List(c.Request.Context())
	if err != nil {
		h.logger.Webhook().Warn("Could not list keys for page", "error", err.Error())
		keys = []webhook.Summary{}
	}
	origin := requestURL(c)
	origin.Path, origin.RawQuery = "", ""

	h.render(c, "webhook", WebhookPage{
		Title:         "Webhook Data Test",
		Nav:           pages.Nav("/webhook-data-test"),
		Origin:        origin.String(),
		Keys:          keys,
		SamplePayload: "{\n  \"firstName\": \"Ada\",\n  \"plan\": \"pro\"\n}",
	})
}

func (h *PageHandlers) render(c *gin.Context, name string, data any) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Render(c.Writer, name, data); err != nil {
		h.logger.HTTP().Error("Page render failed", "page", name, "error", err.Error())
		c.String(http.StatusInternalServerError, "render error")
	}
}
