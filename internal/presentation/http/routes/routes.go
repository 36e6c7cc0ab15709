// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/AtRiskMedia/cio-harness/internal/application/container"
	"github.com/AtRiskMedia/cio-harness/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/cio-harness/internal/presentation/http/middleware"
	"github.com/AtRiskMedia/cio-harness/internal/presentation/pages"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(container.Settings.AllowedOrigins))
	r.Use(middleware.VisitorMiddleware(container.Keys.Signing, container.Logger, container.PerfTracker))
	r.Use(middleware.RequestLogger(container.Logger))

	renderer, err := pages.NewRenderer()
	if err != nil {
		// Templates are embedded; a parse failure is a build defect.
		panic(err)
	}

	// Initialize handlers
	pageHandlers := handlers.NewPageHandlers(renderer, container.SDKService, container.WebhookService, container.Logger, container.PerfTracker)
	utmHandlers := handlers.NewUTMHandlers(container.AttributionService, container.SDKService, container.SSEBroadcaster, container.Logger, container.PerfTracker)
	sdkHandlers := handlers.NewSDKHandlers(container.SDKService, container.Logger, container.PerfTracker)
	consoleHandlers := handlers.NewConsoleHandlers(container.ConsoleService, container.ConsoleBroadcaster, container.Settings.AllowedOrigins, container.Logger, container.PerfTracker)
	logHandlers := handlers.NewLogHandlers(container.LogBroadcaster, container.Logger, container.PerfTracker)
	webhookHandlers := handlers.NewWebhookHandlers(container.WebhookService, container.Logger, container.PerfTracker)
	healthHandlers := handlers.NewHealthHandlers(container.DB, container.SDKService, container.PerfTracker)

	// Pages
	r.GET("/", pageHandlers.Home)
	r.GET("/hello-world", pageHandlers.Hello)
	r.GET("/utm-test", pageHandlers.UTMTest)
	r.GET("/webhook-data-test", pageHandlers.WebhookDataTest)

	r.GET("/health", healthHandlers.GetHealth)

	// Webhook test data keeps its original unversioned path for existing webhooks.
	webhookAPI := r.Group("/api/webhook-test-data")
	{
		webhookAPI.GET("", webhookHandlers.GetWebhookData)
		webhookAPI.POST("", webhookHandlers.PostWebhookData)
		webhookAPI.GET("/:key", webhookHandlers.GetWebhookDataByKey)
		for _, method := range []string{"PUT", "PATCH", "DELETE"} {
			webhookAPI.Handle(method, "", webhookHandlers.MethodNotAllowed)
			webhookAPI.Handle(method, "/:key", webhookHandlers.MethodNotAllowed)
		}
		webhookAPI.POST("/:key", webhookHandlers.MethodNotAllowed)
	}

	api := r.Group("/api/v1")
	{
		utm := api.Group("/utm")
		{
			utm.GET("", utmHandlers.GetState)
			utm.POST("/page", utmHandlers.PostPage)
			utm.GET("/history", utmHandlers.GetHistory)
			utm.GET("/events", utmHandlers.StreamEvents)
			utm.DELETE("/:layer", utmHandlers.DeleteLayer)
		}

		sdk := api.Group("/sdk")
		{
			sdk.GET("/config", sdkHandlers.GetConfig)
			sdk.POST("/config", sdkHandlers.PostConfig)
			sdk.DELETE("/config", sdkHandlers.DeleteConfig)
			sdk.POST("/identify", sdkHandlers.PostIdentify)
			sdk.POST("/identify/json", sdkHandlers.PostIdentifyJSON)
			sdk.POST("/track", sdkHandlers.PostTrack)
			sdk.POST("/reset", sdkHandlers.PostReset)
		}

		console := api.Group("/console")
		{
			console.GET("", consoleHandlers.GetEntries)
			console.DELETE("", consoleHandlers.DeleteEntries)
			console.GET("/ws", consoleHandlers.Stream)
		}

		logs := api.Group("/logs")
		{
			logs.GET("/stream", logHandlers.StreamLogs)
			logs.GET("/levels", logHandlers.GetLogLevels)
			logs.POST("/levels", logHandlers.SetLogLevel)
			logs.GET("/performance", logHandlers.GetPerformance)
		}
	}

	return r
}
