// Package startup prepares the application server
package startup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/application/container"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/presentation/http/server"
	"github.com/AtRiskMedia/cio-harness/pkg/config"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const historyPurgeInterval = time.Hour

// Initialize performs the complete startup sequence and blocks until SIGINT or
// SIGTERM, then shuts down gracefully.
func Initialize(cfg *config.Settings) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Run(ctx, cfg, container.Options{})
}

// Run starts the harness and returns after ctx is cancelled and shutdown completes.
func Run(ctx context.Context, cfg *config.Settings, opts container.Options) error {
	setupLogging(cfg)
	start := time.Now().UTC()

	log.Println("\033[32m" + `
  ▄▄▄ ▄▄ ▄▄▄    ▄  ▄ ▄▄▄ ▄▄▄ ▄▄  ▄▄▄ ▄▄▄ ▄▄▄
  █   █  █ █    █▄▄█ █▄█ █▄▀ █ █ ▀▄  █  █▀
  ▀▀▀ ▀▀ ▀▀▀    ▀  ▀ ▀ ▀ ▀ ▀ ▀ ▀ ▀▀▀  ▀  ▀▀▀
` + "\033[97m" + `
  Customer.io Pipelines test harness
` + "\033[0m")

	// Step 1: Initialize logging with live streaming
	log.Println("Initializing logging...")
	logBroadcaster := logging.NewLogBroadcaster()
	defer logBroadcaster.Shutdown()

	loggerConfig := logging.DefaultLoggerConfig()
	loggerConfig.DefaultLevel = logging.ParseLevel(cfg.LogLevel)
	loggerConfig.JSONFormat = cfg.LogJSON
	loggerConfig.LogDirectory = cfg.LogDir
	loggerConfig.Broadcaster = logBroadcaster
	logger, err := logging.NewChanneledLogger(loggerConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Close()
	logger.Startup().Info("Channeled logging initialized", "level", cfg.LogLevel)

	// Step 2: Create dependency injection container
	phase := time.Now()
	appContainer, err := container.NewContainer(cfg, logger, logBroadcaster, opts)
	if err != nil {
		logger.LogStartupPhase("container", time.Since(phase), false)
		return fmt.Errorf("failed to create container: %w", err)
	}
	logger.LogStartupPhase("container", time.Since(phase), true)

	// Step 3: Restore or seed SDK credentials
	phase = time.Now()
	if err := seedCredentials(ctx, appContainer); err != nil {
		logger.LogStartupPhase("credentials", time.Since(phase), false)
		appContainer.Close()
		return err
	}
	logger.LogStartupPhase("credentials", time.Since(phase), true)

	// Step 4: Start background workers and the HTTP server
	httpServer := server.New(appContainer)
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return appContainer.ConsoleBroadcaster.Run(groupCtx)
	})

	group.Go(func() error {
		return purgeHistoryLoop(groupCtx, appContainer)
	})

	group.Go(func() error {
		return httpServer.Start()
	})

	// Step 5: Graceful shutdown once the context ends or a worker fails
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
			return err
		}
		logger.Shutdown().Info("HTTP server stopped successfully")
		return nil
	})

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", cfg.Port,
		"sdkConnected", appContainer.SDKService.Status().Connected)

	runErr := group.Wait()

	logger.Shutdown().Info("Closing database...")
	if err := appContainer.Close(); err != nil {
		logger.Shutdown().Error("Error closing database", "error", err.Error())
	}

	logger.Shutdown().Info("Application shutdown complete", "totalUptime", time.Since(start))
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// seedCredentials connects with CIO_WRITE_KEY when set, otherwise restores the
// stored credentials.
func seedCredentials(ctx context.Context, c *container.Container) error {
	if c.Settings.CIOWriteKey != "" {
		if _, err := c.SDKService.Connect(ctx, c.Settings.CIOWriteKey, c.Settings.CIORegion, c.Settings.CIOSiteID); err != nil {
			return fmt.Errorf("failed to seed credentials from environment: %w", err)
		}
		c.Logger.Startup().Info("SDK credentials seeded from environment", "region", c.Settings.CIORegion)
		return nil
	}
	if err := c.SDKService.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore credentials: %w", err)
	}
	return nil
}

func purgeHistoryLoop(ctx context.Context, c *container.Container) error {
	ticker := time.NewTicker(historyPurgeInterval)
	defer ticker.Stop()

	for {
		if _, err := c.AttributionService.PurgeHistory(ctx, c.Settings.PageViewHistoryRetention); err != nil {
			c.Logger.System().Warn("Page view purge failed", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// setupLogging configures gin and the standard logger
func setupLogging(cfg *config.Settings) {
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
