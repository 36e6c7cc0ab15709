// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"

	"github.com/AtRiskMedia/cio-harness/internal/application/services"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/database"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/performance"
	sqldb "github.com/AtRiskMedia/cio-harness/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/persistence/history"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/persistence/settings"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/security"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/storage"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/webhookstore"
	"github.com/AtRiskMedia/cio-harness/pkg/config"
	"github.com/spf13/afero"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Harness Services
	AttributionService *services.AttributionService
	SDKService         *services.SDKService
	ConsoleService     *services.ConsoleService
	WebhookService     *services.WebhookService

	// Live channels
	ConsoleBroadcaster *messaging.ConsoleBroadcaster
	SSEBroadcaster     *messaging.SSEBroadcaster
	LogBroadcaster     *logging.LogBroadcaster

	// Infrastructure Dependencies
	Settings     *config.Settings
	Logger       *logging.ChanneledLogger
	PerfTracker  *performance.Tracker
	DB           *sqldb.DB
	Keys         *security.Keys
	DurableStore *storage.SQLDurableStore
}

// Options lets callers replace infrastructure, mainly for tests.
type Options struct {
	Fs            afero.Fs
	ClientFactory services.ClientFactory
}

// NewContainer opens the database, creates the schema and wires all singleton services
func NewContainer(cfg *config.Settings, logger *logging.ChanneledLogger, logBroadcaster *logging.LogBroadcaster, opts Options) (*Container, error) {
	keys, err := security.DeriveKeys(cfg.HarnessSecret)
	if err != nil {
		return nil, fmt.Errorf("derive keys: %w", err)
	}

	db, err := sqldb.NewConnectionWithLogger(sqldb.Options{
		Driver:             cfg.DBDriver,
		DSN:                cfg.DBDSN,
		AuthToken:          cfg.TursoAuthToken,
		MaxOpenConns:       cfg.DBMaxOpenConns,
		MaxIdleConns:       cfg.DBMaxIdleConns,
		ConnMaxLifetime:    cfg.DBConnMaxLifetime,
		SlowQueryThreshold: cfg.SlowQueryThreshold,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewTableCreator().CreateSchema(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	clientFactory := opts.ClientFactory
	if clientFactory == nil {
		clientFactory = services.NewCDPClientFactory(cfg.CDPEndpoint, cfg.CDPTimeout, cfg.CDPMaxRetries, logger)
	}

	perfTracker := performance.NewTracker(performance.DefaultTrackerConfig())
	durableStore := storage.NewSQLDurableStore(db)
	pageViews := history.NewSQLPageViewRepository(db, logger)
	credentialsRepo := settings.NewSQLCredentialsRepository(db, logger, keys.Encryption)
	webhookStore := webhookstore.NewFileStore(fs, cfg.WebhookStorePath, logger.Webhook())

	consoleBroadcaster := messaging.NewConsoleBroadcaster(logger)
	sseBroadcaster := messaging.NewSSEBroadcaster(logger)

	attributionService := services.NewAttributionService(durableStore, pageViews, sseBroadcaster, logger, perfTracker)
	consoleService := services.NewConsoleService(cfg.ConsoleMaxEntries, consoleBroadcaster, logger)

	return &Container{
		AttributionService: attributionService,
		SDKService: services.NewSDKService(credentialsRepo, durableStore, attributionService,
			consoleService, clientFactory, logger, perfTracker),
		ConsoleService: consoleService,
		WebhookService: services.NewWebhookService(webhookStore, logger, perfTracker),

		ConsoleBroadcaster: consoleBroadcaster,
		SSEBroadcaster:     sseBroadcaster,
		LogBroadcaster:     logBroadcaster,

		Settings:     cfg,
		Logger:       logger,
		PerfTracker:  perfTracker,
		DB:           db,
		Keys:         keys,
		DurableStore: durableStore,
	}, nil
}

// Close releases the database connection.
func (c *Container) Close() error {
	return c.DB.Close()
}
