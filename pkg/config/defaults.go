// Package config provides centralized settings for the harness, read from the
// environment with an optional .env file.
package config

import (
	"fmt"
	"log"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Settings holds every tunable of the harness.
type Settings struct {
	// Server Configuration
	Port               string        `env:"PORT" envDefault:"8080"`
	ServerReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	ServerWriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"0s"` // zero keeps log and attribution streams open
	ServerIdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	AllowedOrigins     []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://127.0.0.1:5173,http://localhost:8080"`
	GinMode            string        `env:"GIN_MODE" envDefault:"debug"`

	// Database
	DBDriver                 string        `env:"DB_DRIVER" envDefault:"sqlite3"`
	DBDSN                    string        `env:"DB_DSN" envDefault:".data/harness.db"`
	TursoAuthToken           string        `env:"TURSO_AUTH_TOKEN"`
	DBMaxOpenConns           int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns           int           `env:"DB_MAX_IDLE_CONNS" envDefault:"3"`
	DBConnMaxLifetime        time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	SlowQueryThreshold       time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"100ms"`
	PageViewHistoryRetention time.Duration `env:"PAGE_VIEW_HISTORY_RETENTION" envDefault:"720h"`

	// Webhook store
	WebhookStorePath string `env:"WEBHOOK_STORE_PATH" envDefault:".data/webhook-test-data.json"`

	// Secrets and credential seed
	HarnessSecret string `env:"HARNESS_SECRET" envDefault:"cio-harness-development-secret"`
	CIOWriteKey   string `env:"CIO_WRITE_KEY"`
	CIORegion     string `env:"CIO_REGION" envDefault:"us"`
	CIOSiteID     string `env:"CIO_SITE_ID"`

	// CDP client
	CDPEndpoint   string        `env:"CIO_ENDPOINT"`
	CDPMaxRetries uint          `env:"CDP_MAX_RETRIES" envDefault:"3"`
	CDPTimeout    time.Duration `env:"CDP_TIMEOUT" envDefault:"10s"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"true"`
	LogDir   string `env:"LOG_DIR"`

	// Debug console
	ConsoleMaxEntries int `env:"CONSOLE_MAX_ENTRIES" envDefault:"200"`
}

// Load reads .env (without overriding variables already set) and parses the
// environment into Settings.
func Load() (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found -- config defaults will be used")
	}
	return Parse(nil)
}

// Parse builds Settings from the given environment map, or from the process
// environment when environ is nil.
func Parse(environ map[string]string) (*Settings, error) {
	var opts env.Options
	if environ != nil {
		opts.Environment = environ
	}

	var defaults Settings
	if err := env.ParseWithOptions(&defaults, env.Options{Environment: map[string]string{}}); err != nil {
		return nil, fmt.Errorf("parse defaults: %w", err)
	}

	var settings Settings
	if err := env.ParseWithOptions(&settings, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	logOverrides(&defaults, &settings)
	return &settings, nil
}

// logOverrides prints each setting that differs from its default. Secret values
// are never printed.
func logOverrides(defaults, settings *Settings) {
	dv := reflect.ValueOf(defaults).Elem()
	sv := reflect.ValueOf(settings).Elem()
	st := sv.Type()

	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		key := field.Tag.Get("env")
		if reflect.DeepEqual(dv.Field(i).Interface(), sv.Field(i).Interface()) {
			continue
		}
		if isSecret(key) {
			log.Printf("Config override: %s=<redacted>", key)
			continue
		}
		log.Printf("Config override: %s=%v (default: %v)", key, sv.Field(i).Interface(), dv.Field(i).Interface())
	}
}

func isSecret(key string) bool {
	switch key {
	case "HARNESS_SECRET", "CIO_WRITE_KEY", "TURSO_AUTH_TOKEN":
		return true
	}
	return false
}
