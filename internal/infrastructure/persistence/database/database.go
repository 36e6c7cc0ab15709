// Package database provides the core functionality for creating and managing
// database connections in a clean, isolated manner.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const (
	DriverSQLite = "sqlite3"
	DriverLibSQL = "libsql"
)

// Options configures a connection.
type Options struct {
	Driver             string
	DSN                string
	AuthToken          string // libsql only
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	SlowQueryThreshold time.Duration
}

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	driver        string
	logger        *logging.ChanneledLogger
	slowThreshold time.Duration
}

// NewConnectionWithLogger establishes a new database connection for the configured driver.
func NewConnectionWithLogger(opts Options, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	logger.Database().Debug("Creating new database connection", "driverName", opts.Driver)

	dsn, err := dataSourceName(opts)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driverName", opts.Driver)
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		logger.Database().Error("Database ping failed", "error", err.Error(), "driverName", opts.Driver)
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}

	if opts.Driver == DriverSQLite {
		// SQLite allows a single writer; one connection avoids SQLITE_BUSY under load.
		db.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	logger.Database().Info("Database connection established", "driverName", opts.Driver, "duration", time.Since(start))

	return &DB{
		DB:            db,
		driver:        opts.Driver,
		logger:        logger,
		slowThreshold: opts.SlowQueryThreshold,
	}, nil
}

func dataSourceName(opts Options) (string, error) {
	switch opts.Driver {
	case DriverSQLite:
		if opts.DSN != ":memory:" && !strings.HasPrefix(opts.DSN, "file:") {
			if err := os.MkdirAll(filepath.Dir(opts.DSN), 0755); err != nil {
				return "", fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return opts.DSN, nil
	case DriverLibSQL:
		if opts.AuthToken == "" {
			return opts.DSN, nil
		}
		return opts.DSN + "?authToken=" + opts.AuthToken, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// Driver returns the driver name the connection was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// Logger returns the channeled logger the connection reports to.
func (db *DB) Logger() *logging.ChanneledLogger {
	return db.logger
}

// ExecTimed runs a statement and reports it on the slow-query channel when it
// exceeds the threshold.
func (db *DB) ExecTimed(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := db.ExecContext(ctx, query, args...)
	db.checkSlow(query, time.Since(start))
	return result, err
}

// QueryRowTimed runs a single-row query with slow-query reporting.
func (db *DB) QueryRowTimed(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := db.QueryRowContext(ctx, query, args...)
	db.checkSlow(query, time.Since(start))
	return row
}

// QueryTimed runs a multi-row query with slow-query reporting.
func (db *DB) QueryTimed(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.QueryContext(ctx, query, args...)
	db.checkSlow(query, time.Since(start))
	return rows, err
}
