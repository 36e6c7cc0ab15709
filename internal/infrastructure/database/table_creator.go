// Package database creates the harness schema.
package database

import (
	"database/sql"
	"fmt"
)

// TableCreator handles the creation of the harness schema.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the tables and indexes.
// Every statement is idempotent.
func (tc *TableCreator) CreateSchema(db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

// TablesExist reports whether every harness table is present.
func (tc *TableCreator) TablesExist(db *sql.DB) (bool, error) {
	for _, name := range tableNames {
		var found string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&found)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to check table %s: %w", name, err)
		}
	}
	return true, nil
}

var tableNames = []string{"durable_storage", "harness_settings", "page_views"}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS durable_storage (
		visitor_id TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (visitor_id, storage_key)
	)`,
	`CREATE TABLE IF NOT EXISTS harness_settings (
		setting_key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		encrypted INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS page_views (
		id TEXT PRIMARY KEY,
		visitor_id TEXT NOT NULL,
		url TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		utm_eligible INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,
		sent INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_page_views_visitor ON page_views(visitor_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_page_views_created ON page_views(created_at)`,
}
