package database

import (
	"context"
	"fmt"
	"time"
)

// TimeFormat is the layout used for every timestamp column. The fixed-width
// fraction keeps lexical order equal to chronological order.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders a timestamp for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime reads a stored timestamp, accepting the SQLite default layout too.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// HealthCheck runs a trivial query to confirm the connection is usable.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("connection test query failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("unexpected query result: %d", result)
	}
	return nil
}

// checkSlow logs the query on the slow-query channel when it exceeds the threshold.
func (db *DB) checkSlow(query string, duration time.Duration) {
	if db.logger == nil || db.slowThreshold <= 0 {
		return
	}
	if duration > db.slowThreshold {
		db.logger.LogSlowQuery(query, duration)
	}
}
