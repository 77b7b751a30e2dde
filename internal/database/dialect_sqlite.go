package database

import (
	"strings"
)

// SQLiteDialect implements Dialect for the modernc.org/sqlite driver.
type SQLiteDialect struct{}

// DriverName returns "sqlite".
func (d *SQLiteDialect) DriverName() string {
	return "sqlite"
}

// Placeholder returns "?" for all positions.
func (d *SQLiteDialect) Placeholder(position int) string {
	return "?"
}

// SupportsLastInsertID returns true.
func (d *SQLiteDialect) SupportsLastInsertID() bool {
	return true
}

// ReturningClause returns "" because SQLite uses LastInsertId() instead.
func (d *SQLiteDialect) ReturningClause(column string) string {
	return ""
}

// SerialPrimaryKey returns the rowid alias with AUTOINCREMENT so ids are never reused.
func (d *SQLiteDialect) SerialPrimaryKey() string {
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// InitStatements returns the PRAGMAs applied after open.
func (d *SQLiteDialect) InitStatements() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
}

// IsDuplicateKeyError returns true for a SQLite UNIQUE constraint violation.
func (d *SQLiteDialect) IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
