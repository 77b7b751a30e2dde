package database

import (
	"fmt"
	"strings"
)

// PostgresDialect implements Dialect for the lib/pq driver.
type PostgresDialect struct{}

// DriverName returns "postgres".
func (d *PostgresDialect) DriverName() string {
	return "postgres"
}

// Placeholder returns "$N" for the given position.
func (d *PostgresDialect) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

// SupportsLastInsertID returns false; lib/pq does not implement LastInsertId.
func (d *PostgresDialect) SupportsLastInsertID() bool {
	return false
}

// ReturningClause returns " RETURNING <column>".
func (d *PostgresDialect) ReturningClause(column string) string {
	return fmt.Sprintf(" RETURNING %s", column)
}

// SerialPrimaryKey returns "BIGSERIAL PRIMARY KEY".
func (d *PostgresDialect) SerialPrimaryKey() string {
	return "BIGSERIAL PRIMARY KEY"
}

// InitStatements returns nil; lib/pq already negotiates UTF8 and foreign keys are always on.
func (d *PostgresDialect) InitStatements() []string {
	return nil
}

// IsDuplicateKeyError returns true for a PostgreSQL unique violation.
func (d *PostgresDialect) IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// 23505 is unique_violation
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "23505") ||
		strings.Contains(errStr, "unique constraint")
}
