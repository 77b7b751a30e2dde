package database

// Dialect abstracts the SQL differences between SQLite and PostgreSQL.
type Dialect interface {
	// DriverName returns the driver name for sql.Open().
	DriverName() string

	// Placeholder returns the parameter placeholder for the given position (1-indexed).
	// SQLite: "?" (ignores position), PostgreSQL: "$1", "$2", etc.
	Placeholder(position int) string

	// SupportsLastInsertID reports whether Result.LastInsertId works.
	// SQLite: true, PostgreSQL: false (uses RETURNING instead)
	SupportsLastInsertID() bool

	// ReturningClause returns the RETURNING clause for INSERT statements.
	ReturningClause(column string) string

	// SerialPrimaryKey returns the column type for an auto-incrementing integer key.
	SerialPrimaryKey() string

	// InitStatements returns statements run once per connection pool at open.
	InitStatements() []string

	// IsDuplicateKeyError returns true if the error is a unique constraint violation.
	IsDuplicateKeyError(err error) bool
}

// DialectType identifies the database dialect.
type DialectType string

const (
	DialectSQLite   DialectType = "sqlite"
	DialectPostgres DialectType = "postgres"
)

// NewDialect creates a new Dialect for the given type.
func NewDialect(dialectType DialectType) Dialect {
	switch dialectType {
	case DialectPostgres:
		return &PostgresDialect{}
	default:
		return &SQLiteDialect{}
	}
}
