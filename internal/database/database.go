// Package database stores item and character stat records in SQLite or PostgreSQL.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/lawnchairsociety/statcalc/internal/logger"
)

// Database wraps the SQL connection and implements store.Store.
type Database struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// Open opens or creates the SQLite database at the given path.
func Open(path string) (*Database, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig opens the database described by cfg and creates the schema.
func OpenWithConfig(cfg Config) (*Database, error) {
	dialect := NewDialect(DialectType(cfg.Driver))

	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case "", string(DialectSQLite):
		db, err = openSQLite(cfg.SQLitePath)
	case string(DialectPostgres):
		db, err = openPostgres(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run %q: %w", stmt, err)
		}
	}

	d := &Database{db: db, dialect: dialect, qb: NewQueryBuilder(dialect)}

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("Database opened", "driver", dialect.DriverName())
	return d, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// PRAGMAs are per connection; one connection keeps them applied and serializes writers.
	db.SetMaxOpenConns(1)
	return db, nil
}

func openPostgres(cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	return db, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Dialect returns the SQL dialect in use.
func (d *Database) Dialect() Dialect {
	return d.dialect
}

// migrate creates the schema if it doesn't exist. Row ids record insertion
// order, which is the order records and stats are listed in.
func (d *Database) migrate() error {
	serial := d.dialect.SerialPrimaryKey()
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id ` + serial + `,
			item_key TEXT NOT NULL UNIQUE,
			class TEXT NOT NULL DEFAULT 'All'
		)`,

		`CREATE TABLE IF NOT EXISTS item_stats (
			id ` + serial + `,
			item_id BIGINT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			UNIQUE(item_id, name)
		)`,

		`CREATE TABLE IF NOT EXISTS characters (
			id ` + serial + `,
			name TEXT NOT NULL UNIQUE
		)`,

		`CREATE TABLE IF NOT EXISTS character_stats (
			id ` + serial + `,
			character_id BIGINT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			UNIQUE(character_id, name)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_item_stats_item_id ON item_stats(item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_character_stats_character_id ON character_stats(character_id)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// DB returns the underlying sql.DB for advanced operations.
func (d *Database) DB() *sql.DB {
	return d.db
}
