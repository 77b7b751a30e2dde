package database

import (
	"strings"
)

// QueryBuilder rewrites queries written with ? placeholders for a dialect.
type QueryBuilder struct {
	dialect Dialect
}

// NewQueryBuilder creates a new QueryBuilder for the given dialect.
func NewQueryBuilder(dialect Dialect) *QueryBuilder {
	return &QueryBuilder{dialect: dialect}
}

// Build numbers the ? placeholders when the dialect needs it.
//
//	input:    "SELECT id FROM items WHERE item_key = ? AND class = ?"
//	SQLite:   unchanged
//	Postgres: "SELECT id FROM items WHERE item_key = $1 AND class = $2"
func (qb *QueryBuilder) Build(query string) string {
	if qb.dialect.Placeholder(1) == "?" || strings.IndexByte(query, '?') < 0 {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	position := 1
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		b.WriteString(qb.dialect.Placeholder(position))
		position++
	}
	return b.String()
}

// BuildWithReturning is Build plus a RETURNING clause for dialects without LastInsertId.
func (qb *QueryBuilder) BuildWithReturning(query string, column string) string {
	built := qb.Build(query)
	if qb.dialect.SupportsLastInsertID() {
		return built
	}
	return built + qb.dialect.ReturningClause(column)
}
