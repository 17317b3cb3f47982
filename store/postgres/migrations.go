package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the products table bootstrap statement.
const Schema = `CREATE TABLE IF NOT EXISTS products (
    id          BIGINT PRIMARY KEY,
    name        TEXT NOT NULL,
    price       DOUBLE PRECISION NOT NULL,
    description TEXT
)`

// Migrate executes the provided SQL statements in order; with none
// given it applies the default schema.
func Migrate(ctx context.Context, db *sql.DB, statements ...string) error {
	if db == nil {
		return fmt.Errorf("postgres: db is nil")
	}
	if len(statements) == 0 {
		statements = []string{Schema}
	}
	for _, stmt := range statements {
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
