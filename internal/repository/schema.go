package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed sql/census_schema.sql
var censusSchema string

// EnsureSchema applies sql/census_schema.sql. Every statement is IF NOT EXISTS.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, censusSchema); err != nil {
		return fmt.Errorf("failed to apply census schema: %w", err)
	}
	return nil
}
