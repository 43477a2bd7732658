package db

import (
	"context"
	"fmt"
)

// ServerVersion returns the server_version setting reported by the server.
func (c *Connection) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := c.Pool.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to query server version: %w", err)
	}
	return version, nil
}

// SchemaExists reports whether the schema dbt will build into already exists.
// dbt creates missing schemas itself, so callers treat false as a warning.
func (c *Connection) SchemaExists(ctx context.Context, schema string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.schemata
			WHERE schema_name = $1
		)
	`

	var exists bool
	if err := c.Pool.QueryRow(ctx, query, schema).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check schema %s: %w", schema, err)
	}
	return exists, nil
}

// RelationCount returns the number of tables and views in schema.
func (c *Connection) RelationCount(ctx context.Context, schema string) (int, error) {
	query := `
		SELECT count(*)
		FROM information_schema.tables
		WHERE table_schema = $1
	`

	var n int
	if err := c.Pool.QueryRow(ctx, query, schema).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count relations in %s: %w", schema, err)
	}
	return n, nil
}
