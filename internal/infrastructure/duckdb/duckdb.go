package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// DB is a thin wrapper around a DuckDB connection. The medallion builder
// uses a file-backed database for intermediate transformation state; the
// runtime loaders use in-memory databases as a query engine over Parquet.
type DB struct {
	db *sql.DB
}

// Open opens a DuckDB database at the given path. An empty path opens an
// in-memory database.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Exec executes a SQL statement that does not return rows.
func (d *DB) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows. rows.Err() must be
// checked by the caller after iteration completes.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// QueryRow executes a query expected to return at most one row.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// Count returns the row count of the given relation expression, e.g. a table
// name or a read_parquet(...) call.
func (d *DB) Count(ctx context.Context, relation string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", relation)
	if err := d.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", relation, err)
	}
	return n, nil
}

// QuotePath escapes a filesystem path for embedding in a SQL string literal.
// DuckDB file functions take paths as literals, not bind parameters.
func QuotePath(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}
