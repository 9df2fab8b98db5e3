// Package db provides PostgreSQL access for the nutrition catalog and the
// bulk job bookkeeping tables.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrDuplicate indicates an insert lost to an existing row under a
	// uniqueness constraint (natural key already taken).
	ErrDuplicate = errors.New("duplicate entity")

	// ErrInvalidTransition indicates a job status update that the job's
	// current state does not permit.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping verifies the pool is still reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// ApplySchema executes a schema SQL script against the pool. Used by the
// migrate command; the script is expected to be idempotent.
func (db *DB) ApplySchema(ctx context.Context, schema string) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
