// Package store commits row batches against a shared PostgreSQL database
// without serializing concurrent writers on lock contention. Each batch is
// one transaction; rows are sorted by their natural keys before submission,
// deadlocks are detected and retried with randomized backoff, and every
// contended entity kind can be switched between unique-upsert and
// denormalized-append write modes.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to PostgreSQL at the given URL and verifies the connection.
// The caller owns the returned handle and its connection pool; each worker
// transaction checks out its own connection from it.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
