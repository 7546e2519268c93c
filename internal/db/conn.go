package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// WithConn borrows exactly one connection from pool and runs fn on it.
//
// Rules:
//   - fn must not close conn.
//   - the connection goes back to the pool on every exit path, including
//     errors and panics inside fn.
func WithConn(ctx context.Context, pool *sql.DB, fn func(ctx context.Context, conn *sql.Conn) error) error {
	if ctx == nil {
		return errors.New("db: nil context")
	}
	if pool == nil {
		return errors.New("db: nil pool")
	}
	if fn == nil {
		return errors.New("db: nil fn")
	}

	conn, err := pool.Conn(ctx)
	if err != nil {
		return fmt.Errorf("db: acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return fn(ctx, conn)
}
