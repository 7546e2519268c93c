package db

import (
	"context"
	"database/sql"
)

// Check borrows a connection, pings it and gives it back.
// It exercises a real connection: dial, TLS and auth all have to succeed.
func Check(ctx context.Context, pool *sql.DB) error {
	return WithConn(ctx, pool, func(ctx context.Context, conn *sql.Conn) error {
		return conn.PingContext(ctx)
	})
}
