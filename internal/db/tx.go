package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// WithReadOnlyTx runs fn inside a READ ONLY transaction on conn.
//
// Rules:
//   - fn must not call Commit/Rollback.
//   - the transaction is always rolled back; nothing fn does is kept.
func WithReadOnlyTx(ctx context.Context, conn *sql.Conn, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	if ctx == nil {
		return errors.New("db: nil context")
	}
	if conn == nil {
		return errors.New("db: nil conn")
	}
	if fn == nil {
		return errors.New("db: nil fn")
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("db: begin read-only tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		_ = tx.Rollback()
	}()

	return fn(ctx, tx)
}
