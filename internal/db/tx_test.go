package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestWithReadOnlyTx_NilGuards(t *testing.T) {
	ctx := context.Background()
	fn := func(context.Context, *sql.Tx) error { return nil }
	if err := WithReadOnlyTx(nil, nil, fn); err == nil {
		t.Fatalf("expected error for nil ctx")
	}
	if err := WithReadOnlyTx(ctx, nil, fn); err == nil {
		t.Fatalf("expected error for nil conn")
	}
}

func TestWithReadOnlyTx_AlwaysRollsBack(t *testing.T) {
	pool, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New err=%v", err)
	}
	defer pool.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT nope").WillReturnError(errors.New("unknown column"))
	mock.ExpectRollback()

	ctx := context.Background()
	err = WithConn(ctx, pool, func(ctx context.Context, conn *sql.Conn) error {
		if err := WithReadOnlyTx(ctx, conn, func(ctx context.Context, tx *sql.Tx) error {
			_, err := QueryRows(ctx, tx, "SELECT 1")
			return err
		}); err != nil {
			t.Fatalf("first tx err=%v", err)
		}
		return WithReadOnlyTx(ctx, conn, func(ctx context.Context, tx *sql.Tx) error {
			_, err := QueryRows(ctx, tx, "SELECT nope")
			return err
		})
	})
	if err == nil {
		t.Fatalf("expected second tx to fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
	if got := pool.Stats().InUse; got != 0 {
		t.Fatalf("InUse=%d, want 0", got)
	}
}
