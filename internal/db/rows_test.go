package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
)

func TestQueryRows(t *testing.T) {
	pool, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New err=%v", err)
	}
	defer pool.Close()

	mock.ExpectQuery("SELECT a, b, c FROM t WHERE a = ?").
		WithArgs("x").
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c"}).
			AddRow([]byte("x"), int64(1), nil).
			AddRow([]byte("x"), int64(2), "text"))

	var got []Row
	err = WithConn(context.Background(), pool, func(ctx context.Context, conn *sql.Conn) error {
		var err error
		got, err = QueryRows(ctx, conn, "SELECT a, b, c FROM t WHERE a = ?", "x")
		return err
	})
	if err != nil {
		t.Fatalf("QueryRows err=%v", err)
	}
	want := []Row{
		{"a": "x", "b": int64(1), "c": nil},
		{"a": "x", "b": int64(2), "c": "text"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryRowsEmptyIsNotNil(t *testing.T) {
	pool, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New err=%v", err)
	}
	defer pool.Close()

	mock.ExpectQuery("SELECT 1 WHERE 1 = 0").WillReturnRows(sqlmock.NewRows([]string{"1"}))

	err = WithConn(context.Background(), pool, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := QueryRows(ctx, conn, "SELECT 1 WHERE 1 = 0")
		if err != nil {
			return err
		}
		if rows == nil || len(rows) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", rows)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
}

func TestExec(t *testing.T) {
	pool, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New err=%v", err)
	}
	defer pool.Close()

	mock.ExpectExec("UPDATE t SET a = ?").WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 4))

	err = WithConn(context.Background(), pool, func(ctx context.Context, conn *sql.Conn) error {
		got, err := Exec(ctx, conn, "UPDATE t SET a = ?", 3)
		if err != nil {
			return err
		}
		if got != (ExecSummary{AffectedRows: 4}) {
			t.Fatalf("summary=%+v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
}
