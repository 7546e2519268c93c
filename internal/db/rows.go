package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Row is one result row keyed by column name.
type Row map[string]any

// ExecSummary is the result of a statement that returns no rows.
type ExecSummary struct {
	AffectedRows int64 `json:"affectedRows"`
	InsertID     int64 `json:"insertId"`
}

// Querier is satisfied by *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// QueryRows runs query on q and decodes every row.
func QueryRows(ctx context.Context, q Querier, query string, args ...any) ([]Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanRows(rows)
}

// Exec runs a statement that does not return rows.
// Drivers that cannot report an insert id (postgres) leave InsertID zero.
func Exec(ctx context.Context, q Querier, query string, args ...any) (ExecSummary, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return ExecSummary{}, err
	}
	var out ExecSummary
	if n, err := res.RowsAffected(); err == nil {
		out.AffectedRows = n
	}
	if id, err := res.LastInsertId(); err == nil {
		out.InsertID = id
	}
	return out, nil
}

// ScanRows decodes rows into column-keyed maps. Byte slices become strings so
// text columns serialize as JSON strings rather than base64.
// The result is never nil.
func ScanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	out := []Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
