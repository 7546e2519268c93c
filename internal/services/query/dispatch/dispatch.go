// Package dispatch validates query requests and runs them against the pool
// of the requested environment.
//
// Every request borrows exactly one connection, runs exactly one statement
// and returns the connection before the call completes, whatever the outcome.
package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dbgate/internal/db"
	"dbgate/internal/env"
	"dbgate/internal/platform/logging"
	"dbgate/internal/services/query/registry"

	"go.uber.org/zap"
)

// Validation errors. Callers map them to 400.
var (
	ErrMissingSKU         = errors.New("sku is required")
	ErrMissingSQL         = errors.New("sql is required")
	ErrInvalidEnvironment = errors.New("invalid environment")
	ErrReadOnly           = errors.New("only row-returning statements are allowed in read-only mode")
)

// IsValidation reports whether err was caused by the request itself.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingSKU) ||
		errors.Is(err, ErrMissingSQL) ||
		errors.Is(err, ErrInvalidEnvironment) ||
		errors.Is(err, ErrReadOnly)
}

// ExecError is a failure while resolving the pool, borrowing a connection or
// running the statement.
type ExecError struct {
	Env env.Name
	Err error
}

func (e *ExecError) Error() string { return e.Err.Error() }
func (e *ExecError) Unwrap() error { return e.Err }

type SKURequest struct {
	SKU         string
	Environment string
}

type QueryRequest struct {
	SQL         string
	Params      []any
	Environment string
}

// Result is the outcome of a successful dispatch.
type Result struct {
	Environment env.Name

	// Found is false when a SKU lookup matched nothing.
	Found bool

	// Rows holds the decoded rows; for a SKU lookup at most one.
	Rows []db.Row

	// Exec is set instead of Rows for statements that return no rows.
	Exec *db.ExecSummary
}

// Observer receives one call per executed statement.
type Observer interface {
	ObserveQuery(ctx context.Context, environment, op, outcome string, d time.Duration)
}

type Options struct {
	// Default is used when a request names no environment.
	Default env.Name

	// Timeout bounds each statement. Zero leaves it to the driver.
	Timeout time.Duration

	// ReadOnly rejects free-form statements that do not return rows and runs
	// the rest inside a READ ONLY transaction.
	ReadOnly bool

	Observer Observer
}

type Gate struct {
	reg  *registry.Registry
	log  *zap.Logger
	opts Options
}

func New(reg *registry.Registry, log *zap.Logger, opts Options) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Default == "" {
		opts.Default = env.Default
	}
	return &Gate{reg: reg, log: log, opts: opts}
}

// Default returns the environment used for requests that name none.
func (g *Gate) Default() env.Name { return g.opts.Default }

// Environment validates s, falling back to the default when s is empty.
func (g *Gate) Environment(s string) (env.Name, error) {
	if s == "" {
		return g.opts.Default, nil
	}
	n, ok := g.reg.Known(s)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidEnvironment, s)
	}
	return n, nil
}

// LookupSKU runs the fixed item lookup. No match is reported as
// Result.Found == false, not as an error.
func (g *Gate) LookupSKU(ctx context.Context, req SKURequest) (Result, error) {
	if req.SKU == "" {
		return Result{}, ErrMissingSKU
	}
	n, err := g.Environment(req.Environment)
	if err != nil {
		return Result{}, err
	}

	var rows []db.Row
	err = g.run(ctx, n, "sku", func(ctx context.Context, q db.Querier, cfg env.Config) error {
		var err error
		rows, err = db.QueryRows(ctx, q, db.Rebind(cfg.Driver, skuStatement), req.SKU)
		return err
	})
	if err != nil {
		return Result{Environment: n}, err
	}
	if len(rows) == 0 {
		return Result{Environment: n, Found: false}, nil
	}
	return Result{Environment: n, Found: true, Rows: rows[:1]}, nil
}

// Query runs caller-supplied SQL with its bound parameters verbatim.
//
// There is no allow-list and no caller identity: anyone who can reach the
// endpoint can run any statement on any environment unless ReadOnly is set.
func (g *Gate) Query(ctx context.Context, req QueryRequest) (Result, error) {
	if req.SQL == "" {
		return Result{}, ErrMissingSQL
	}
	n, err := g.Environment(req.Environment)
	if err != nil {
		return Result{}, err
	}

	wantRows := returnsRows(req.SQL)
	if g.opts.ReadOnly && !wantRows {
		return Result{}, ErrReadOnly
	}

	res := Result{Environment: n, Found: true}
	err = g.run(ctx, n, "query", func(ctx context.Context, q db.Querier, _ env.Config) error {
		if !wantRows {
			sum, err := db.Exec(ctx, q, req.SQL, req.Params...)
			if err != nil {
				return err
			}
			res.Exec = &sum
			return nil
		}
		rows, err := db.QueryRows(ctx, q, req.SQL, req.Params...)
		if err != nil {
			return err
		}
		res.Rows = rows
		return nil
	})
	if err != nil {
		return Result{Environment: n}, err
	}
	return res, nil
}

type stmtFunc func(ctx context.Context, q db.Querier, cfg env.Config) error

func (g *Gate) run(ctx context.Context, n env.Name, op string, fn stmtFunc) error {
	start := time.Now()
	err := g.exec(ctx, n, fn)
	dur := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if g.opts.Observer != nil {
		g.opts.Observer.ObserveQuery(ctx, string(n), op, outcome, dur)
	}

	if err != nil {
		logging.For(ctx, g.log).Error("database query failed",
			zap.String("environment", string(n)),
			zap.String("op", op),
			zap.Duration("duration", dur),
			zap.Error(err),
		)
		return &ExecError{Env: n, Err: err}
	}
	return nil
}

func (g *Gate) exec(ctx context.Context, n env.Name, fn stmtFunc) error {
	cfg, _ := g.reg.Config(n)
	pool, err := g.reg.Get(ctx, n)
	if err != nil {
		return err
	}

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	return db.WithConn(ctx, pool, func(ctx context.Context, conn *sql.Conn) error {
		if !g.opts.ReadOnly {
			return fn(ctx, conn, cfg)
		}
		return db.WithReadOnlyTx(ctx, conn, func(ctx context.Context, tx *sql.Tx) error {
			return fn(ctx, tx, cfg)
		})
	})
}
