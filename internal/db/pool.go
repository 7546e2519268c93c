package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"dbgate/internal/env"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

type Options struct {
	// Pool sizing
	MaxOpenConns int
	MaxIdleConns int

	// Lifetime/idle tuning
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 10
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 5
	}
	if o.MaxIdleConns > o.MaxOpenConns {
		o.MaxIdleConns = o.MaxOpenConns
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 5 * time.Minute
	}
	// ConnMaxIdleTime zero keeps the database/sql default (no idle expiry).
	return o
}

// Open creates a connection pool for cfg. No connection is dialed until the
// pool is first used.
func Open(ctx context.Context, cfg env.Config, opts Options) (*sql.DB, error) {
	if ctx == nil {
		return nil, errors.New("db: nil context")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("db: %s: empty host", cfg.Name)
	}

	opts = opts.withDefaults()

	var (
		pool *sql.DB
		err  error
	)
	switch cfg.Driver {
	case env.MySQL, "":
		pool, err = openMySQL(cfg)
	case env.Postgres:
		pool, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("db: %s: unsupported driver %q", cfg.Name, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("db: %s: %w", cfg.Name, err)
	}

	pool.SetMaxOpenConns(opts.MaxOpenConns)
	pool.SetMaxIdleConns(opts.MaxIdleConns)
	pool.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if opts.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
	return pool, nil
}

// Opener adapts Open to a fixed set of pool options.
func Opener(opts Options) func(context.Context, env.Config) (*sql.DB, error) {
	return func(ctx context.Context, cfg env.Config) (*sql.DB, error) {
		return Open(ctx, cfg, opts)
	}
}

func openMySQL(cfg env.Config) (*sql.DB, error) {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = cfg.Addr()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.TLSConfig = tlsMySQL(cfg.TLS)

	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	return sql.OpenDB(conn), nil
}

func openPostgres(cfg env.Config) (*sql.DB, error) {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Addr(),
		Path:     "/" + cfg.Database,
		RawQuery: "sslmode=" + tlsPostgres(cfg.TLS),
	}
	pc, err := pgx.ParseConfig(u.String())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	return stdlib.OpenDB(*pc), nil
}

// Both map TLSSkipVerify to "encrypt, but trust any certificate". Unknown
// policies fall back to full verification.
func tlsMySQL(p env.TLSPolicy) string {
	switch p {
	case env.TLSSkipVerify:
		return "skip-verify"
	case env.TLSDisable:
		return "false"
	default:
		return "true"
	}
}

func tlsPostgres(p env.TLSPolicy) string {
	switch p {
	case env.TLSSkipVerify:
		return "require"
	case env.TLSDisable:
		return "disable"
	default:
		return "verify-full"
	}
}
