// Package querytest provides sqlmock-backed pools for the query service tests.
package querytest

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"

	"dbgate/internal/env"

	"github.com/DATA-DOG/go-sqlmock"
)

// Configs returns a complete MySQL configuration for every environment.
func Configs() env.Configs {
	vals := map[string]string{
		"_DB_HOST":     "db.internal",
		"_DB_USER":     "svc",
		"_DB_PASSWORD": "secret",
		"_DB_NAME":     "yamibuy_im",
	}
	lookup := func(k string) string {
		for suffix, v := range vals {
			if strings.HasSuffix(k, suffix) {
				return v
			}
		}
		return ""
	}
	return env.ResolveAll(lookup)
}

// Pools hands out one sqlmock pool per environment and counts how often each
// environment was opened.
type Pools struct {
	dbs   map[env.Name]*sql.DB
	mocks map[env.Name]sqlmock.Sqlmock

	mu    sync.Mutex
	opens map[env.Name]int
	fail  map[env.Name]error
}

// NewPools creates the mocks up front so tests can register expectations
// before the pool is first requested. Queries match exactly and pings must
// be expected.
func NewPools(t testing.TB) *Pools {
	t.Helper()
	p := &Pools{
		dbs:   map[env.Name]*sql.DB{},
		mocks: map[env.Name]sqlmock.Sqlmock{},
		opens: map[env.Name]int{},
		fail:  map[env.Name]error{},
	}
	for _, n := range env.All() {
		db, mock, err := sqlmock.New(
			sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
			sqlmock.MonitorPingsOption(true),
		)
		if err != nil {
			t.Fatalf("sqlmock.New err=%v", err)
		}
		p.dbs[n] = db
		p.mocks[n] = mock
		t.Cleanup(func() { _ = db.Close() })
	}
	return p
}

// Mock returns the expectation handle for n.
func (p *Pools) Mock(n env.Name) sqlmock.Sqlmock { return p.mocks[n] }

// DB returns the pool handed out for n.
func (p *Pools) DB(n env.Name) *sql.DB { return p.dbs[n] }

// FailOpen makes opening n return err.
func (p *Pools) FailOpen(n env.Name, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[n] = err
}

// Opens reports how many times n was opened.
func (p *Pools) Opens(n env.Name) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens[n]
}

// Open satisfies registry.Opener.
func (p *Pools) Open(_ context.Context, cfg env.Config) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens[cfg.Name]++
	if err := p.fail[cfg.Name]; err != nil {
		return nil, err
	}
	return p.dbs[cfg.Name], nil
}
