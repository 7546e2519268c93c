// Package registry owns the per-environment connection pools.
//
// A pool is created the first time an environment is requested and then
// reused until the process exits. Concurrent first requests for the same
// environment share a single creation.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"dbgate/internal/env"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrUnknownEnvironment = errors.New("unknown database environment")

// Opener creates the pool for one environment. It must not be called twice
// for the same environment by a single Registry.
type Opener func(ctx context.Context, cfg env.Config) (*sql.DB, error)

type Registry struct {
	configs env.Configs
	open    Opener
	log     *zap.Logger

	group singleflight.Group

	mu    sync.RWMutex
	pools map[env.Name]*sql.DB
}

func New(configs env.Configs, open Opener, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		configs: configs,
		open:    open,
		log:     log,
		pools:   make(map[env.Name]*sql.DB, len(configs)),
	}
}

// Known reports whether s names a configured environment.
func (r *Registry) Known(s string) (env.Name, bool) {
	n, ok := env.Parse(s)
	if !ok {
		return "", false
	}
	if _, ok := r.configs[n]; !ok {
		return "", false
	}
	return n, true
}

// Names returns the configured environments in enumeration order.
func (r *Registry) Names() []env.Name {
	out := make([]env.Name, 0, len(r.configs))
	for _, n := range env.All() {
		if _, ok := r.configs[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Config returns the resolved settings for n.
func (r *Registry) Config(n env.Name) (env.Config, bool) {
	c, ok := r.configs[n]
	return c, ok
}

// Get returns the pool for n, creating it on first use.
func (r *Registry) Get(ctx context.Context, n env.Name) (*sql.DB, error) {
	cfg, ok := r.configs[n]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEnvironment, string(n))
	}

	if p := r.lookup(n); p != nil {
		return p, nil
	}

	v, err, _ := r.group.Do(string(n), func() (any, error) {
		// A previous flight may have finished between lookup and Do.
		if p := r.lookup(n); p != nil {
			return p, nil
		}
		p, err := r.open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create pool for %s: %w", n, err)
		}

		r.mu.Lock()
		r.pools[n] = p
		r.mu.Unlock()

		r.log.Info("database pool created",
			zap.String("environment", string(n)),
			zap.String("driver", string(cfg.Driver)),
			zap.String("addr", cfg.Addr()),
		)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

func (r *Registry) lookup(n env.Name) *sql.DB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pools[n]
}

// Stats reports pool statistics for every pool created so far.
func (r *Registry) Stats() map[env.Name]sql.DBStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[env.Name]sql.DBStats, len(r.pools))
	for n, p := range r.pools {
		out[n] = p.Stats()
	}
	return out
}

// Close closes every pool. Only call it during shutdown: later Get calls
// return closed pools.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for n, p := range r.pools {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pool: %w", n, err))
		}
	}
	return errors.Join(errs...)
}
