// Package probe checks whether an environment's database is reachable.
package probe

import (
	"context"
	"errors"
	"sync"
	"time"

	"dbgate/internal/db"
	"dbgate/internal/env"
	"dbgate/internal/platform/health"
	"dbgate/internal/services/query/registry"

	"golang.org/x/sync/errgroup"
)

const connectedMessage = "connected"

// Outcome is the verdict of a single probe. An unreachable database is an
// expected outcome, not an error.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Prober struct {
	reg     *registry.Registry
	timeout time.Duration
}

// New returns a Prober. A non-positive timeout leaves probes bounded only by
// the caller's context.
func New(reg *registry.Registry, timeout time.Duration) *Prober {
	return &Prober{reg: reg, timeout: timeout}
}

// Probe borrows one connection from n's pool and returns it immediately.
func (p *Prober) Probe(ctx context.Context, n env.Name) Outcome {
	if err := p.check(ctx, n); err != nil {
		return Outcome{Success: false, Message: err.Error()}
	}
	return Outcome{Success: true, Message: connectedMessage}
}

func (p *Prober) check(ctx context.Context, n env.Name) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	pool, err := p.reg.Get(ctx, n)
	if err != nil {
		return err
	}
	return db.Check(ctx, pool)
}

// ProbeAll probes every configured environment concurrently. One entry is
// returned per environment regardless of individual failures.
func (p *Prober) ProbeAll(ctx context.Context) map[env.Name]Outcome {
	names := p.reg.Names()
	out := make(map[env.Name]Outcome, len(names))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range names {
		g.Go(func() error {
			o := p.Probe(gctx, n)
			mu.Lock()
			out[n] = o
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Check adapts a probe of n to the readiness graph.
func (p *Prober) Check(n env.Name) health.Check {
	return func(ctx context.Context) error {
		if o := p.Probe(ctx, n); !o.Success {
			return errors.New(o.Message)
		}
		return nil
	}
}

// Register adds one readiness node per environment under root, each bounded
// by budget. Only required gates readiness; an outage elsewhere is reported
// without taking the proxy out of rotation.
func (p *Prober) Register(root *health.Node, required env.Name, budget time.Duration) {
	for _, n := range p.reg.Names() {
		check := health.WithTimeout(p.Check(n), budget)
		if n == required {
			root.Add(string(n), check)
			continue
		}
		root.AddOptional(string(n), check)
	}
}
