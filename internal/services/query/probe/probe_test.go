package probe

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dbgate/internal/env"
	"dbgate/internal/platform/health"
	"dbgate/internal/services/query/querytest"
	"dbgate/internal/services/query/registry"
)

func newProber(t *testing.T) (*Prober, *querytest.Pools) {
	t.Helper()
	pools := querytest.NewPools(t)
	reg := registry.New(querytest.Configs(), pools.Open, nil)
	return New(reg, time.Second), pools
}

func TestProbeSuccess(t *testing.T) {
	p, pools := newProber(t)
	pools.Mock(env.GQC).ExpectPing()

	got := p.Probe(context.Background(), env.GQC)
	if !got.Success || got.Message != connectedMessage {
		t.Fatalf("Probe=%+v", got)
	}
	if n := pools.DB(env.GQC).Stats().InUse; n != 0 {
		t.Fatalf("InUse=%d, want 0", n)
	}
	if err := pools.Mock(env.GQC).ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProbeFailureIsAnOutcome(t *testing.T) {
	p, pools := newProber(t)
	pools.Mock(env.UAT).ExpectPing().WillReturnError(errors.New("dial tcp: connection refused"))

	got := p.Probe(context.Background(), env.UAT)
	if got.Success {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(got.Message, "connection refused") {
		t.Fatalf("message=%q", got.Message)
	}
	if n := pools.DB(env.UAT).Stats().InUse; n != 0 {
		t.Fatalf("InUse=%d, want 0", n)
	}
}

func TestProbePoolCreationFailure(t *testing.T) {
	p, pools := newProber(t)
	pools.FailOpen(env.PRD, errors.New("bad connector"))

	got := p.Probe(context.Background(), env.PRD)
	if got.Success || !strings.Contains(got.Message, "bad connector") {
		t.Fatalf("Probe=%+v", got)
	}
}

func TestProbeUnknownEnvironment(t *testing.T) {
	p, _ := newProber(t)
	got := p.Probe(context.Background(), env.Name("bogus"))
	if got.Success || !strings.Contains(got.Message, "unknown database environment") {
		t.Fatalf("Probe=%+v", got)
	}
}

func TestProbeAllReportsEveryEnvironment(t *testing.T) {
	p, pools := newProber(t)
	pools.Mock(env.Dev).ExpectPing()
	pools.Mock(env.GQC).ExpectPing()
	pools.Mock(env.UAT).ExpectPing().WillReturnError(errors.New("timeout"))
	pools.FailOpen(env.PRD, errors.New("bad connector"))

	got := p.ProbeAll(context.Background())
	if len(got) != len(env.All()) {
		t.Fatalf("ProbeAll returned %d entries, want %d", len(got), len(env.All()))
	}
	want := map[env.Name]bool{env.Dev: true, env.GQC: true, env.UAT: false, env.PRD: false}
	for n, ok := range want {
		if got[n].Success != ok {
			t.Fatalf("%s: success=%v, want %v (%s)", n, got[n].Success, ok, got[n].Message)
		}
	}
}

func TestCheckAdapter(t *testing.T) {
	p, pools := newProber(t)
	pools.Mock(env.GQC).ExpectPing()
	pools.Mock(env.Dev).ExpectPing().WillReturnError(errors.New("down"))

	if err := p.Check(env.GQC)(context.Background()); err != nil {
		t.Fatalf("Check(gqc) err=%v", err)
	}
	if err := p.Check(env.Dev)(context.Background()); err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("Check(dev) err=%v", err)
	}
}

func TestRegisterSlowEnvironmentDoesNotStarveOthers(t *testing.T) {
	p, pools := newProber(t)
	pools.Mock(env.Dev).ExpectPing().WillDelayFor(3 * time.Second)
	pools.Mock(env.GQC).ExpectPing()
	pools.Mock(env.UAT).ExpectPing()
	pools.Mock(env.PRD).ExpectPing()

	root := health.NewReadyGraph()
	p.Register(root, env.GQC, 100*time.Millisecond)

	start := time.Now()
	res := health.Evaluate(context.Background(), root)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Evaluate took %v", elapsed)
	}
	if !res.Healthy {
		t.Fatalf("ready=%+v, want healthy", res)
	}
	if res.Deps["dev"].Healthy {
		t.Fatalf("dev=%+v, want unhealthy", res.Deps["dev"])
	}
	for _, n := range []string{"gqc", "uat", "prd"} {
		if !res.Deps[n].Healthy {
			t.Fatalf("%s=%+v, want healthy", n, res.Deps[n])
		}
	}
}

func TestRegisterGatesOnRequiredEnvironment(t *testing.T) {
	p, pools := newProber(t)
	pools.Mock(env.Dev).ExpectPing()
	pools.Mock(env.GQC).ExpectPing().WillReturnError(errors.New("connection refused"))
	pools.Mock(env.UAT).ExpectPing()
	pools.Mock(env.PRD).ExpectPing().WillReturnError(errors.New("connection refused"))

	root := health.NewReadyGraph()
	p.Register(root, env.GQC, time.Second)

	res := health.Evaluate(context.Background(), root)
	if res.Healthy {
		t.Fatalf("ready healthy with gqc down: %+v", res)
	}
	if !res.Deps["prd"].Optional || res.Deps["gqc"].Optional {
		t.Fatalf("optional flags: gqc=%+v prd=%+v", res.Deps["gqc"], res.Deps["prd"])
	}
}
