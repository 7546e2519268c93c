package boot

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRun_RequiresServiceName(t *testing.T) {
	err := Run(context.Background(), Options{}, nil)
	if err == nil {
		t.Fatalf("expected error for empty ServiceName")
	}
}

func TestRun_BuildErrorIsReturned(t *testing.T) {
	t.Setenv("OTEL_TRACES_DISABLED", "true")
	t.Setenv("ADMIN_ADDR", "127.0.0.1:0")

	want := errors.New("incomplete configuration")
	err := Run(context.Background(), Options{ServiceName: "boottest", Log: zap.NewNop()},
		func(context.Context, Deps) (Main, error) { return Main{}, want })
	if !errors.Is(err, want) {
		t.Fatalf("err=%v, want %v", err, want)
	}
}

func TestRun_ShutsDownOnContextCancel(t *testing.T) {
	t.Setenv("OTEL_TRACES_DISABLED", "true")
	t.Setenv("ADMIN_ADDR", "127.0.0.1:0")

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	shutdownCalled := false

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{ServiceName: "boottest", Log: zap.NewNop()},
			func(_ context.Context, deps Deps) (Main, error) {
				if deps.ReadyRoot == nil || deps.Serving == nil || deps.Metrics == nil {
					t.Errorf("incomplete deps: %+v", deps)
				}
				return Main{
					Serve: func() error {
						<-stopped
						return nil
					},
					Shutdown: func(context.Context) error {
						shutdownCalled = true
						close(stopped)
						return nil
					},
				}, nil
			})
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run err=%v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if !shutdownCalled {
		t.Fatalf("Main.Shutdown was not called")
	}
}
