package boot

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"dbgate/internal/platform/admin"
	"dbgate/internal/platform/config"
	"dbgate/internal/platform/health"
	"dbgate/internal/platform/logging"
	"dbgate/internal/platform/otel"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Main represents the primary HTTP server of the process.
type Main struct {
	Serve    func() error
	Shutdown func(context.Context) error
}

// Deps are the shared platform dependencies provided to each service.
type Deps struct {
	Log       *zap.Logger
	Metrics   http.Handler
	ReadyRoot *health.Node
	Serving   *atomic.Bool
}

// Options configures the platform boot.
type Options struct {
	ServiceName string

	// Log is used instead of building a new logger when set. Run does not
	// Sync a logger it did not create.
	Log *zap.Logger

	// AdminAddrEnv is the env var for the admin listener (defaults to ADMIN_ADDR).
	// AdminAddrFallback is used if env var is empty (defaults to :8081).
	AdminAddrEnv      string
	AdminAddrFallback string

	// OTELExtraAttrs are added to both tracing + metrics resources.
	OTELExtraAttrs []attribute.KeyValue

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// Run boots common platform pieces (logger, OTEL, metrics, admin server, readiness root),
// then runs the service's main server and blocks until it exits or a shutdown signal arrives.
func Run(ctx context.Context, opts Options, build func(ctx context.Context, deps Deps) (Main, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.ServiceName == "" {
		return errors.New("boot: ServiceName is required")
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	log := opts.Log
	if log == nil {
		l, err := logging.New(opts.ServiceName)
		if err != nil {
			return err
		}
		log = l
		defer func() { _ = log.Sync() }()
	}

	// Root context is canceled on SIGINT/SIGTERM or when main server errors.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigc := make(chan os.Signal, 2)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	// OTEL tracing + metrics.
	shutdownTrace, err := otel.Init(runCtx, opts.ServiceName, opts.OTELExtraAttrs...)
	if err != nil {
		return err
	}
	metricsH, shutdownMetrics, err := otel.InitMetricsPrometheus(runCtx, opts.ServiceName, opts.OTELExtraAttrs...)
	if err != nil {
		_ = shutdownTrace(context.Background())
		return err
	}

	// build adds its dependencies; admin exposes /readyz from this root.
	ready := health.NewReadyGraph()

	var serving atomic.Bool
	serving.Store(true)

	deps := Deps{
		Log:       log,
		Metrics:   metricsH,
		ReadyRoot: ready,
		Serving:   &serving,
	}

	// Admin server.
	adminEnv := opts.AdminAddrEnv
	if adminEnv == "" {
		adminEnv = "ADMIN_ADDR"
	}
	adminFallback := opts.AdminAddrFallback
	if adminFallback == "" {
		adminFallback = ":8081"
	}
	adminAddr := config.Getenv(adminEnv, adminFallback)

	adminSrv, err := admin.Start(log, admin.Options{
		Addr:        adminAddr,
		ServiceName: opts.ServiceName,
		Metrics:     metricsH,
		ReadyRoot:   ready,
		ServingFn:   serving.Load,
	})
	if err != nil {
		_ = shutdownMetrics(context.Background())
		_ = shutdownTrace(context.Background())
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer shutdownCancel()
		_ = adminSrv.Shutdown(shutdownCtx)
	}()

	main, err := build(runCtx, deps)
	if err != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer shutdownCancel()
		_ = shutdownMetrics(shutdownCtx)
		_ = shutdownTrace(shutdownCtx)
		return err
	}
	if main.Serve == nil || main.Shutdown == nil {
		return errors.New("boot: Main.Serve and Main.Shutdown are required")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- main.Serve() }()

	var errs []error
	select {
	case <-runCtx.Done():
		// parent canceled
	case sig := <-sigc:
		log.Info("shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Error("main server exited", zap.Error(err))
			errs = append(errs, err)
		}
		cancel()
	}

	// Stop advertising readiness before shutdown.
	serving.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer shutdownCancel()

	if err := main.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := shutdownTrace(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
