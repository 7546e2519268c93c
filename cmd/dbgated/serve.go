package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"dbgate/internal/db"
	"dbgate/internal/env"
	"dbgate/internal/platform/boot"
	"dbgate/internal/platform/httpmw"
	"dbgate/internal/platform/logging"
	"dbgate/internal/platform/metrics"
	"dbgate/internal/services/query/dispatch"
	"dbgate/internal/services/query/probe"
	"dbgate/internal/services/query/registry"
	"dbgate/internal/services/query/server"
	"dbgate/internal/services/web"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func runServe(cmd *cobra.Command, _ []string) error {
	log, err := logging.New(serviceName)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	st, err := loadSettings()
	if err != nil {
		log.Error("invalid settings", zap.Error(err))
		return err
	}
	cfgs, err := loadConfigs()
	if err != nil {
		var inc *env.IncompleteError
		if errors.As(err, &inc) {
			names := make([]string, len(inc.Envs))
			for i, n := range inc.Envs {
				names[i] = string(n)
			}
			log.Error("database configuration incomplete", zap.Strings("environments", names), zap.Error(err))
		}
		return err
	}

	return boot.Run(cmd.Context(), boot.Options{ServiceName: serviceName, Log: log},
		func(ctx context.Context, deps boot.Deps) (boot.Main, error) {
			return build(ctx, deps, st, cfgs)
		})
}

func build(ctx context.Context, deps boot.Deps, st settings, cfgs env.Configs) (boot.Main, error) {
	log := deps.Log

	reg := registry.New(cfgs, db.Opener(st.Pool), log)

	queryMetrics, err := metrics.NewQueryMetrics(serviceName, func() map[string]sql.DBStats {
		stats := reg.Stats()
		out := make(map[string]sql.DBStats, len(stats))
		for n, s := range stats {
			out[string(n)] = s
		}
		return out
	})
	if err != nil {
		return boot.Main{}, err
	}
	httpMetrics, err := metrics.NewHTTPServerMetrics(serviceName)
	if err != nil {
		return boot.Main{}, err
	}

	gate := dispatch.New(reg, log, dispatch.Options{
		Default:  st.Default,
		Timeout:  st.QueryTimeout,
		ReadOnly: st.ReadOnly,
		Observer: queryMetrics,
	})
	prober := probe.New(reg, st.ProbeTimeout)

	prober.Register(deps.ReadyRoot, st.Default, st.ProbeTimeout)

	front, err := web.Handler(web.Options{Mode: st.Mode, DevURL: st.DevURL, StaticDir: st.StaticDir})
	if err != nil {
		return boot.Main{}, err
	}

	mux := http.NewServeMux()
	server.New(gate, prober, log).Register(mux)
	mux.Handle("/", front)

	var limiter *httpmw.IPLimiter
	if st.RateRPS > 0 {
		limiter = httpmw.NewIPLimiter(rate.Limit(st.RateRPS), st.RateBurst, 2*time.Minute)
	}
	h := httpmw.BuildEdgeHandler(log, httpmw.EdgePolicy{
		ServiceName: serviceName,
		Timeout:     st.HTTPTimeout,
		MaxInFlight: st.MaxInFlight,
		AllowOrigin: st.AllowOrigin,
		Limiter:     limiter,
		Outer:       httpmw.Chain{httpMetrics.Middleware},
	}, mux)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(st.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// The first pool is created off the request path; failure is only logged.
	go func() {
		o := prober.Probe(ctx, st.Default)
		if o.Success {
			log.Info("default environment reachable", zap.String("environment", string(st.Default)))
			return
		}
		log.Error("default environment unreachable",
			zap.String("environment", string(st.Default)),
			zap.String("message", o.Message),
		)
	}()

	return boot.Main{
		Serve: func() error {
			log.Info("api listening",
				zap.String("addr", srv.Addr),
				zap.String("mode", string(st.Mode)),
				zap.String("default_environment", string(st.Default)),
				zap.Bool("read_only", st.ReadOnly),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		Shutdown: func(ctx context.Context) error {
			return errors.Join(srv.Shutdown(ctx), reg.Close())
		},
	}, nil
}
