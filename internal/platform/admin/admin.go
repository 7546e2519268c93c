package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"dbgate/internal/platform/health"

	"go.uber.org/zap"
)

// Server is a small admin HTTP server exposing /metrics, /livez, /readyz.
type Server struct {
	http *http.Server
	ln   net.Listener
}

type Options struct {
	Addr         string
	ServiceName  string
	Metrics      http.Handler // optional
	ReadyRoot    *health.Node // optional
	ServingFn    func() bool  // optional (NOT_SERVING gate)
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Handler builds the admin mux without starting a listener.
func Handler(opts Options) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /livez", health.Livez())
	if opts.ReadyRoot != nil {
		mux.Handle("GET /readyz", health.Handler(opts.ReadyRoot, opts.ServingFn))
	}
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	return mux
}

func Start(log *zap.Logger, opts Options) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	srv := &http.Server{
		Addr:         opts.Addr,
		Handler:      Handler(opts),
		ReadTimeout:  orDur(opts.ReadTimeout, 5*time.Second),
		WriteTimeout: orDur(opts.WriteTimeout, 10*time.Second),
		IdleTimeout:  orDur(opts.IdleTimeout, 60*time.Second),
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, err
	}

	as := &Server{http: srv, ln: ln}
	go func() {
		log.Info("admin server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("admin server error", zap.Error(err))
		}
	}()
	return as, nil
}

// Addr returns the bound listener address, useful when Options.Addr used port 0.
func (s *Server) Addr() string {
	if s == nil || s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func orDur(v, d time.Duration) time.Duration {
	if v <= 0 {
		return d
	}
	return v
}
