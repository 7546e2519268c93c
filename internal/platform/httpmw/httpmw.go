package httpmw

import (
	"net/http"
	"strings"
	"time"

	"dbgate/internal/platform/logging"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Wrap adds OpenTelemetry spans + structured access logging, and makes log
// available to handlers through logging.From.
func Wrap(service string, log *zap.Logger, next http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}

	accessLog := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &respWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(logging.With(r.Context(), log)))

		lg := logging.WithTrace(r.Context(), log).With(
			zap.String("http.method", r.Method),
			zap.String("http.path", r.URL.Path),
			zap.Int("http.status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)

		if rid := r.Header.Get("x-request-id"); rid != "" {
			lg = lg.With(zap.String("request_id", rid))
		}
		if ua := r.Header.Get("user-agent"); ua != "" {
			lg = lg.With(zap.String("user_agent", ua))
		}
		if r.RemoteAddr != "" {
			lg = lg.With(zap.String("client.addr", r.RemoteAddr))
		}

		switch {
		case sw.status >= 500:
			lg.Error("http")
		case sw.status >= 400:
			lg.Warn("http")
		default:
			lg.Info("http")
		}
	})

	// otelhttp must be outermost so the access log sees an active span.
	return otelhttp.NewHandler(accessLog, service,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + Route(r.URL.Path)
		}),
	)
}

// Route maps a request path to a low-cardinality label: API paths keep at
// most their first two segments, everything else is the front end.
func Route(path string) string {
	if !strings.HasPrefix(path, "/api/") {
		return "/*"
	}
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if len(parts) > 2 {
		return "/" + parts[0] + "/" + parts[1] + "/*"
	}
	return path
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
