package httpmw

import (
	"net/http"

	"dbgate/internal/platform/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestID ensures every request has an X-Request-Id.
// If absent, it generates a UUIDv4. Always echoes back the header and tags
// the request-scoped logger with it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			r.Header.Set("X-Request-Id", uuid.NewString())
		}
		id := r.Header.Get("X-Request-Id")
		w.Header().Set("X-Request-Id", id)

		ctx := r.Context()
		ctx = logging.With(ctx, logging.From(ctx, nil).With(zap.String("request_id", id)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
