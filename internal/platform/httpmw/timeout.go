package httpmw

import (
	"context"
	"net/http"
	"time"
)

// Timeout enforces a per-request deadline unless the request context already
// carries one. A handler that overruns gets a 504.
func Timeout(d time.Duration, next http.Handler) http.Handler {
	if d <= 0 {
		return next
	}

	th := http.TimeoutHandler(next, d, `{"success":false,"message":"Gateway Timeout"}`)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); ok {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		th.ServeHTTP(w, r.WithContext(ctx))
	})
}
