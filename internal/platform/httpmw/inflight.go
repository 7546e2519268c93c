package httpmw

import (
	"net/http"
)

// InFlightLimit bounds the number of concurrent in-flight requests. Requests
// over the limit get a 503 immediately instead of queueing.
func InFlightLimit(max int, next http.Handler) http.Handler {
	if max <= 0 {
		return next
	}

	sem := make(chan struct{}, max)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
			return
		default:
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable)
			return
		}
	})
}
