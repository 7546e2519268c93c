package httpmw

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// EdgePolicy configures the middleware stack in front of the API and the
// front-end handler.
type EdgePolicy struct {
	// ServiceName is used for OpenTelemetry span names + access log fields.
	ServiceName string

	// Timeout bounds total handler time.
	Timeout time.Duration

	// MaxInFlight limits concurrent requests processed by the server handler.
	MaxInFlight int

	// AllowOrigin enables CORS for the given origin list ("*" for any).
	// Empty disables CORS headers.
	AllowOrigin string

	// Limiter, when set, rejects clients that exceed their per-IP budget.
	Limiter *IPLimiter

	// Outer is applied outside the default edge chain (i.e., even before RequestID/Recover).
	Outer Chain

	// Leaf is applied closest to the business handler, inside the default edge chain.
	Leaf Chain
}

// DefaultEdge returns the default "edge" chain, excluding Wrap() and excluding any leaf middleware.
func DefaultEdge(log *zap.Logger, timeout time.Duration, maxInFlight int) Chain {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxInFlight <= 0 {
		maxInFlight = 512
	}

	return Chain{
		RequestID,
		WithRecover(log),
		SecurityHeaders,
		WithTimeout(timeout),
		WithInFlightLimit(maxInFlight),
	}
}

// BuildEdgeHandler composes a policy-driven middleware stack around next.
//
// Final order (outer -> inner):
//
//	Outer..., Wrap, CORS, RequestID, Recover, SecurityHeaders, Timeout, InFlightLimit, Limiter, Leaf..., next
func BuildEdgeHandler(log *zap.Logger, p EdgePolicy, next http.Handler) http.Handler {
	if p.ServiceName == "" {
		p.ServiceName = "service"
	}

	leaf := p.Leaf.Then(next)

	core := DefaultEdge(log, p.Timeout, p.MaxInFlight).Append(WithRateLimit(p.Limiter))

	h := core.Then(leaf)

	// Preflights are answered before any budget is spent on them.
	h = WithCORS(p.AllowOrigin)(h)

	h = WithWrap(p.ServiceName, log)(h)

	return p.Outer.Then(h)
}
