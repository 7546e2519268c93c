package httpmw

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPLimiter is an in-memory token bucket per client IP. Buckets idle for
// longer than ttl are dropped on the next lookup.
type IPLimiter struct {
	rate    rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	clients map[string]*ipClient
}

type ipClient struct {
	lim  *rate.Limiter
	last time.Time
}

func NewIPLimiter(r rate.Limit, burst int, ttl time.Duration) *IPLimiter {
	return &IPLimiter{
		rate:    r,
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
		clients: make(map[string]*ipClient),
	}
}

// Allow reports whether a request from ip may proceed now.
func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, c := range l.clients {
		if now.Sub(c.last) > l.ttl {
			delete(l.clients, k)
		}
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &ipClient{lim: rate.NewLimiter(l.rate, l.burst)}
		l.clients[ip] = c
	}
	c.last = now
	return c.lim.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil || l.rate <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(ip) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP uses the peer address only; forwarded headers are not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}
	return ""
}
