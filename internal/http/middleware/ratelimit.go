package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	idle    time.Duration
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond requests per client with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idle:    10 * time.Minute,
	}
}

// Allow reports whether key may make another request now.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()
	rl.mu.Lock()
	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	rl.mu.Unlock()
	return c.limiter.AllowN(now, 1)
}

// Sweep drops clients idle for longer than the idle window.
func (rl *RateLimiter) Sweep(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.idle {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// RateLimit rejects requests over the limit with 429. A rate of zero or less disables it.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := NewRateLimiter(perSecond, burst)
	var sweepMu sync.Mutex
	lastSweep := time.Now()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sweepMu.TryLock() {
				if time.Since(lastSweep) > time.Minute {
					limiter.Sweep(time.Now())
					lastSweep = time.Now()
				}
				sweepMu.Unlock()
			}
			if !limiter.Allow(clientKey(r)) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey prefers X-Real-Ip set by chi's RealIP middleware.
func clientKey(r *http.Request) string {
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
