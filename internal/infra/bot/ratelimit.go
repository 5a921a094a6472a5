package bot

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// pruneThreshold is the bucket count above which Allow sweeps expired entries.
const pruneThreshold = 1024

// RateLimiter caps how many requests each client host may send to the public
// message webhook per window. Buckets are keyed by host only, so connections
// from the same client share a budget regardless of source port.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
}

type bucket struct {
	remaining int
	resetAt   time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
	}
}

// Allow reports whether one more request from host fits in its current
// window. Expired buckets are swept once the map grows past pruneThreshold,
// keeping it proportional to currently active clients.
func (rl *RateLimiter) Allow(host string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if len(rl.buckets) > pruneThreshold {
		rl.prune(now)
	}

	b, ok := rl.buckets[host]
	if !ok || now.After(b.resetAt) {
		rl.buckets[host] = &bucket{
			remaining: rl.limit - 1,
			resetAt:   now.Add(rl.window),
		}
		return true
	}

	if b.remaining > 0 {
		b.remaining--
		return true
	}
	return false
}

func (rl *RateLimiter) prune(now time.Time) {
	for host, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, host)
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientHost(r)) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// clientHost identifies the caller by host alone. Proxy headers take
// precedence (first X-Forwarded-For entry); the fallback strips the ephemeral
// port from RemoteAddr.
func clientHost(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
