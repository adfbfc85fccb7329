package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/bookcircle/bookcircle/internal/httputil"
)

// RateLimiter limits requests per client IP using a token bucket per key.
type RateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	limit      rate.Limit
	burst      int
	trustProxy bool
}

// NewRateLimiter creates a limiter allowing rps requests per second with
// the given burst per client.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// TrustProxyHeaders keys clients by the first X-Forwarded-For hop instead of
// the peer address. Enable only behind a proxy that overwrites the header;
// otherwise clients can rotate the header to escape their bucket.
func (rl *RateLimiter) TrustProxyHeaders() *RateLimiter {
	rl.trustProxy = true
	return rl
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.limiters[key]
	if !ok {
		// Unbounded growth guard: reset the map when it gets large
		// rather than tracking per-entry expiry.
		if len(rl.limiters) > 10000 {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = lim
	}
	return lim
}

// Handler wraps next with per-IP rate limiting.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter(rl.clientIP(r)).Allow() {
			httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) clientIP(r *http.Request) string {
	if rl.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
