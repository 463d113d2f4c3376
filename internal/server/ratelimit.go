package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig sets the per-client token bucket. Clients are keyed by
// RemoteAddr; TrustProxy keys them by the first X-Forwarded-For hop instead and
// should only be set behind a proxy that overwrites that header.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	TrustProxy        bool
}

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	cfg       RateLimitConfig
	mu        sync.Mutex
	clients   map[string]*rate.Limiter
	lastSeen  map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

const limiterIdleTTL = 10 * time.Minute

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &rateLimiter{
		cfg:      cfg,
		clients:  make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (rl *rateLimiter) limiter(clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	if now.Sub(rl.lastSweep) > limiterIdleTTL {
		for id, seen := range rl.lastSeen {
			if now.Sub(seen) > limiterIdleTTL {
				delete(rl.clients, id)
				delete(rl.lastSeen, id)
			}
		}
		rl.lastSweep = now
	}
	rl.lastSeen[clientID] = now
	if l, ok := rl.clients[clientID]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(float64(rl.cfg.RequestsPerMinute)/60.0), rl.cfg.Burst)
	rl.clients[clientID] = l
	return l
}

func (rl *rateLimiter) retryAfter() time.Duration {
	perSecond := float64(rl.cfg.RequestsPerMinute) / 60.0
	if perSecond <= 0 {
		return time.Minute
	}
	return time.Duration(float64(time.Second)/perSecond) + time.Second
}

// middleware rejects requests over the limit with 429. A non-positive rate disables limiting.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	if rl.cfg.RequestsPerMinute <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.RequestsPerMinute))
		if !rl.limiter(clientIP(r, rl.cfg.TrustProxy)).Allow() {
			retry := rl.retryAfter()
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
			respondStatusError(w, newAPIError(http.StatusTooManyRequests, "rate_limited", "too many requests", map[string]any{
				"retry_after_seconds": int(retry.Seconds()),
			}))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request, trustProxy bool) string {
	if fwd := r.Header.Get("X-Forwarded-For"); trustProxy && fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
