package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/arx-os/vecindex/internal/common/logger"
)

// RateLimitConfig configures per-key token-bucket limiting, trimmed from
// the teacher's RateLimitConfig (arx-backend/gateway/middleware/rate_limit.go)
// down to the one keying strategy this front needs: per authenticated
// user, falling back to remote address.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	SkipPaths         []string
}

// RateLimitMiddleware holds one rate.Limiter per key, created lazily and
// kept for the process lifetime, matching the teacher's
// map[string]*rate.Limiter pattern.
type RateLimitMiddleware struct {
	config   RateLimitConfig
	log      *logger.Logger
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// NewRateLimitMiddleware builds a RateLimitMiddleware from cfg.
func NewRateLimitMiddleware(cfg RateLimitConfig) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		config:   cfg,
		log:      logger.With("component", "server.ratelimit"),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (rl *RateLimitMiddleware) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)
		rl.limiters[key] = l
	}
	return l
}

func (rl *RateLimitMiddleware) shouldSkip(path string) bool {
	for _, p := range rl.config.SkipPaths {
		if p == path {
			return true
		}
	}
	return false
}

func (rl *RateLimitMiddleware) keyFor(r *http.Request) string {
	if userID, ok := UserFromContext(r.Context()); ok {
		return "user:" + userID
	}
	return "ip:" + r.RemoteAddr
}

// Middleware returns the http middleware. It must run after AuthMiddleware
// so keyFor can see an authenticated UserFromContext.
func (rl *RateLimitMiddleware) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.shouldSkip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := rl.keyFor(r)
			limiter := rl.getLimiter(key)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%.0f", rl.config.RequestsPerSecond))
			if !limiter.Allow() {
				rl.log.Warn("rate limit exceeded for %s on %s", key, r.URL.Path)
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(time.Second).Unix()))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", int(limiter.Tokens())))
			next.ServeHTTP(w, r)
		})
	}
}
