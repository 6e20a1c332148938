package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kairosvoice/kairos-agent/pkg/logger"
)

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	Requests int                            // Max requests per window
	Window   time.Duration                  // Time window duration
	KeyFunc  func(r *http.Request) []string // Function to generate rate limit keys
	SkipFunc func(r *http.Request) bool     // Function to skip rate limiting
}

// RateLimiter provides redis-backed rate limiting
type RateLimiter struct {
	client *redis.Client
	config RateLimitConfig
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *redis.Client, config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = KeyByIP
	}
	return &RateLimiter{
		client: client,
		config: config,
	}
}

// KeyByIP keys requests by the client address.
func KeyByIP(r *http.Request) []string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return []string{"ip:" + host}
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.config.SkipFunc != nil && rl.config.SkipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			for _, key := range rl.config.KeyFunc(r) {
				if !rl.allow(r.Context(), key) {
					http.Error(w, "Too many requests. Try again later.", http.StatusTooManyRequests)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// allow checks and records one request against a key. Redis being down
// fails open; rate limiting is protection, not a dependency.
func (rl *RateLimiter) allow(ctx context.Context, key string) bool {
	if rl.client == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// Hash the key for privacy
	hashed := fmt.Sprintf("ratelimit:%x", sha256.Sum256([]byte(key)))

	count, err := rl.client.Incr(ctx, hashed).Result()
	if err != nil {
		logger.WarnContext(ctx, "Rate limit check failed", "error", err)
		return true
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, hashed, rl.config.Window).Err(); err != nil {
			logger.WarnContext(ctx, "Rate limit expire failed", "error", err)
		}
	}

	return count <= int64(rl.config.Requests)
}
