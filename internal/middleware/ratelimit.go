// Package middleware provides HTTP middleware for the winddown service
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"

	"github.com/winddownhq/winddown/internal/errors"
	internalhttputil "github.com/winddownhq/winddown/internal/httputil"
	"github.com/winddownhq/winddown/internal/logging"
)

// RateLimiter throttles requests per user (or per remote address before
// authentication). With a redis address configured the window is shared
// across instances; otherwise each process keeps its own token buckets.
type RateLimiter struct {
	limiters    map[string]*rate.Limiter
	mu          sync.RWMutex
	rate        rate.Limit
	burst       int
	windowLimit int64
	rdb         *redis.Client
	logger      *logging.Logger
}

// NewRateLimiter creates a new rate limiter. redisAddr may be empty.
func NewRateLimiter(requestsPerSecond float64, burst int, redisAddr string, logger *logging.Logger) *RateLimiter {
	windowLimit := int64(requestsPerSecond)
	if int64(burst) > windowLimit {
		windowLimit = int64(burst)
	}

	rl := &RateLimiter{
		limiters:    make(map[string]*rate.Limiter),
		rate:        rate.Limit(requestsPerSecond),
		burst:       burst,
		windowLimit: windowLimit,
		logger:      logger,
	}
	if redisAddr != "" {
		rl.rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
	}
	return rl
}

// getLimiter returns a rate limiter for the given key (e.g., user ID or IP)
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}

	return limiter
}

// allow checks the shared window first and falls back to the local limiter
// when redis is unreachable.
func (rl *RateLimiter) allow(ctx context.Context, key string) bool {
	if rl.rdb != nil {
		allowed, err := rl.allowShared(ctx, key)
		if err == nil {
			return allowed
		}
		rl.logger.WithContext(ctx).WithError(err).Warn("shared rate limit check failed; using local limiter")
	}
	return rl.getLimiter(key).Allow()
}

// allowShared counts requests in a per-second fixed window.
func (rl *RateLimiter) allowShared(ctx context.Context, key string) (bool, error) {
	bucket := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix())
	count, err := rl.rdb.Incr(ctx, bucket).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := rl.rdb.Expire(ctx, bucket, 2*time.Second).Err(); err != nil {
			return false, err
		}
	}
	return count <= rl.windowLimit, nil
}

// Handler returns the rate limiting middleware handler
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Use user ID if authenticated, otherwise use IP address
		key := GetUserID(r.Context())
		if key == "" {
			key = r.RemoteAddr
		}

		if !rl.allow(r.Context(), key) {
			rl.logger.LogSecurityEvent(r.Context(), "rate_limit_exceeded", map[string]interface{}{
				"key":    key,
				"path":   r.URL.Path,
				"method": r.Method,
			})

			serviceErr := errors.RateLimitExceeded(int(rl.rate), "1s")
			internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Close releases the redis connection when one is attached.
func (rl *RateLimiter) Close() error {
	if rl.rdb == nil {
		return nil
	}
	return rl.rdb.Close()
}

// Cleanup removes old limiters (should be called periodically)
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.limiters) > 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

// StartCleanup starts a background goroutine to periodically cleanup old limiters
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			rl.Cleanup()
		}
	}()
}
