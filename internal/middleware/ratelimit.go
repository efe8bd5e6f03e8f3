package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig defines the rate limiting configuration.
type RateLimitConfig struct {
	// RequestsPerWindow is the maximum number of requests allowed per
	// window. Must be > 0.
	RequestsPerWindow int
	// WindowDuration is the time window for the rate limit. Must be > 0.
	WindowDuration time.Duration
}

// Validate checks that the RateLimitConfig has valid values.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// DefaultGlobalLimit returns the default global rate limit
// (100 requests per minute).
func DefaultGlobalLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute}
}

// Limiter decides whether a request identified by key may proceed in
// the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter is a fixed-window in-process Limiter. Windows reset
// when the first request after expiry arrives.
type MemoryLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	start time.Time
	count int
}

// NewMemoryLimiter creates a MemoryLimiter with the given config.
func NewMemoryLimiter(cfg RateLimitConfig) *MemoryLimiter {
	return &MemoryLimiter{cfg: cfg, windows: make(map[string]*window)}
}

// Allow counts a request against the key's current window.
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.cfg.WindowDuration {
		l.windows[key] = &window{start: now, count: 1}
		return true, nil
	}
	if w.count >= l.cfg.RequestsPerWindow {
		return false, nil
	}
	w.count++
	return true, nil
}

// RedisLimiter is a fixed-window Limiter backed by Redis, for
// multi-instance deployments where per-process counters would
// multiply the effective limit.
type RedisLimiter struct {
	client *redis.Client
	cfg    RateLimitConfig
	prefix string
}

// NewRedisLimiter creates a RedisLimiter with the given config.
func NewRedisLimiter(client *redis.Client, cfg RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg, prefix: "ratelimit:"}
}

// Allow increments the key's window counter in Redis. The counter
// expires with the window; the expiry is set only when the counter is
// created.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.prefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.cfg.WindowDuration).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return count <= int64(l.cfg.RequestsPerWindow), nil
}

// clientKey identifies the requester: the authenticated principal when
// present, otherwise the remote IP.
func clientKey(r *http.Request) string {
	if principal := GetPrincipal(r.Context()); principal != nil {
		return "user:" + principal.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimit enforces the limiter per client. Blocked requests get 429
// with a Retry-After header. Limiter failures fail open: an unreachable
// Redis must not take the API down with it.
func RateLimit(limiter Limiter, cfg RateLimitConfig, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if metrics != nil {
				metrics.RateLimitChecked(key)
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				if metrics != nil {
					metrics.RateLimitError()
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if metrics != nil {
					metrics.RateLimitBlocked(key)
				}
				ctx := SetErrorCode(r.Context(), "rate_limited")
				UpdateResponseContext(w, ctx)
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.WindowDuration.Seconds())))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"Too many requests"}}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
