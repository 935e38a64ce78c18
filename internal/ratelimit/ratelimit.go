package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/fitcoach-api/internal/httputil"
	"github.com/redmonkez12/fitcoach-api/internal/logging"
	"github.com/redmonkez12/fitcoach-api/internal/metrics"
)

const (
	DefaultIPLimit       = 10
	DefaultIPWindow      = 15 * time.Minute
	DefaultEmailCooldown = 2 * time.Minute

	keyPrefix = "fitcoach:ratelimit:"
)

// fixedWindowLua increments the counter and starts the window on first hit.
const fixedWindowLua = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

// Limiter applies per-IP fixed windows and per-email cooldowns in Redis.
type Limiter struct {
	rdb           *redis.Client
	ipLimit       int64
	ipWindow      time.Duration
	emailCooldown time.Duration
	script        *redis.Script
}

func NewLimiter(rdb *redis.Client, ipLimit int, ipWindow, emailCooldown time.Duration) *Limiter {
	if ipLimit <= 0 {
		ipLimit = DefaultIPLimit
	}
	if ipWindow <= 0 {
		ipWindow = DefaultIPWindow
	}
	if emailCooldown <= 0 {
		emailCooldown = DefaultEmailCooldown
	}
	return &Limiter{
		rdb:           rdb,
		ipLimit:       int64(ipLimit),
		ipWindow:      ipWindow,
		emailCooldown: emailCooldown,
		script:        redis.NewScript(fixedWindowLua),
	}
}

// AllowIP records one request from ip for purpose and reports whether it is
// still within the window's limit.
func (l *Limiter) AllowIP(ctx context.Context, purpose, ip string) (bool, error) {
	key := keyPrefix + "ip:" + purpose + ":" + ip
	count, err := l.script.Run(ctx, l.rdb, []string{key}, l.ipWindow.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("ratelimit eval: %w", err)
	}
	return count <= l.ipLimit, nil
}

// ReserveEmail starts a cooldown for email and reports false if one is
// already running.
func (l *Limiter) ReserveEmail(ctx context.Context, purpose, email string) (bool, error) {
	key := keyPrefix + "email:" + purpose + ":" + strings.ToLower(strings.TrimSpace(email))
	ok, err := l.rdb.SetNX(ctx, key, 1, l.emailCooldown).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit setnx: %w", err)
	}
	return ok, nil
}

// Middleware limits requests per client IP. Redis errors fail open.
func (l *Limiter) Middleware(purpose string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.GetLoggerFromContext(r.Context())
			ip := ClientIP(r)

			allowed, err := l.AllowIP(r.Context(), purpose, ip)
			if err != nil {
				logger.Error("failed to check IP rate limit", "error", err.Error())
			} else if !allowed {
				logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
				metrics.RateLimitedTotal.WithLabelValues(purpose).Inc()
				httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP address from the request
func ClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr format is "IP:port"
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
