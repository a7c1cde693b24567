// HTTP middleware for security, logging, and rate limiting.
//
// DESIGN: Middleware chain (applied in order):
//  1. panicRecovery:     Catch panics, return 500, log stack trace
//  2. loggingMiddleware: Request id, request/response logging with timing
//  3. security:          Security headers, CORS for local development
//  4. rateLimit:         Per-IP token bucket (when server.ip_rate_limit > 0)
//
// The per-IP limiter protects the HTTP surface. Per-user and per-instance
// action limits live in the actions package.
package gateway

import (
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/compresr/bedrock-provider/internal/monitoring"
)

// rateLimiter implements a token bucket rate limiter per IP address.
type rateLimiter struct {
	requests   map[string]*bucket
	mu         sync.Mutex
	rate       int
	maxBuckets int
}

// bucket holds rate limiting state for a single IP.
type bucket struct {
	tokens    int
	lastCheck time.Time
}

// newRateLimiter creates a new rate limiter with the specified rate per second.
func newRateLimiter(rate int) *rateLimiter {
	rl := &rateLimiter{requests: make(map[string]*bucket), rate: rate, maxBuckets: MaxRateLimitBuckets}
	go rl.cleanup()
	return rl
}

// allow checks if the given IP is allowed to make a request.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, exists := rl.requests[ip]
	if !exists {
		// Enforce max buckets to prevent memory exhaustion
		if len(rl.requests) >= rl.maxBuckets {
			rl.evictOldest()
		}
		rl.requests[ip] = &bucket{tokens: rl.rate - 1, lastCheck: now}
		return true
	}

	elapsed := now.Sub(b.lastCheck).Seconds()
	b.tokens += int(elapsed * float64(rl.rate))
	if b.tokens > rl.rate {
		b.tokens = rl.rate
	}
	b.lastCheck = now

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// evictOldest removes the oldest bucket (called with lock held).
func (rl *rateLimiter) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, b := range rl.requests {
		if first || b.lastCheck.Before(oldestTime) {
			oldestKey = k
			oldestTime = b.lastCheck
			first = false
		}
	}
	if oldestKey != "" {
		delete(rl.requests, oldestKey)
	}
}

// cleanup periodically removes stale buckets.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-10 * time.Minute)
		for ip, b := range rl.requests {
			if b.lastCheck.Before(cutoff) {
				delete(rl.requests, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// loggingMiddleware assigns the request id and logs request details and duration.
func (g *Gateway) loggingMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		r := c.Request()
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Response().Header().Set(HeaderRequestID, requestID)

		// Add request ID to context for downstream logging
		c.SetRequest(r.WithContext(monitoring.WithRequestIDContext(r.Context(), requestID)))

		bodySize := int(r.ContentLength)
		if bodySize < 0 {
			bodySize = 0
		}
		g.requestLogger.LogIncoming(monitoring.NewRequestInfo(r, requestID, bodySize))

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		latency := time.Since(start)
		status := c.Response().Status
		g.requestLogger.LogResponse(&monitoring.ResponseInfo{
			RequestID:  requestID,
			StatusCode: status,
			Latency:    latency,
		})

		log.Info().
			Str("id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", latency).
			Msg("request")
		return nil
	}
}

// panicRecovery recovers from panics and returns a 500 error.
func (g *Gateway) panicRecovery(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := string(debug.Stack())
				requestID := monitoring.RequestIDFromContext(c.Request().Context())

				g.alerts.FlagPanic(requestID, rec, stack)

				// Details go to the alert log only.
				err = requestError{
					Status:  http.StatusInternalServerError,
					Message: "internal error",
					Type:    "server_error",
				}
			}
		}()
		return next(c)
	}
}

// rateLimit enforces per-IP rate limiting.
func (g *Gateway) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ip := getClientIP(c.Request())
		if !g.rateLimiter.allow(ip) {
			log.Warn().Str("ip", ip).Msg("rate limit exceeded")
			c.Response().Header().Set("Retry-After", "1")
			return requestError{
				Status:  http.StatusTooManyRequests,
				Message: "rate limit exceeded",
				Type:    "rate_limit_error",
			}
		}
		return next(c)
	}
}

// security adds security headers and handles CORS.
func (g *Gateway) security(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'")

		// CORS: local development origins only
		origin := c.Request().Header.Get("Origin")
		if origin != "" && isAllowedOrigin(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, Accept-Language")
			h.Set("Access-Control-Max-Age", "86400")
		}

		if c.Request().Method == http.MethodOptions {
			return c.NoContent(http.StatusNoContent)
		}
		return next(c)
	}
}

// isAllowedOrigin checks if origin is permitted for CORS.
func isAllowedOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1")
}

// getClientIP extracts the client IP address from the request.
// Trusts X-Forwarded-For and X-Real-IP headers only from localhost.
func getClientIP(r *http.Request) string {
	if remoteIP, _, _ := net.SplitHostPort(r.RemoteAddr); remoteIP == "127.0.0.1" || remoteIP == "::1" {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if idx := strings.Index(xff, ","); idx != -1 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	return ip
}
