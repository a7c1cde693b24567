package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// allowScript increments KEYS[1] unless it already reached ARGV[1].
// The first increment starts the window.
var allowScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[1]) then
  return 0
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 1
`)

// RedisOptions configures a RedisLimiter.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Window   time.Duration
}

// RedisLimiter implements fixed window counters in Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	window time.Duration
}

// NewRedisLimiter connects to Redis and verifies the connection.
// Addr may be host:port or a redis:// URL.
func NewRedisLimiter(opts RedisOptions) (*RedisLimiter, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("redis addr is empty")
	}

	var ropt *redis.Options
	if strings.Contains(opts.Addr, "://") {
		parsed, err := redis.ParseURL(opts.Addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		ropt = parsed
	} else {
		ropt = &redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
	}

	client := redis.NewClient(ropt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisLimiterWithClient(client, opts.Prefix, opts.Window), nil
}

// NewRedisLimiterWithClient wraps an existing client.
func NewRedisLimiterWithClient(client redis.UniversalClient, prefix string, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "bedrock-ratelimit"
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{client: client, prefix: prefix, window: window}
}

// CheckUserRateLimit implements Limiter.
func (rl *RedisLimiter) CheckUserRateLimit(ctx context.Context, component string, limit int, userID string) (bool, error) {
	return rl.allow(ctx, userKey(component, userID), limit)
}

// CheckGlobalRateLimit implements Limiter.
func (rl *RedisLimiter) CheckGlobalRateLimit(ctx context.Context, component string, limit int) (bool, error) {
	return rl.allow(ctx, globalKey(component), limit)
}

func (rl *RedisLimiter) allow(ctx context.Context, key string, limit int) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	fullKey := rl.prefix + ":" + key
	res, err := allowScript.Run(ctx, rl.client, []string{fullKey}, limit, rl.window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis rate limit check: %w", err)
	}
	return res == 1, nil
}

// Close releases the Redis connection.
func (rl *RedisLimiter) Close() error {
	return rl.client.Close()
}

var _ Limiter = (*RedisLimiter)(nil)
