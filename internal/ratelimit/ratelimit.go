// Package ratelimit enforces the hourly per-user and global action limits.
//
// DESIGN: Two backends behind one Limiter interface:
//   - MemoryLimiter: sliding window per key, single process
//   - RedisLimiter:  fixed window counter shared across processes
//
// A check that passes consumes one slot. A check that fails consumes nothing.
// Keys are scoped by a component name (one per provider instance) so
// instances never share budgets.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/compresr/bedrock-provider/internal/config"
)

// Limiter checks and records action invocations.
type Limiter interface {
	// CheckUserRateLimit reports whether userID may run one more action.
	CheckUserRateLimit(ctx context.Context, component string, limit int, userID string) (bool, error)

	// CheckGlobalRateLimit reports whether the component may run one more action.
	CheckGlobalRateLimit(ctx context.Context, component string, limit int) (bool, error)
}

// DefaultWindow is the rate limit period.
const DefaultWindow = time.Hour

func userKey(component, userID string) string {
	return component + ":user:" + userID
}

func globalKey(component string) string {
	return component + ":global"
}

// New creates the limiter selected by cfg.
func New(cfg config.RateLimitConfig) (Limiter, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryLimiter(cfg.EffectiveWindow()), nil
	case "redis":
		return NewRedisLimiter(RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			Window:   cfg.EffectiveWindow(),
		})
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}
