// Package ratelimit throttles mutating commands per acting user with a
// fixed-window counter in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config defines configuration for rate limiting
type Config struct {
	// Window is the time window for rate limiting
	Window time.Duration
	// Limit is the maximum number of operations allowed in the window
	Limit int
	// KeyPrefix namespaces the Redis keys
	KeyPrefix string
}

// Decision is the outcome of one check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts operations per subject in Redis.
type Limiter struct {
	redis  redis.Cmdable
	config Config
	now    func() time.Time
}

func New(client redis.Cmdable, cfg Config) *Limiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit"
	}
	return &Limiter{redis: client, config: cfg, now: time.Now}
}

func (l *Limiter) key(subject string, windowStart time.Time) string {
	return fmt.Sprintf("%s:%s:%d", l.config.KeyPrefix, subject, windowStart.Unix())
}

// Allow records one operation for subject and reports whether it fits in the
// current window.
func (l *Limiter) Allow(ctx context.Context, subject string) (Decision, error) {
	windowStart := l.now().Truncate(l.config.Window)
	key := l.key(subject, windowStart)

	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("failed to record rate limit hit: %w", err)
	}

	count := int(incr.Val())
	remaining := l.config.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= l.config.Limit,
		Remaining: remaining,
		ResetAt:   windowStart.Add(l.config.Window),
	}, nil
}

// Peek reports the current window without recording an operation.
func (l *Limiter) Peek(ctx context.Context, subject string) (Decision, error) {
	windowStart := l.now().Truncate(l.config.Window)
	resetAt := windowStart.Add(l.config.Window)

	count, err := l.redis.Get(ctx, l.key(subject, windowStart)).Int()
	if err == redis.Nil {
		return Decision{Allowed: true, Remaining: l.config.Limit, ResetAt: resetAt}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read rate limit: %w", err)
	}

	remaining := l.config.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: count < l.config.Limit, Remaining: remaining, ResetAt: resetAt}, nil
}
