// Package ratelimit throttles outbound retrieval locally and inbound API
// clients through a shared counter.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Counter is a shared fixed-window counter, usually backed by Postgres
type Counter interface {
	Increment(ctx context.Context, key string, windowSeconds int) (int64, error)
}

var ErrLimitExceeded = errors.New("rate limit exceeded")

// Cooldown is a per-key token bucket kept in process memory
type Cooldown struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    time.Duration
	burst    int
	now      func() time.Time
}

// NewCooldown allows burst attempts per key and then one every interval.
// A non-positive interval disables the cooldown.
func NewCooldown(every time.Duration, burst int) *Cooldown {
	if burst < 1 {
		burst = 1
	}
	return &Cooldown{
		limiters: make(map[string]*rate.Limiter),
		every:    every,
		burst:    burst,
		now:      time.Now,
	}
}

func (c *Cooldown) limiter(key string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(c.every), c.burst)
		c.limiters[key] = l
	}
	return l
}

// Allow reports whether an attempt under key may go out now.
// When it may not, the returned duration is how long to wait.
func (c *Cooldown) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if c == nil || c.every <= 0 {
		return true, 0
	}
	if ctx.Err() != nil {
		return false, 0
	}
	now := c.now()
	r := c.limiter(key).ReserveN(now, 1)
	if !r.OK() {
		return false, c.every
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// Limiter enforces a per-minute request limit through a shared Counter
type Limiter struct {
	counter Counter
	window  time.Duration
	logger  *zap.Logger
}

// NewLimiter creates a limiter. A nil counter disables limiting.
func NewLimiter(counter Counter, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{counter: counter, window: time.Minute, logger: logger}
}

// Enabled reports whether a counter is attached
func (l *Limiter) Enabled() bool {
	return l != nil && l.counter != nil
}

// Check counts one request for key against limit per window.
// Counter failures fail open and are logged.
func (l *Limiter) Check(ctx context.Context, key string, limit int) (time.Duration, error) {
	if !l.Enabled() || limit <= 0 {
		return 0, nil
	}
	seconds := int(l.window / time.Second)
	hits, err := l.counter.Increment(ctx, key, seconds)
	if err != nil {
		l.logger.Warn("rate counter unavailable, allowing request", zap.String("key", key), zap.Error(err))
		return 0, nil
	}
	if hits > int64(limit) {
		return l.window, fmt.Errorf("%w: %d requests in %s", ErrLimitExceeded, hits, l.window)
	}
	return 0, nil
}
