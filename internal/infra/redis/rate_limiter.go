// Package redis holds the Redis-backed infrastructure: the submission rate
// limiter, the recompute lease and the quiz content cache.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter caps completed submissions per user with a fixed-window
// counter. Exceeding the cap rejects the request outright; nothing is queued.
type RateLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	clock  func() time.Time
}

func NewRateLimiter(client *redis.Client, max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		max:    max,
		window: window,
		clock:  time.Now,
	}
}

func (l *RateLimiter) Allow(ctx context.Context, userID int64) (bool, error) {
	key := l.key(userID)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		// First hit in this window owns the expiry.
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return count <= int64(l.max), nil
}

func (l *RateLimiter) key(userID int64) string {
	bucket := l.clock().Unix() / int64(l.window.Seconds())
	return fmt.Sprintf("ratelimit:submissions:%d:%d", userID, bucket)
}
