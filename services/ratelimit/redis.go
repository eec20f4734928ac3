// Package ratelimitsvc provides fixed-window rate limiters backing the OTP
// issuance throttle.
package ratelimitsvc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/campuskit/identity/core"
)

type redisLimiter struct {
	client *redis.Client
	window time.Duration
	limit  int
}

var _ core.RateLimiter = (*redisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, window time.Duration, limit int) *redisLimiter {
	return &redisLimiter{client: client, window: window, limit: limit}
}

// Allow counts a hit against key. INCR + first-hit EXPIRE keeps the counter
// atomic across instances.
func (l *redisLimiter) Allow(ctx context.Context, key string) error {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return errors.Wrap(err, "incrementing rate limit counter")
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return errors.Wrap(err, "setting rate limit window")
		}
	}
	if count > int64(l.limit) {
		return core.ErrRateLimited
	}
	return nil
}
