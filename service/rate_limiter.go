package service

import (
	"context"
	"fmt"
	"go-draw-api/common"
	"time"
)

// RateLimitPolicy is a fixed window: at most Limit hits per Window.
type RateLimitPolicy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// RateLimiter counts hits in Redis, one counter per policy and key.
type RateLimiter struct {
	cache  ICacheClient
	prefix string
}

func NewRateLimiter(cache ICacheClient, prefix string) *RateLimiter {
	return &RateLimiter{cache: cache, prefix: prefix}
}

func (l *RateLimiter) key(policy RateLimitPolicy, key string) string {
	return fmt.Sprintf("%s:ratelimit:%s:%s", l.prefix, policy.Name, key)
}

// Allow records a hit. Past the limit it returns common.ErrRateLimited along
// with the time left in the window. Redis failures wrap common.ErrStoreUnavailable.
func (l *RateLimiter) Allow(ctx context.Context, policy RateLimitPolicy, key string) (time.Duration, error) {
	k := l.key(policy, key)

	count, err := l.cache.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	// Fixed window: the TTL is set by the first hit only.
	if count == 1 {
		if err := l.cache.Expire(ctx, k, policy.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
		}
	}

	if count <= int64(policy.Limit) {
		return 0, nil
	}

	retryAfter, err := l.cache.TTL(ctx, k).Result()
	if err != nil || retryAfter <= 0 {
		// A counter left without a TTL would block the key forever.
		_ = l.cache.Expire(ctx, k, policy.Window).Err()
		retryAfter = policy.Window
	}
	return retryAfter, common.ErrRateLimited
}
