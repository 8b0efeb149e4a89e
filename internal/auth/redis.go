package auth

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedKeyPrefix   = "storefront:revoked:"
	rateLimitKeyPrefix = "storefront:rate_limit:"
)

// Revoker keeps a denylist of signed-out token ids in Redis. A nil
// Revoker or client disables revocation.
type Revoker struct {
	client *redis.Client
}

func NewRevoker(client *redis.Client) *Revoker {
	return &Revoker{client: client}
}

// Revoke denylists jti until the token would have expired anyway.
func (r *Revoker) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if r == nil || r.client == nil {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKeyPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("auth: failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti was signed out.
func (r *Revoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if r == nil || r.client == nil {
		return false, nil
	}
	n, err := r.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("auth: failed to check revocation: %w", err)
	}
	return n > 0, nil
}

// RateLimiter is a fixed-window counter per key. Without Redis, or when
// Redis fails, every request is allowed.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Allow counts one request for key and reports whether it is within the limit.
func (l *RateLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil || l.limit <= 0 {
		return true
	}

	redisKey := rateLimitKeyPrefix + key
	// The counter is created with its expiry in the same transaction as the
	// increment, so a key can never outlive its window.
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, redisKey, 0, l.window)
		incr = pipe.Incr(ctx, redisKey)
		return nil
	})
	if err != nil {
		log.Printf("WARN: Rate limiter unavailable, allowing request: %v", err)
		return true
	}
	count := incr.Val()
	return count <= l.limit
}
