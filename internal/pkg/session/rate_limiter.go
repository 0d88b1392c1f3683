// internal/pkg/session/rate_limiter.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	maxLoginAttempts = 5
	loginWindow      = 15 * time.Minute

	maxResetRequests = 3
	resetWindow      = time.Hour
)

type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// CheckLoginAttempt counts a login attempt against the ip+username bucket
// and reports whether it is still allowed plus the attempts remaining.
func (r *RateLimiter) CheckLoginAttempt(ctx context.Context, ip, username string) (bool, int64, error) {
	key := fmt.Sprintf("ratelimit:login:%s:%s", ip, username)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment login attempt: %w", err)
	}

	// Window starts with the first attempt
	if count == 1 {
		r.client.Expire(ctx, key, loginWindow)
	}

	remaining := int64(maxLoginAttempts) - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= maxLoginAttempts, remaining, nil
}

// ResetLoginAttempts clears the bucket after a successful login.
func (r *RateLimiter) ResetLoginAttempts(ctx context.Context, ip, username string) error {
	key := fmt.Sprintf("ratelimit:login:%s:%s", ip, username)
	return r.client.Del(ctx, key).Err()
}

// RemainingLoginAttempts reports how many attempts the bucket has left.
func (r *RateLimiter) RemainingLoginAttempts(ctx context.Context, ip, username string) (int64, error) {
	key := fmt.Sprintf("ratelimit:login:%s:%s", ip, username)

	count, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return maxLoginAttempts, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get login attempts: %w", err)
	}

	remaining := int64(maxLoginAttempts) - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// CheckPasswordResetAttempt throttles reset-token requests per username.
func (r *RateLimiter) CheckPasswordResetAttempt(ctx context.Context, username string) (bool, error) {
	key := fmt.Sprintf("ratelimit:password_reset:%s", username)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment password reset attempt: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, key, resetWindow)
	}
	return count <= maxResetRequests, nil
}
