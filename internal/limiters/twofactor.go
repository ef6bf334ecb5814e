package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTwoFactorMaxAttempts = 5
	defaultTwoFactorCooldown    = 5 * time.Minute
)

var (
	// ErrTwoFactorRateLimited is returned once a user exhausts code attempts.
	ErrTwoFactorRateLimited = errors.New("two-factor attempts exceeded")
	// ErrTwoFactorUnavailable indicates the limiter backend is unreachable.
	ErrTwoFactorUnavailable = errors.New("two-factor limiter unavailable")
)

// TwoFactorLimiterConfig holds thresholds for the per-user code limiter.
type TwoFactorLimiterConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// TwoFactorLimiter caps wrong TOTP codes per user and scope
// ("setup" for enrollment confirmation, "login" for the challenge).
type TwoFactorLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int64
	cooldown    time.Duration
}

// NewTwoFactorLimiter creates the limiter. Zero-value fields in cfg fall back
// to defaults (5 attempts / 5m).
func NewTwoFactorLimiter(redisClient redis.UniversalClient, cfg TwoFactorLimiterConfig) *TwoFactorLimiter {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultTwoFactorMaxAttempts
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultTwoFactorCooldown
	}
	return &TwoFactorLimiter{redis: redisClient, maxAttempts: int64(max), cooldown: cd}
}

func (l *TwoFactorLimiter) key(scope, userID string) string {
	return "btf:" + scope + ":" + userID
}

// Check returns ErrTwoFactorRateLimited when the budget is spent.
func (l *TwoFactorLimiter) Check(ctx context.Context, scope, userID string) error {
	if l == nil {
		return nil
	}
	count, err := l.redis.Get(ctx, l.key(scope, userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrTwoFactorUnavailable, err)
	}
	if count >= l.maxAttempts {
		return ErrTwoFactorRateLimited
	}
	return nil
}

// RecordFailure counts a wrong code and reports when the budget is now spent.
func (l *TwoFactorLimiter) RecordFailure(ctx context.Context, scope, userID string) error {
	if l == nil {
		return nil
	}
	key := l.key(scope, userID)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTwoFactorUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrTwoFactorUnavailable, err)
		}
	}
	if count >= l.maxAttempts {
		return ErrTwoFactorRateLimited
	}
	return nil
}

// Reset clears the counter after a correct code.
func (l *TwoFactorLimiter) Reset(ctx context.Context, scope, userID string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(scope, userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTwoFactorUnavailable, err)
	}
	return nil
}
