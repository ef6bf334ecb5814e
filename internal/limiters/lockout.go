package limiters

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
	defaultFailureRetention = 24 * time.Hour
)

// recordFailure bumps the counter and stamps locked_until once the threshold is hit.
// ARGV: threshold, lockedUntil(ms), retention(ms). Returns {count, lockedUntil}.
var recordFailure = redis.NewScript(`
local count = redis.call("HINCRBY", KEYS[1], "count", 1)
local locked = tonumber(redis.call("HGET", KEYS[1], "locked_until") or "0")
if count >= tonumber(ARGV[1]) and locked == 0 then
  redis.call("HSET", KEYS[1], "locked_until", ARGV[2])
  locked = tonumber(ARGV[2])
end
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return {count, locked}
`)

// checkLock returns locked_until, 0 when unlocked, or -1 when an expired lock was cleared.
// ARGV: now(ms).
var checkLock = redis.NewScript(`
local locked = tonumber(redis.call("HGET", KEYS[1], "locked_until") or "0")
if locked == 0 then
  return 0
end
if tonumber(ARGV[1]) >= locked then
  redis.call("DEL", KEYS[1])
  return -1
end
return locked
`)

// LockoutConfig holds configuration for the account lockout limiter.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
	// Retention bounds how long sub-threshold failures are remembered.
	Retention time.Duration
}

var (
	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// LockState is the lockout status of one identity.
type LockState struct {
	Failures         int
	Locked           bool
	LockedUntil      time.Time
	RemainingMinutes int
}

// LockoutLimiter counts failed logins per email and locks the identity for
// Duration once Threshold consecutive failures are recorded.
type LockoutLimiter struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

// NewLockoutLimiter creates a new lockout limiter. Zero fields take defaults
// (5 failures, 15 minutes, 24h retention).
func NewLockoutLimiter(redisClient redis.UniversalClient, cfg LockoutConfig) *LockoutLimiter {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultLockoutThreshold
	}
	if cfg.Duration <= 0 {
		cfg.Duration = defaultLockoutDuration
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultFailureRetention
	}
	if cfg.Retention < cfg.Duration {
		cfg.Retention = cfg.Duration
	}
	return &LockoutLimiter{redis: redisClient, config: cfg}
}

func (l *LockoutLimiter) key(identity string) string {
	return "blo:" + identity
}

// RecordFailure counts one failed attempt. The returned state is Locked when
// this failure reached the threshold.
func (l *LockoutLimiter) RecordFailure(ctx context.Context, identity string, now time.Time) (LockState, error) {
	if l == nil || identity == "" {
		return LockState{}, nil
	}

	lockedUntil := now.Add(l.config.Duration).UnixMilli()
	vals, err := recordFailure.Run(ctx, l.redis, []string{l.key(identity)},
		strconv.Itoa(l.config.Threshold),
		strconv.FormatInt(lockedUntil, 10),
		strconv.FormatInt(l.config.Retention.Milliseconds(), 10),
	).Int64Slice()
	if err != nil {
		return LockState{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if len(vals) != 2 {
		return LockState{}, fmt.Errorf("%w: unexpected script reply", ErrLockoutUnavailable)
	}

	state := LockState{Failures: int(vals[0])}
	if vals[1] > 0 {
		state = lockedState(state.Failures, vals[1], now)
	}
	return state, nil
}

// CheckLock reports whether identity is locked at now. An expired lock is
// cleared and the identity starts over with zero failures.
func (l *LockoutLimiter) CheckLock(ctx context.Context, identity string, now time.Time) (LockState, error) {
	if l == nil || identity == "" {
		return LockState{}, nil
	}

	until, err := checkLock.Run(ctx, l.redis, []string{l.key(identity)},
		strconv.FormatInt(now.UnixMilli(), 10),
	).Int64()
	if err != nil {
		return LockState{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if until <= 0 {
		return LockState{}, nil
	}
	return lockedState(0, until, now), nil
}

// Reset clears the failure record (successful full authentication or manual unlock).
func (l *LockoutLimiter) Reset(ctx context.Context, identity string) error {
	if l == nil || identity == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// GetFailureCount returns the current failure count for identity.
func (l *LockoutLimiter) GetFailureCount(ctx context.Context, identity string) (int, error) {
	if l == nil || identity == "" {
		return 0, nil
	}
	count, err := l.redis.HGet(ctx, l.key(identity), "count").Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return count, nil
}

func lockedState(failures int, untilMillis int64, now time.Time) LockState {
	until := time.UnixMilli(untilMillis)
	return LockState{
		Failures:         failures,
		Locked:           true,
		LockedUntil:      until,
		RemainingMinutes: RemainingMinutes(until, now),
	}
}

// RemainingMinutes rounds the time left until `until` up to whole minutes.
func RemainingMinutes(until, now time.Time) int {
	left := until.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Minutes()))
}
