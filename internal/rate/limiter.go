package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindow increments the counter and starts the window on the first hit.
// Returns {count, remaining window in ms}.
var fixedWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Rule is one fixed-window budget.
type Rule struct {
	Action string
	Max    int
	Window time.Duration
}

// Validate reports whether the rule can be enforced.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Action) == "" {
		return errors.New("rate rule action must be set")
	}
	if r.Max <= 0 {
		return fmt.Errorf("rate rule %s max must be > 0", r.Action)
	}
	if r.Window < time.Millisecond {
		return fmt.Errorf("rate rule %s window must be >= 1ms", r.Action)
	}
	return nil
}

// Result describes the state of the window after the request was counted.
type Result struct {
	Allowed    bool
	Count      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter enforces fixed-window request budgets with Redis counters.
// The counter and its expiry are set by one script, so the window cannot be
// left without a TTL.
type Limiter struct {
	redis redis.UniversalClient
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

// Allow counts one request from identity against rule.
// The request is rejected once the count exceeds rule.Max within the window.
func (l *Limiter) Allow(ctx context.Context, rule Rule, identity string) (Result, error) {
	if identity == "" {
		identity = "unknown"
	}

	count, ttl, err := l.incrementWithTTL(ctx, key(rule.Action, identity), rule.Window)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Allowed:   count <= int64(rule.Max),
		Count:     int(count),
		Remaining: rule.Max - int(count),
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res, nil
}

// Reset clears the window for identity.
func (l *Limiter) Reset(ctx context.Context, action, identity string) error {
	if err := l.redis.Del(ctx, key(action, identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Count returns the current counter without incrementing it.
// Missing keys return zero.
func (l *Limiter) Count(ctx context.Context, action, identity string) (int, error) {
	count, err := l.redis.Get(ctx, key(action, identity)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	vals, err := fixedWindow.Run(ctx, l.redis, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(vals) != 2 {
		return 0, 0, fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}
	return vals[0], time.Duration(vals[1]) * time.Millisecond, nil
}

func key(action, identity string) string {
	return "brl:" + action + ":" + identity
}
