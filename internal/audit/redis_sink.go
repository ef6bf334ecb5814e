package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultRedisListCap = 1000

// RedisListSink keeps the newest events in a capped Redis list (LPUSH + LTRIM).
type RedisListSink struct {
	redis  redis.UniversalClient
	key    string
	cap    int64
	logger *zap.Logger
}

func NewRedisListSink(rdb redis.UniversalClient, key string, capacity int, logger *zap.Logger) *RedisListSink {
	if key == "" {
		key = "bsec:events"
	}
	if capacity <= 0 {
		capacity = defaultRedisListCap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisListSink{redis: rdb, key: key, cap: int64(capacity), logger: logger}
}

func (s *RedisListSink) Emit(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, data)
		pipe.LTrim(ctx, s.key, 0, s.cap-1)
		return nil
	})
	if err != nil {
		s.logger.Warn("security event not persisted",
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}

// Recent returns up to limit events, newest first.
func (s *RedisListSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || int64(limit) > s.cap {
		limit = int(s.cap)
	}
	raw, err := s.redis.LRange(ctx, s.key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("security events: %w", err)
	}
	out := make([]Event, 0, len(raw))
	for _, item := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
