package stores

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCSRFNotFound means the session has no token, usually because it expired.
	ErrCSRFNotFound = errors.New("csrf token not found")
	// ErrCSRFBackend wraps Redis failures.
	ErrCSRFBackend = errors.New("csrf backend unavailable")
)

// CSRFStore binds one CSRF token to each session id.
type CSRFStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewCSRFStore keys tokens as prefix:sessionID. An empty prefix means "bcsrf".
func NewCSRFStore(redisClient redis.UniversalClient, prefix string) *CSRFStore {
	if prefix == "" {
		prefix = "bcsrf"
	}
	return &CSRFStore{redis: redisClient, prefix: prefix}
}

func (s *CSRFStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Put replaces the session's token.
func (s *CSRFStore) Put(ctx context.Context, sessionID, token string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(sessionID), token, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCSRFBackend, err)
	}
	return nil
}

// Verify compares presented with the stored token in constant time.
func (s *CSRFStore) Verify(ctx context.Context, sessionID, presented string) (bool, error) {
	stored, err := s.redis.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, ErrCSRFNotFound
		}
		return false, fmt.Errorf("%w: %v", ErrCSRFBackend, err)
	}
	if presented == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1, nil
}

// Delete drops the session's token.
func (s *CSRFStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCSRFBackend, err)
	}
	return nil
}
