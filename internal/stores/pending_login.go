package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingLoginRecordVersion1 = 1
)

var (
	ErrPendingLoginNotFound = errors.New("pending login not found")
	ErrPendingLoginExpired  = errors.New("pending login expired")
	ErrPendingLoginExceeded = errors.New("pending login attempts exceeded")
	ErrPendingLoginBackend  = errors.New("pending login backend unavailable")
)

// PendingLogin is the AwaitingTwoFactor state of a login: the password was
// correct and the user must now present a TOTP code.
type PendingLogin struct {
	UserID    string
	Email     string
	ExpiresAt int64
	Attempts  uint16
}

// PendingLoginStore keeps pending logins in Redis under an opaque challenge id.
type PendingLoginStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewPendingLoginStore(redisClient redis.UniversalClient, prefix string) *PendingLoginStore {
	if prefix == "" {
		prefix = "bptf"
	}
	return &PendingLoginStore{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *PendingLoginStore) key(challengeID string) string {
	return s.prefix + ":" + challengeID
}

func (s *PendingLoginStore) Save(
	ctx context.Context,
	challengeID string,
	record *PendingLogin,
	ttl time.Duration,
) error {
	encoded, err := encodePendingLogin(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(challengeID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPendingLoginBackend, err)
	}
	return nil
}

func (s *PendingLoginStore) Get(ctx context.Context, challengeID string) (*PendingLogin, error) {
	data, err := s.redis.Get(ctx, s.key(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPendingLoginNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPendingLoginBackend, err)
	}

	record, err := decodePendingLogin(data)
	if err != nil {
		return nil, err
	}
	if s.now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(challengeID)).Result()
		return nil, ErrPendingLoginExpired
	}
	return record, nil
}

// Consume deletes the record and reports whether this caller removed it.
// Exactly one concurrent caller wins.
func (s *PendingLoginStore) Consume(ctx context.Context, challengeID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(challengeID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPendingLoginBackend, err)
	}
	return n > 0, nil
}

// RecordFailure bumps the attempt counter. At maxAttempts the record is
// deleted and exceeded is true.
func (s *PendingLoginStore) RecordFailure(
	ctx context.Context,
	challengeID string,
	maxAttempts int,
) (bool, error) {
	const maxRetries = 4
	key := s.key(challengeID)

	for i := 0; i < maxRetries; i++ {
		var exceeded bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodePendingLogin(data)
			if err != nil {
				return err
			}

			ttl := time.Unix(record.ExpiresAt, 0).Sub(s.now())
			record.Attempts++
			if int(record.Attempts) >= maxAttempts || ttl <= 0 {
				exceeded = int(record.Attempts) >= maxAttempts
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				if !exceeded {
					return ErrPendingLoginExpired
				}
				return nil
			}

			updated, err := encodePendingLogin(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, ErrPendingLoginNotFound
			}
			if errors.Is(err, ErrPendingLoginExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", ErrPendingLoginBackend, err)
		}
		return exceeded, nil
	}

	return false, ErrPendingLoginNotFound
}

func encodePendingLogin(record *PendingLogin) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(pendingLoginRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	for _, field := range []string{record.UserID, record.Email} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodePendingLogin(data []byte) (*PendingLogin, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != pendingLoginRecordVersion1 {
		return nil, errors.New("invalid pending login version")
	}

	record := &PendingLogin{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if record.UserID, err = readString(reader); err != nil {
		return nil, err
	}
	if record.Email, err = readString(reader); err != nil {
		return nil, err
	}
	return record, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("pending login field length exceeded")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
