package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/bankauth/refresh"
	"github.com/jackc/pgx/v5"
)

// RefreshStore is the Postgres refresh-token ledger table.
type RefreshStore struct {
	db DB
}

// NewRefreshStore wraps db.
func NewRefreshStore(db DB) *RefreshStore {
	return &RefreshStore{db: db}
}

var _ refresh.Store = (*RefreshStore)(nil)

// Insert implements refresh.Store.
func (s *RefreshStore) Insert(ctx context.Context, t *refresh.Token) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, session_id, token_digest, created_at, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.UserID, t.SessionID, t.Digest, t.CreatedAt, t.ExpiresAt, t.UserAgent, t.IP)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// FindByDigest implements refresh.Store.
func (s *RefreshStore) FindByDigest(ctx context.Context, digest string) (*refresh.Token, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, session_id, token_digest, created_at, expires_at, revoked_at, replaced_by_id, user_agent, ip_address
		FROM refresh_tokens
		WHERE token_digest = $1
	`, digest)

	var t refresh.Token
	err := row.Scan(&t.ID, &t.UserID, &t.SessionID, &t.Digest, &t.CreatedAt, &t.ExpiresAt,
		&t.RevokedAt, &t.ReplacedByID, &t.UserAgent, &t.IP)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, refresh.ErrNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &t, nil
}

// RevokeIfActive implements refresh.Store with a single conditional update.
func (s *RefreshStore) RevokeIfActive(ctx context.Context, tokenID string, replacedBy *string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2, replaced_by_id = $3
		WHERE id = $1 AND revoked_at IS NULL
	`, tokenID, at, replacedBy)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RevokeSession implements refresh.Store.
func (s *RefreshStore) RevokeSession(ctx context.Context, sessionID string, at time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE session_id = $1 AND revoked_at IS NULL
	`, sessionID, at)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh session: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeExpired implements refresh.Store.
func (s *RefreshStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
