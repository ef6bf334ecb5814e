package refresh

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/bankauth/internal"
)

const (
	// DefaultTTL is the refresh-token lifetime when Config.TTL is zero.
	DefaultTTL = 30 * 24 * time.Hour
	// MinSecretBytes is the shortest accepted HMAC secret.
	MinSecretBytes = 32
)

var (
	// ErrNotFound covers unknown, revoked and expired tokens alike.
	ErrNotFound = errors.New("refresh token not found")
	// ErrAlreadyRevoked is returned by Revoke when the row was not active.
	ErrAlreadyRevoked = errors.New("refresh token already revoked")
	// ErrReuseDetected is returned when a rotated token is presented again.
	ErrReuseDetected = errors.New("refresh token reuse detected")
)

// Token is one persisted ledger row.
type Token struct {
	ID           string
	UserID       string
	SessionID    string
	Digest       string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
	ReplacedByID *string
	UserAgent    string
	IP           string
}

// Active reports whether the token is unrevoked and unexpired at now.
func (t *Token) Active(now time.Time) bool {
	return t != nil && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// Store persists ledger rows. Implementations must make RevokeIfActive a
// single conditional write.
type Store interface {
	Insert(ctx context.Context, token *Token) error
	// FindByDigest returns the row in any state, or ErrNotFound.
	FindByDigest(ctx context.Context, digest string) (*Token, error)
	// RevokeIfActive revokes the row only if it is not already revoked and
	// reports whether this call changed it.
	RevokeIfActive(ctx context.Context, tokenID string, replacedBy *string, at time.Time) (bool, error)
	RevokeSession(ctx context.Context, sessionID string, at time.Time) (int64, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// Config configures a Ledger.
type Config struct {
	Secret []byte
	TTL    time.Duration
}

// Params describes a token to issue. An empty SessionID starts a new chain.
type Params struct {
	UserID    string
	SessionID string
	UserAgent string
	IP        string
}

// Issued pairs a persisted row with the raw token to hand to the client.
type Issued struct {
	Token *Token
	Raw   string
}

// Rotation is the result of a successful Rotate.
type Rotation struct {
	Previous *Token
	Next     Issued
}

// Ledger issues and rotates refresh tokens over a Store.
type Ledger struct {
	store  Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewLedger validates cfg and wraps store.
func NewLedger(store Store, cfg Config) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("refresh store must be set")
	}
	if len(cfg.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("refresh secret must be at least %d bytes", MinSecretBytes)
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < time.Minute {
		return nil, errors.New("refresh TTL must be >= 1m")
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Ledger{store: store, secret: secret, ttl: cfg.TTL, now: time.Now}, nil
}

// TTL returns the configured lifetime.
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

// Digest returns the hex HMAC-SHA256 of raw.
func (l *Ledger) Digest(raw string) string {
	mac := hmac.New(sha256.New, l.secret)
	_, _ = mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Persist issues a fresh raw token and stores its digest.
func (l *Ledger) Persist(ctx context.Context, p Params) (*Issued, error) {
	if p.UserID == "" {
		return nil, errors.New("refresh token user id must be set")
	}

	raw, err := internal.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	id, err := internal.NewTokenID()
	if err != nil {
		return nil, err
	}
	sessionID := p.SessionID
	if sessionID == "" {
		if sessionID, err = internal.NewSessionID(); err != nil {
			return nil, err
		}
	}

	now := l.now().UTC()
	tok := &Token{
		ID:        id,
		UserID:    p.UserID,
		SessionID: sessionID,
		Digest:    l.Digest(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(l.ttl),
		UserAgent: p.UserAgent,
		IP:        p.IP,
	}
	if err := l.store.Insert(ctx, tok); err != nil {
		return nil, err
	}
	return &Issued{Token: tok, Raw: raw}, nil
}

// FindActive resolves raw to an active row. Unknown, malformed, revoked and
// expired tokens all return ErrNotFound.
func (l *Ledger) FindActive(ctx context.Context, raw string) (*Token, error) {
	tok, err := l.lookup(ctx, raw)
	if err != nil {
		return nil, err
	}
	if !tok.Active(l.now()) {
		return nil, ErrNotFound
	}
	return tok, nil
}

// Revoke marks tokenID revoked, linking replacedBy when rotation caused it.
func (l *Ledger) Revoke(ctx context.Context, tokenID string, replacedBy *string) error {
	ok, err := l.store.RevokeIfActive(ctx, tokenID, replacedBy, l.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyRevoked
	}
	return nil
}

// RevokeSession revokes every active token in the chain.
func (l *Ledger) RevokeSession(ctx context.Context, sessionID string) (int64, error) {
	return l.store.RevokeSession(ctx, sessionID, l.now().UTC())
}

// Rotate exchanges raw for a successor in the same chain.
func (l *Ledger) Rotate(ctx context.Context, raw string, meta Params) (*Rotation, error) {
	prev, err := l.lookup(ctx, raw)
	if err != nil {
		return nil, err
	}

	now := l.now()
	if prev.RevokedAt != nil {
		if prev.ReplacedByID != nil {
			if _, err := l.RevokeSession(ctx, prev.SessionID); err != nil {
				return nil, err
			}
			return &Rotation{Previous: prev}, ErrReuseDetected
		}
		return nil, ErrNotFound
	}
	if !now.Before(prev.ExpiresAt) {
		return nil, ErrNotFound
	}

	next, err := l.Persist(ctx, Params{
		UserID:    prev.UserID,
		SessionID: prev.SessionID,
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
	})
	if err != nil {
		return nil, err
	}

	ok, err := l.store.RevokeIfActive(ctx, prev.ID, &next.Token.ID, l.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost the conditional revoke to a concurrent rotation
		_, _ = l.store.RevokeIfActive(ctx, next.Token.ID, nil, l.now().UTC())
		if _, err := l.RevokeSession(ctx, prev.SessionID); err != nil {
			return nil, err
		}
		return &Rotation{Previous: prev}, ErrReuseDetected
	}

	return &Rotation{Previous: prev, Next: *next}, nil
}

// Sweep deletes rows whose expiry has passed.
func (l *Ledger) Sweep(ctx context.Context) (int64, error) {
	return l.store.PurgeExpired(ctx, l.now().UTC())
}

func (l *Ledger) lookup(ctx context.Context, raw string) (*Token, error) {
	if _, err := internal.DecodeRefreshToken(raw); err != nil {
		return nil, ErrNotFound
	}
	return l.store.FindByDigest(ctx, l.Digest(raw))
}
