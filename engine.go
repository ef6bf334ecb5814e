package bankauth

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/bankauth/internal/audit"
	internalflows "github.com/MrEthical07/bankauth/internal/flows"
	"github.com/MrEthical07/bankauth/internal/limiters"
	"github.com/MrEthical07/bankauth/internal/rate"
	"github.com/MrEthical07/bankauth/internal/stores"
	"github.com/MrEthical07/bankauth/jwt"
	"github.com/MrEthical07/bankauth/password"
	"github.com/MrEthical07/bankauth/refresh"
	"github.com/MrEthical07/bankauth/secretbox"
	"github.com/MrEthical07/bankauth/totp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Engine is the authentication and session-security core.
//
// Engine methods are safe for concurrent use after [Builder.Build]. All
// cross-request state lives in Redis or the configured stores, so any number
// of Engine instances may serve the same users.
type Engine struct {
	config Config
	redis  redis.UniversalClient
	users  CredentialStore

	passwords        *password.Verifier
	decoyHash        func() string
	box              *secretbox.Box
	totp             *totp.Generator
	issuer           *jwt.Issuer
	ledger           *refresh.Ledger
	rateLimiter      *rate.Limiter
	lockout          *limiters.LockoutLimiter
	twoFactorLimiter *limiters.TwoFactorLimiter
	pending          *stores.PendingLoginStore
	csrf             *stores.CSRFStore

	audit   *audit.Dispatcher
	events  *audit.RedisListSink
	metrics *Metrics
	logger  *zap.Logger

	flow internalflows.Service
	now  func() time.Time
}

// Close drains the security event dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return defaultConfig()
	}
	return cloneConfig(e.config)
}

// Logger returns the engine's named logger.
func (e *Engine) Logger() *zap.Logger {
	if e == nil || e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}

// AuditDropped returns how many low-severity security events were shed
// because the dispatcher buffer was full. Failures are never shed.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of all counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// Login authenticates email and password.
//
// Checks run in a fixed order: per-IP rate limit, per-email lockout,
// credential lookup, password verification, rehash, 2FA gate. Accounts with
// 2FA enabled get RequiresTwoFactor and a PendingID instead of tokens.
// Errors: [ErrValidation], [*RateLimitedError], [*LockedError],
// [ErrInvalidCredentials], [ErrBackendUnavailable].
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return toLoginResult(res), nil
}

// ConfirmLoginTwoFactor completes a pending login with a TOTP code and issues
// the session on success.
func (e *Engine) ConfirmLoginTwoFactor(ctx context.Context, pendingID, code string) (*LoginResult, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.ConfirmLoginTwoFactor(ctx, pendingID, code)
	if err != nil {
		return nil, err
	}
	return toLoginResult(res), nil
}

// Refresh rotates rawRefresh and issues a new access token and CSRF token
// for the same session. Presenting an already rotated token revokes the
// whole session and returns [ErrRefreshReuse].
func (e *Engine) Refresh(ctx context.Context, rawRefresh string) (*SessionTokens, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	tokens, err := e.flow.Refresh(ctx, rawRefresh)
	if err != nil {
		return nil, err
	}
	return toSessionTokens(tokens), nil
}

// Logout revokes rawRefresh without a replacement and drops the session's
// CSRF token. Unknown or already revoked tokens are not an error.
func (e *Engine) Logout(ctx context.Context, rawRefresh string) error {
	if e == nil || !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	return e.flow.Logout(ctx, rawRefresh)
}

// Validate verifies an access token. It performs no I/O.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	claims, err := e.flow.Validate(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	result := &AuthResult{
		UserID:             claims.UserID(),
		Email:              claims.Email,
		Role:               Role(claims.Role),
		SessionID:          claims.SID,
		EnrollmentRequired: claims.EnrollmentRequired,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

// RecentSecurityEvents returns up to limit events from the capped Redis
// list, newest first. Events are written asynchronously, so the newest may
// not be visible yet.
func (e *Engine) RecentSecurityEvents(ctx context.Context, limit int) ([]SecurityEvent, error) {
	if e == nil || e.events == nil {
		return nil, nil
	}
	events, err := e.events.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return events, nil
}

// Health pings Redis and, when it implements [Pinger], the credential store.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	var status HealthStatus
	if e == nil {
		status.Redis = ErrEngineNotReady
		return status
	}
	if err := e.redis.Ping(ctx).Err(); err != nil {
		status.Redis = err
	}
	if p, ok := e.users.(Pinger); ok {
		status.Database = p.Ping(ctx)
	}
	return status
}

// SweepRefreshTokens purges expired refresh tokens once.
func (e *Engine) SweepRefreshTokens(ctx context.Context) (int64, error) {
	if e == nil || e.ledger == nil {
		return 0, ErrEngineNotReady
	}
	return e.newSweeper().RunOnce(ctx)
}

// StartSweeper runs the refresh-token sweeper until ctx is cancelled.
// It returns immediately when Refresh.SweepInterval is zero.
func (e *Engine) StartSweeper(ctx context.Context) {
	if e == nil || e.ledger == nil || e.config.Refresh.SweepInterval <= 0 {
		return
	}
	go e.newSweeper().Run(ctx)
}

func (e *Engine) newSweeper() *refresh.Sweeper {
	return refresh.NewSweeper(e.ledger, e.config.Refresh.SweepInterval, e.logger, func(n int64) {
		if e.metrics != nil {
			e.metrics.Add(MetricRefreshPurged, uint64(n))
		}
	})
}

func toLoginResult(r *internalflows.LoginResult) *LoginResult {
	if r == nil {
		return nil
	}
	return &LoginResult{
		User:               toPublicUser(r.User),
		RequiresTwoFactor:  r.RequiresTwoFactor,
		PendingID:          r.PendingID,
		EnrollmentRequired: r.EnrollmentRequired,
		Tokens:             toSessionTokens(r.Tokens),
	}
}

func toSessionTokens(t *internalflows.SessionTokens) *SessionTokens {
	if t == nil {
		return nil
	}
	return &SessionTokens{
		AccessToken:        t.AccessToken,
		AccessExpiresAt:    t.AccessExpiresAt,
		RefreshToken:       t.RefreshToken,
		RefreshExpiresAt:   t.RefreshExpiresAt,
		CSRFToken:          t.CSRFToken,
		SessionID:          t.SessionID,
		EnrollmentRequired: t.EnrollmentRequired,
	}
}

func toPublicUser(u internalflows.UserRecord) PublicUser {
	return PublicUser{
		ID:    u.UserID,
		Email: u.Email,
		Name:  u.Name,
		Role:  Role(u.Role),
	}
}

func toUserRecord(u *User) internalflows.UserRecord {
	if u == nil {
		return internalflows.UserRecord{}
	}
	return internalflows.UserRecord{
		UserID:           u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Role:             string(u.Role),
		PasswordHash:     u.PasswordHash,
		TwoFactorEnabled: u.TwoFactorEnabled,
		TwoFactorSecret:  u.TwoFactorSecretEncrypted,
	}
}
