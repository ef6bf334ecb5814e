package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/bankauth/internal/audit"
	"github.com/MrEthical07/bankauth/internal/metrics"
	"go.uber.org/zap"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	User               UserRecord
	RequiresTwoFactor  bool
	PendingID          string
	EnrollmentRequired bool
	Tokens             *SessionTokens
}

// PasswordCheck is the outcome of a password verification.
type PasswordCheck struct {
	Valid        bool
	ShouldRehash bool
	Scheme       string
}

// LoginDeps captures login and 2FA-challenge dependencies.
type LoginDeps struct {
	Common

	// CheckRateLimit counts one login attempt from ip.
	CheckRateLimit func(ctx context.Context, ip string) (allowed bool, retryAfter time.Duration, err error)
	// CheckLock reports the lockout state for email.
	CheckLock func(ctx context.Context, email string) (locked bool, remainingMinutes int, err error)
	// RecordFailure counts a failed attempt for email and reports whether it locked the account.
	RecordFailure func(ctx context.Context, email string) (locked bool, remainingMinutes int, err error)
	ResetLockout  func(ctx context.Context, email string) error

	GetUserByEmail     func(ctx context.Context, email string) (UserRecord, error)
	GetUserByID        func(ctx context.Context, userID string) (UserRecord, error)
	VerifyPassword     func(plaintext, stored string) (PasswordCheck, error)
	// DecoyHash returns a stored-format hash that matches no password. Unknown
	// emails are verified against it so they cost as much as a wrong password.
	DecoyHash          func() string
	HashPassword       func(plaintext string) (string, error)
	UpdatePasswordHash func(ctx context.Context, userID, hash string) error
	TouchLastLogin     func(ctx context.Context, userID string) error

	// SavePending stores an AwaitingTwoFactor record and returns its opaque id.
	SavePending func(ctx context.Context, user UserRecord) (string, error)
	// GetPending resolves a pending id to its user id.
	GetPending func(ctx context.Context, pendingID string) (string, error)
	// RecordPendingFailure counts a wrong code; exceeded means the pending login is gone.
	RecordPendingFailure func(ctx context.Context, pendingID string) (exceeded bool, err error)
	// ConsumePending deletes the pending login; exactly one caller wins.
	ConsumePending func(ctx context.Context, pendingID string) (bool, error)

	DecryptSecret func(sealed string) (string, error)
	ValidateCode  func(secret, code string) (bool, error)

	// IssueSession creates a refresh chain, access token and CSRF token.
	IssueSession func(ctx context.Context, user UserRecord, enrollmentRequired bool) (*SessionTokens, error)
}

// RunLogin authenticates email/password. Accounts with 2FA enabled receive a
// pending id instead of tokens.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	deps.fill()
	if deps.CheckRateLimit == nil ||
		deps.CheckLock == nil ||
		deps.RecordFailure == nil ||
		deps.GetUserByEmail == nil ||
		deps.VerifyPassword == nil ||
		deps.SavePending == nil ||
		deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	start := deps.Now()
	defer func() { deps.Observe(metrics.MetricLoginLatency, deps.Now().Sub(start)) }()

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, deps.Errors.Validation
	}
	ip := deps.ClientIP(ctx)

	allowed, retryAfter, err := deps.CheckRateLimit(ctx, ip)
	if err != nil {
		deps.Logger.Warn("login rate limit check failed", zap.Error(err))
		return nil, wrapBackend(deps.Errors.BackendUnavailable, err)
	}
	if !allowed {
		deps.MetricInc(metrics.MetricLoginRateLimited)
		deps.MetricInc(metrics.MetricRateLimitHit)
		rlErr := deps.Errors.RateLimited(retryAfter)
		deps.EmitAudit(ctx, EventSuspiciousActivity, audit.SeverityHigh, false, "", email, "", rlErr, func() map[string]string {
			return map[string]string{
				"reason": "rate_limited",
				"scope":  "login",
			}
		})
		return nil, rlErr
	}

	locked, remaining, err := deps.CheckLock(ctx, email)
	if err != nil {
		deps.Logger.Warn("lockout check failed", zap.Error(err))
		return nil, wrapBackend(deps.Errors.BackendUnavailable, err)
	}
	if locked {
		deps.MetricInc(metrics.MetricLoginLocked)
		lockErr := deps.Errors.Locked(remaining)
		deps.EmitAudit(ctx, EventFailedLogin, audit.SeverityMedium, false, "", email, "", lockErr, func() map[string]string {
			return map[string]string{
				"reason": "account_locked",
			}
		})
		return nil, lockErr
	}

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, deps.Errors.UserNotFound) {
			deps.Logger.Error("credential lookup failed", zap.Error(err))
			return nil, wrapBackend(deps.Errors.BackendUnavailable, err)
		}
		if deps.DecoyHash != nil {
			if decoy := deps.DecoyHash(); decoy != "" {
				_, _ = deps.VerifyPassword(password, decoy)
			}
		}
		return nil, failLogin(ctx, "", email, "user_not_found", deps)
	}

	check, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		deps.Logger.Warn("stored credential unreadable", zap.String("user_id", user.UserID), zap.Error(err))
	}
	if err != nil || !check.Valid {
		return nil, failLogin(ctx, user.UserID, email, "password_mismatch", deps)
	}

	if check.ShouldRehash && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		if hash, err := deps.HashPassword(password); err != nil {
			deps.Logger.Warn("password rehash failed", zap.String("user_id", user.UserID), zap.Error(err))
		} else if err := deps.UpdatePasswordHash(ctx, user.UserID, hash); err != nil {
			deps.Logger.Warn("password rehash update failed", zap.String("user_id", user.UserID), zap.Error(err))
		} else {
			deps.MetricInc(metrics.MetricPasswordRehashed)
			deps.Logger.Info("password hash migrated",
				zap.String("user_id", user.UserID),
				zap.String("from", check.Scheme),
			)
		}
	}
	password = ""

	if user.TwoFactorEnabled {
		pendingID, err := deps.SavePending(ctx, user)
		if err != nil {
			deps.Logger.Error("pending login save failed", zap.Error(err))
			return nil, wrapBackend(deps.Errors.BackendUnavailable, err)
		}
		deps.MetricInc(metrics.MetricTwoFactorRequired)
		deps.EmitAudit(ctx, EventTwoFactorRequired, audit.SeverityLow, true, user.UserID, email, "", nil, nil)
		return &LoginResult{
			User:              user,
			RequiresTwoFactor: true,
			PendingID:         pendingID,
		}, nil
	}

	tokens, err := completeLogin(ctx, user, "password", deps)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		User:               user,
		EnrollmentRequired: tokens.EnrollmentRequired,
		Tokens:             tokens,
	}, nil
}

// RunConfirmLoginTwoFactor completes an AwaitingTwoFactor login with a TOTP code.
func RunConfirmLoginTwoFactor(ctx context.Context, pendingID, code string, deps LoginDeps) (*LoginResult, error) {
	deps.fill()
	if deps.GetPending == nil ||
		deps.RecordPendingFailure == nil ||
		deps.ConsumePending == nil ||
		deps.GetUserByID == nil ||
		deps.DecryptSecret == nil ||
		deps.ValidateCode == nil ||
		deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if pendingID == "" || !ValidCode(code) {
		return nil, deps.Errors.Validation
	}

	userID, err := deps.GetPending(ctx, pendingID)
	if err != nil {
		if errors.Is(err, deps.Errors.PendingLoginNotFound) {
			deps.MetricInc(metrics.MetricTwoFactorFailure)
			return nil, err
		}
		deps.Logger.Error("pending login lookup failed", zap.Error(err))
		return nil, wrapBackend(deps.Errors.BackendUnavailable, err)
	}

	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		_, _ = deps.ConsumePending(ctx, pendingID)
		if errors.Is(err, deps.Errors.UserNotFound) {
			return nil, deps.Errors.PendingLoginNotFound
		}
		return nil, wrapBackend(deps.Errors.BackendUnavailable, err)
	}
	if !user.TwoFactorEnabled {
		_, _ = deps.ConsumePending(ctx, pendingID)
		return nil, deps.Errors.TwoFactorNotEnabled
	}
	if user.TwoFactorSecret == nil || *user.TwoFactorSecret == "" {
		_, _ = deps.ConsumePending(ctx, pendingID)
		return nil, deps.Errors.TwoFactorNotInitialized
	}

	secret, err := deps.DecryptSecret(*user.TwoFactorSecret)
	if err != nil {
		deps.MetricInc(metrics.MetricTwoFactorFailure)
		deps.Logger.Error("two-factor secret decrypt failed", zap.String("user_id", user.UserID))
		deps.EmitAudit(ctx, EventTwoFactorFailed, audit.SeverityHigh, false, user.UserID, user.Email, "", deps.Errors.TwoFactorDecrypt, func() map[string]string {
			return map[string]string{"reason": "decrypt_failed"}
		})
		return nil, deps.Errors.TwoFactorDecrypt
	}

	ok, err := deps.ValidateCode(secret, code)
	if err != nil || !ok {
		exceeded, ferr := deps.RecordPendingFailure(ctx, pendingID)
		if ferr != nil && !errors.Is(ferr, deps.Errors.PendingLoginNotFound) {
			deps.Logger.Warn("pending login failure count failed", zap.Error(ferr))
		}
		deps.MetricInc(metrics.MetricTwoFactorFailure)
		if exceeded {
			deps.MetricInc(metrics.MetricTwoFactorRateLimited)
			deps.EmitAudit(ctx, EventTwoFactorFailed, audit.SeverityHigh, false, user.UserID, user.Email, "", deps.Errors.TwoFactorRateLimited, func() map[string]string {
				return map[string]string{"reason": "attempts_exceeded", "scope": "login"}
			})
			return nil, deps.Errors.TwoFactorRateLimited
		}
		deps.EmitAudit(ctx, EventTwoFactorFailed, audit.SeverityMedium, false, user.UserID, user.Email, "", deps.Errors.TwoFactorInvalidCode, func() map[string]string {
			return map[string]string{"scope": "login"}
		})
		return nil, deps.Errors.TwoFactorInvalidCode
	}

	won, err := deps.ConsumePending(ctx, pendingID)
	if err != nil {
		return nil, wrapBackend(deps.Errors.BackendUnavailable, err)
	}
	if !won {
		// a concurrent confirmation already consumed it
		return nil, deps.Errors.PendingLoginNotFound
	}
	deps.MetricInc(metrics.MetricTwoFactorSuccess)

	tokens, err := completeLogin(ctx, user, "totp", deps)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		User:               user,
		EnrollmentRequired: tokens.EnrollmentRequired,
		Tokens:             tokens,
	}, nil
}

func completeLogin(ctx context.Context, user UserRecord, method string, deps LoginDeps) (*SessionTokens, error) {
	enroll := NeedsEnrollment(user, deps.AdminRole)
	tokens, err := deps.IssueSession(ctx, user, enroll)
	if err != nil {
		deps.MetricInc(metrics.MetricLoginFailure)
		deps.Logger.Error("session issuance failed", zap.String("user_id", user.UserID), zap.Error(err))
		return nil, wrapBackend(deps.Errors.BackendUnavailable, err)
	}
	deps.MetricInc(metrics.MetricSessionCreated)

	if deps.ResetLockout != nil {
		if err := deps.ResetLockout(ctx, user.Email); err != nil {
			deps.Logger.Warn("lockout reset failed", zap.Error(err))
		}
	}
	if deps.TouchLastLogin != nil {
		if err := deps.TouchLastLogin(ctx, user.UserID); err != nil {
			deps.Logger.Warn("last login update failed", zap.String("user_id", user.UserID), zap.Error(err))
		}
	}

	deps.MetricInc(metrics.MetricLoginSuccess)
	deps.EmitAudit(ctx, EventLogin, audit.SeverityLow, true, user.UserID, user.Email, tokens.SessionID, nil, func() map[string]string {
		md := map[string]string{"method": method}
		if enroll {
			md["enrollment_required"] = "true"
		}
		return md
	})
	return tokens, nil
}

func failLogin(ctx context.Context, userID, email, reason string, deps LoginDeps) error {
	deps.MetricInc(metrics.MetricLoginFailure)
	deps.EmitAudit(ctx, EventFailedLogin, audit.SeverityMedium, false, userID, email, "", deps.Errors.InvalidCredentials, func() map[string]string {
		return map[string]string{"reason": reason}
	})

	locked, remaining, err := deps.RecordFailure(ctx, email)
	if err != nil {
		deps.Logger.Warn("lockout failure count failed", zap.Error(err))
		return deps.Errors.InvalidCredentials
	}
	if locked {
		deps.MetricInc(metrics.MetricLockoutTriggered)
		deps.EmitAudit(ctx, EventAccountLocked, audit.SeverityHigh, false, userID, email, "", nil, func() map[string]string {
			return map[string]string{"remaining_minutes": itoa(remaining)}
		})
	}
	return deps.Errors.InvalidCredentials
}
