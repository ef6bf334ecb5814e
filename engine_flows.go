package bankauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/bankauth/internal"
	internalflows "github.com/MrEthical07/bankauth/internal/flows"
	"github.com/MrEthical07/bankauth/internal/limiters"
	"github.com/MrEthical07/bankauth/internal/rate"
	"github.com/MrEthical07/bankauth/internal/stores"
	"github.com/MrEthical07/bankauth/jwt"
	"github.com/MrEthical07/bankauth/password"
	"github.com/MrEthical07/bankauth/refresh"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	rateActionLogin     = "login"
	twoFactorScopeSetup = "setup"
)

// newDecoyHash hashes a random value at the configured cost on first use.
func newDecoyHash(v *password.Verifier, log *zap.Logger) func() string {
	return sync.OnceValue(func() string {
		hash, err := v.Hash(uuid.NewString())
		if err != nil {
			log.Warn("decoy hash unavailable", zap.Error(err))
			return ""
		}
		return hash
	})
}

func (e *Engine) buildFlows() internalflows.Service {
	return internalflows.New(internalflows.Deps{
		Login:     e.loginFlowDeps(),
		TwoFactor: e.twoFactorFlowDeps(),
		Refresh:   e.refreshFlowDeps(),
		Logout:    e.logoutFlowDeps(),
		Validate:  e.validateFlowDeps(),
		Admin:     e.adminFlowDeps(),
	})
}

func flowErrors() internalflows.Errors {
	return internalflows.Errors{
		EngineNotReady:          ErrEngineNotReady,
		Validation:              ErrValidation,
		InvalidCredentials:      ErrInvalidCredentials,
		Unauthorized:            ErrUnauthorized,
		BackendUnavailable:      ErrBackendUnavailable,
		UserNotFound:            ErrUserNotFound,
		Forbidden:               ErrForbidden,
		EnrollmentRequired:      ErrEnrollmentRequired,
		AccountExists:           ErrAccountExists,
		TwoFactorNotEnabled:     ErrTwoFactorNotEnabled,
		TwoFactorNotInitialized: ErrTwoFactorNotInitialized,
		TwoFactorAlreadyEnabled: ErrTwoFactorAlreadyEnabled,
		TwoFactorInvalidCode:    ErrTwoFactorInvalidCode,
		TwoFactorDecrypt:        ErrTwoFactorDecrypt,
		TwoFactorRateLimited:    ErrTwoFactorRateLimited,
		PendingLoginNotFound:    ErrPendingLoginNotFound,
		RefreshInvalid:          ErrRefreshInvalid,
		RefreshReuse:            ErrRefreshReuse,
		Locked: func(remainingMinutes int) error {
			return &LockedError{RetryAfterMinutes: remainingMinutes}
		},
		RateLimited: func(retryAfter time.Duration) error {
			return &RateLimitedError{Action: rateActionLogin, RetryAfter: retryAfter}
		},
	}
}

func (e *Engine) flowCommon() internalflows.Common {
	return internalflows.Common{
		Now:       e.now,
		ClientIP:  clientIPFromContext,
		UserAgent: userAgentFromContext,
		MetricInc: e.metricInc,
		Observe:   e.metricObserve,
		EmitAudit: e.emitAudit,
		Logger:    e.logger,
		AdminRole: string(RoleAdmin),
		Errors:    flowErrors(),
	}
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	return internalflows.LoginDeps{
		Common: e.flowCommon(),
		CheckRateLimit: func(ctx context.Context, ip string) (bool, time.Duration, error) {
			res, err := e.rateLimiter.Allow(ctx, rate.Rule{
				Action: rateActionLogin,
				Max:    e.config.RateLimit.LoginMax,
				Window: e.config.RateLimit.LoginWindow,
			}, ip)
			if err != nil {
				return false, 0, err
			}
			return res.Allowed, res.RetryAfter, nil
		},
		CheckLock: func(ctx context.Context, email string) (bool, int, error) {
			st, err := e.lockout.CheckLock(ctx, email, e.now())
			return st.Locked, st.RemainingMinutes, err
		},
		RecordFailure: func(ctx context.Context, email string) (bool, int, error) {
			st, err := e.lockout.RecordFailure(ctx, email, e.now())
			return st.Locked, st.RemainingMinutes, err
		},
		ResetLockout:   e.lockout.Reset,
		GetUserByEmail: e.userByEmail,
		GetUserByID:    e.userByID,
		VerifyPassword: func(plaintext, stored string) (internalflows.PasswordCheck, error) {
			res, err := e.passwords.Verify(plaintext, stored)
			return internalflows.PasswordCheck{
				Valid:        res.Valid,
				ShouldRehash: res.ShouldRehash,
				Scheme:       res.Scheme.String(),
			}, err
		},
		DecoyHash:          e.decoyHash,
		HashPassword:       e.passwords.Hash,
		UpdatePasswordHash: e.users.UpdatePasswordHash,
		TouchLastLogin: func(ctx context.Context, userID string) error {
			return e.users.TouchLastLogin(ctx, userID, e.now().UTC())
		},
		SavePending:          e.savePendingLogin,
		GetPending:           e.pendingLoginUser,
		RecordPendingFailure: e.recordPendingFailure,
		ConsumePending:       e.pending.Consume,
		DecryptSecret:        e.decryptSecret,
		ValidateCode:         e.totp.Validate,
		IssueSession:         e.issueSession,
	}
}

func (e *Engine) twoFactorFlowDeps() internalflows.TwoFactorDeps {
	return internalflows.TwoFactorDeps{
		Common:      e.flowCommon(),
		GetUserByID: e.userByID,
		GenerateKey: func(account string) (internalflows.TwoFactorKey, error) {
			key, err := e.totp.Generate(account)
			if err != nil {
				return internalflows.TwoFactorKey{}, err
			}
			return internalflows.TwoFactorKey{
				Secret:          key.Secret,
				ProvisioningURI: key.ProvisioningURI,
				QRCodeDataURL:   key.QRCodeDataURL,
			}, nil
		},
		EncryptSecret: func(secret string) (string, error) {
			return e.box.Seal([]byte(secret))
		},
		DecryptSecret: e.decryptSecret,
		ValidateCode:  e.totp.Validate,
		SetSecret:     e.users.SetTwoFactorSecret,
		Enable:        e.users.EnableTwoFactor,
		CheckAttempts: func(ctx context.Context, userID string) error {
			return twoFactorLimiterError(e.twoFactorLimiter.Check(ctx, twoFactorScopeSetup, userID))
		},
		RecordAttemptFailure: func(ctx context.Context, userID string) error {
			return twoFactorLimiterError(e.twoFactorLimiter.RecordFailure(ctx, twoFactorScopeSetup, userID))
		},
		ResetAttempts: func(ctx context.Context, userID string) error {
			return e.twoFactorLimiter.Reset(ctx, twoFactorScopeSetup, userID)
		},
	}
}

func (e *Engine) refreshFlowDeps() internalflows.RefreshDeps {
	return internalflows.RefreshDeps{
		Common:        e.flowCommon(),
		Rotate:        e.rotateRefresh,
		RevokeSession: e.revokeSession,
		GetUserByID:   e.userByID,
		IssueAccess:   e.issueAccess,
	}
}

func (e *Engine) logoutFlowDeps() internalflows.LogoutDeps {
	return internalflows.LogoutDeps{
		Common: e.flowCommon(),
		FindActive: func(ctx context.Context, raw string) (internalflows.ActiveRefresh, bool, error) {
			tok, err := e.ledger.FindActive(ctx, raw)
			if err != nil {
				if errors.Is(err, refresh.ErrNotFound) {
					return internalflows.ActiveRefresh{}, false, nil
				}
				return internalflows.ActiveRefresh{}, false, err
			}
			return internalflows.ActiveRefresh{
				TokenID:   tok.ID,
				UserID:    tok.UserID,
				SessionID: tok.SessionID,
			}, true, nil
		},
		Revoke: func(ctx context.Context, tokenID string) error {
			err := e.ledger.Revoke(ctx, tokenID, nil)
			if errors.Is(err, refresh.ErrAlreadyRevoked) {
				return nil
			}
			return err
		},
		DeleteCSRF: e.csrf.Delete,
	}
}

func (e *Engine) validateFlowDeps() internalflows.ValidateDeps {
	return internalflows.ValidateDeps{
		Common: e.flowCommon(),
		Verify: e.issuer.Verify,
	}
}

func (e *Engine) adminFlowDeps() internalflows.AdminDeps {
	return internalflows.AdminDeps{
		Common:       e.flowCommon(),
		CustomerRole: string(RoleCustomer),
		GetUserByID:  e.userByID,
		HashPassword: e.passwords.Hash,
		NewUserID:    uuid.NewString,
		CreateUser: func(ctx context.Context, u internalflows.UserRecord) error {
			return e.users.CreateUser(ctx, &User{
				ID:           u.UserID,
				Email:        u.Email,
				PasswordHash: u.PasswordHash,
				Name:         u.Name,
				Role:         Role(u.Role),
				CreatedAt:    e.now().UTC(),
			})
		},
	}
}

/*
====================================
FLOW ADAPTERS
====================================
*/

func (e *Engine) userByEmail(ctx context.Context, email string) (internalflows.UserRecord, error) {
	u, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		return internalflows.UserRecord{}, err
	}
	return toUserRecord(u), nil
}

func (e *Engine) userByID(ctx context.Context, userID string) (internalflows.UserRecord, error) {
	u, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return internalflows.UserRecord{}, err
	}
	return toUserRecord(u), nil
}

func (e *Engine) decryptSecret(sealed string) (string, error) {
	plain, err := e.box.Open(sealed)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (e *Engine) savePendingLogin(ctx context.Context, user internalflows.UserRecord) (string, error) {
	id, err := internal.NewChallengeID()
	if err != nil {
		return "", err
	}
	ttl := e.config.TwoFactor.PendingTTL
	if err := e.pending.Save(ctx, id, &stores.PendingLogin{
		UserID:    user.UserID,
		Email:     user.Email,
		ExpiresAt: e.now().Add(ttl).Unix(),
	}, ttl); err != nil {
		return "", err
	}
	return id, nil
}

func (e *Engine) pendingLoginUser(ctx context.Context, pendingID string) (string, error) {
	rec, err := e.pending.Get(ctx, pendingID)
	if err != nil {
		return "", pendingLoginError(err)
	}
	return rec.UserID, nil
}

func (e *Engine) recordPendingFailure(ctx context.Context, pendingID string) (bool, error) {
	exceeded, err := e.pending.RecordFailure(ctx, pendingID, e.config.TwoFactor.ChallengeAttempts)
	if err != nil {
		return false, pendingLoginError(err)
	}
	return exceeded, nil
}

// issueSession starts a new refresh chain and signs its first access token.
func (e *Engine) issueSession(ctx context.Context, user internalflows.UserRecord, enroll bool) (*internalflows.SessionTokens, error) {
	issued, err := e.ledger.Persist(ctx, refresh.Params{
		UserID:    user.UserID,
		UserAgent: userAgentFromContext(ctx),
		IP:        clientIPFromContext(ctx),
	})
	if err != nil {
		return nil, err
	}

	grant, err := e.issueAccess(ctx, user, issued.Token.SessionID, enroll)
	if err != nil {
		return nil, err
	}

	return &internalflows.SessionTokens{
		AccessToken:        grant.AccessToken,
		AccessExpiresAt:    grant.AccessExpiresAt,
		RefreshToken:       issued.Raw,
		RefreshExpiresAt:   issued.Token.ExpiresAt,
		CSRFToken:          grant.CSRFToken,
		SessionID:          issued.Token.SessionID,
		EnrollmentRequired: enroll,
	}, nil
}

// issueAccess signs an access token for sessionID and replaces its CSRF token.
func (e *Engine) issueAccess(ctx context.Context, user internalflows.UserRecord, sessionID string, enroll bool) (internalflows.AccessGrant, error) {
	token, exp, err := e.issuer.Sign(jwt.Subject{
		UserID:             user.UserID,
		Email:              user.Email,
		Role:               user.Role,
		SessionID:          sessionID,
		EnrollmentRequired: enroll,
	})
	if err != nil {
		return internalflows.AccessGrant{}, err
	}

	csrf, err := e.issueCSRF(ctx, sessionID)
	if err != nil {
		return internalflows.AccessGrant{}, err
	}

	return internalflows.AccessGrant{
		AccessToken:     token,
		AccessExpiresAt: exp,
		CSRFToken:       csrf,
	}, nil
}

func (e *Engine) rotateRefresh(ctx context.Context, raw string) (internalflows.RotatedRefresh, error) {
	rot, err := e.ledger.Rotate(ctx, raw, refresh.Params{
		UserAgent: userAgentFromContext(ctx),
		IP:        clientIPFromContext(ctx),
	})
	switch {
	case errors.Is(err, refresh.ErrReuseDetected):
		var out internalflows.RotatedRefresh
		if rot != nil && rot.Previous != nil {
			out.UserID = rot.Previous.UserID
			out.SessionID = rot.Previous.SessionID
			_ = e.csrf.Delete(ctx, out.SessionID)
		}
		return out, ErrRefreshReuse
	case errors.Is(err, refresh.ErrNotFound):
		return internalflows.RotatedRefresh{}, ErrRefreshInvalid
	case err != nil:
		return internalflows.RotatedRefresh{}, err
	}

	return internalflows.RotatedRefresh{
		UserID:       rot.Next.Token.UserID,
		SessionID:    rot.Next.Token.SessionID,
		RefreshToken: rot.Next.Raw,
		ExpiresAt:    rot.Next.Token.ExpiresAt,
	}, nil
}

func (e *Engine) revokeSession(ctx context.Context, sessionID string) error {
	if _, err := e.ledger.RevokeSession(ctx, sessionID); err != nil {
		return err
	}
	return e.csrf.Delete(ctx, sessionID)
}

func pendingLoginError(err error) error {
	switch {
	case errors.Is(err, stores.ErrPendingLoginNotFound),
		errors.Is(err, stores.ErrPendingLoginExpired):
		return ErrPendingLoginNotFound
	default:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}

func twoFactorLimiterError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrTwoFactorRateLimited):
		return ErrTwoFactorRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}
