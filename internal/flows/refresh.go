package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/bankauth/internal/audit"
	"github.com/MrEthical07/bankauth/internal/metrics"
	"go.uber.org/zap"
)

// RotatedRefresh is the successor token produced by a rotation.
type RotatedRefresh struct {
	UserID       string
	SessionID    string
	RefreshToken string
	ExpiresAt    time.Time
}

// AccessGrant is an access token plus the CSRF token bound to the same session.
type AccessGrant struct {
	AccessToken     string
	AccessExpiresAt time.Time
	CSRFToken       string
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Common

	// Rotate exchanges raw for a successor. It returns Errors.RefreshInvalid or
	// Errors.RefreshReuse for client-caused failures.
	Rotate        func(ctx context.Context, raw string) (RotatedRefresh, error)
	RevokeSession func(ctx context.Context, sessionID string) error
	GetUserByID   func(ctx context.Context, userID string) (UserRecord, error)
	// IssueAccess signs an access token for an existing session and refreshes its CSRF token.
	IssueAccess func(ctx context.Context, user UserRecord, sessionID string, enrollmentRequired bool) (AccessGrant, error)
}

// RunRefresh rotates a refresh token and issues a fresh access token that
// reflects the user's current role and enrollment.
func RunRefresh(ctx context.Context, raw string, deps RefreshDeps) (*SessionTokens, error) {
	deps.fill()
	if deps.Rotate == nil || deps.GetUserByID == nil || deps.IssueAccess == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if raw == "" {
		deps.MetricInc(metrics.MetricRefreshFailure)
		return nil, deps.Errors.RefreshInvalid
	}

	next, err := deps.Rotate(ctx, raw)
	if err != nil {
		deps.MetricInc(metrics.MetricRefreshFailure)
		switch {
		case errors.Is(err, deps.Errors.RefreshReuse):
			deps.MetricInc(metrics.MetricRefreshReuseDetected)
			deps.EmitAudit(ctx, EventRefreshReuse, audit.SeverityCritical, false, next.UserID, "", next.SessionID, err, func() map[string]string {
				return map[string]string{"action": "session_revoked"}
			})
			return nil, err
		case errors.Is(err, deps.Errors.RefreshInvalid):
			deps.EmitAudit(ctx, EventRefresh, audit.SeverityLow, false, "", "", "", err, nil)
			return nil, err
		default:
			deps.Logger.Error("refresh rotation failed", zap.Error(err))
			return nil, wrapBackend(deps.Errors.BackendUnavailable, err)
		}
	}

	user, err := deps.GetUserByID(ctx, next.UserID)
	if err != nil {
		deps.MetricInc(metrics.MetricRefreshFailure)
		if deps.RevokeSession != nil {
			if rerr := deps.RevokeSession(ctx, next.SessionID); rerr != nil {
				deps.Logger.Warn("session revoke after missing user failed", zap.Error(rerr))
			}
		}
		if errors.Is(err, deps.Errors.UserNotFound) {
			return nil, deps.Errors.RefreshInvalid
		}
		return nil, wrapBackend(deps.Errors.BackendUnavailable, err)
	}

	enroll := NeedsEnrollment(user, deps.AdminRole)
	grant, err := deps.IssueAccess(ctx, user, next.SessionID, enroll)
	if err != nil {
		deps.MetricInc(metrics.MetricRefreshFailure)
		deps.Logger.Error("access token issuance failed", zap.Error(err))
		return nil, wrapBackend(deps.Errors.BackendUnavailable, err)
	}

	deps.MetricInc(metrics.MetricRefreshSuccess)
	deps.EmitAudit(ctx, EventRefresh, audit.SeverityLow, true, user.UserID, user.Email, next.SessionID, nil, nil)

	return &SessionTokens{
		AccessToken:        grant.AccessToken,
		AccessExpiresAt:    grant.AccessExpiresAt,
		RefreshToken:       next.RefreshToken,
		RefreshExpiresAt:   next.ExpiresAt,
		CSRFToken:          grant.CSRFToken,
		SessionID:          next.SessionID,
		EnrollmentRequired: enroll,
	}, nil
}
