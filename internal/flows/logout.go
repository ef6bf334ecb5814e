package flows

import (
	"context"

	"github.com/MrEthical07/bankauth/internal/audit"
	"github.com/MrEthical07/bankauth/internal/metrics"
	"go.uber.org/zap"
)

// ActiveRefresh identifies the ledger row behind a presented refresh token.
type ActiveRefresh struct {
	TokenID   string
	UserID    string
	SessionID string
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Common

	// FindActive returns ok=false for unknown, revoked or expired tokens.
	FindActive func(ctx context.Context, raw string) (ActiveRefresh, bool, error)
	// Revoke revokes without a replacement; already-revoked is not an error.
	Revoke     func(ctx context.Context, tokenID string) error
	DeleteCSRF func(ctx context.Context, sessionID string) error
}

// RunLogout is best-effort: an unknown token is a successful no-op.
func RunLogout(ctx context.Context, raw string, deps LogoutDeps) error {
	deps.fill()
	if deps.FindActive == nil || deps.Revoke == nil {
		return deps.Errors.EngineNotReady
	}
	if raw == "" {
		return nil
	}

	active, ok, err := deps.FindActive(ctx, raw)
	if err != nil {
		deps.Logger.Warn("logout lookup failed", zap.Error(err))
		return wrapBackend(deps.Errors.BackendUnavailable, err)
	}
	if !ok {
		return nil
	}

	if err := deps.Revoke(ctx, active.TokenID); err != nil {
		deps.Logger.Warn("logout revoke failed", zap.Error(err))
		return wrapBackend(deps.Errors.BackendUnavailable, err)
	}
	if deps.DeleteCSRF != nil {
		if err := deps.DeleteCSRF(ctx, active.SessionID); err != nil {
			deps.Logger.Warn("csrf token delete failed", zap.Error(err))
		}
	}

	deps.MetricInc(metrics.MetricLogout)
	deps.EmitAudit(ctx, EventLogout, audit.SeverityLow, true, active.UserID, "", active.SessionID, nil, nil)
	return nil
}
