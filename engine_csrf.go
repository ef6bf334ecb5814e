package bankauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/bankauth/internal"
	"github.com/MrEthical07/bankauth/internal/stores"
	"go.uber.org/zap"
)

// issueCSRF mints a token for sessionID and stores it for as long as the
// session's refresh chain can live.
func (e *Engine) issueCSRF(ctx context.Context, sessionID string) (string, error) {
	token, err := internal.NewCSRFToken()
	if err != nil {
		return "", err
	}
	if err := e.csrf.Put(ctx, sessionID, token, e.config.Refresh.TTL); err != nil {
		return "", err
	}
	return token, nil
}

// IssueCSRF replaces the CSRF token bound to sessionID and returns it.
func (e *Engine) IssueCSRF(ctx context.Context, sessionID string) (string, error) {
	if e == nil || e.csrf == nil {
		return "", ErrEngineNotReady
	}
	if sessionID == "" {
		return "", ErrUnauthorized
	}
	token, err := e.issueCSRF(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return token, nil
}

// VerifyCSRF checks the token presented in the X-CSRF-Token header against
// the one bound to the caller's session. A missing or mismatched token
// returns [ErrCSRFMismatch].
func (e *Engine) VerifyCSRF(ctx context.Context, auth *AuthResult, presented string) error {
	if e == nil || e.csrf == nil {
		return ErrEngineNotReady
	}
	if auth == nil || auth.SessionID == "" {
		return ErrUnauthorized
	}

	ok, err := e.csrf.Verify(ctx, auth.SessionID, presented)
	if err != nil && !errors.Is(err, stores.ErrCSRFNotFound) {
		e.logger.Error("csrf lookup failed", zap.String("session_id", auth.SessionID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if ok {
		return nil
	}

	reason := "mismatch"
	switch {
	case presented == "":
		reason = "missing_header"
	case err != nil:
		reason = "no_session_token"
	}
	e.metricInc(MetricCSRFRejected)
	e.emitAudit(ctx, EventCSRFRejected, SeverityMedium, false, auth.UserID, auth.Email, auth.SessionID, ErrCSRFMismatch, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ErrCSRFMismatch
}
