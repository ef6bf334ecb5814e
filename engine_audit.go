package bankauth

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// AuditErrorCode is the stable error label written to SecurityEvent.Error.
type AuditErrorCode string

const (
	auditErrValidation           AuditErrorCode = "validation_error"
	auditErrInvalidCredentials   AuditErrorCode = "invalid_credentials"
	auditErrUnauthorized         AuditErrorCode = "unauthorized"
	auditErrForbidden            AuditErrorCode = "forbidden"
	auditErrEnrollmentRequired   AuditErrorCode = "enrollment_required"
	auditErrCSRFMismatch         AuditErrorCode = "csrf_mismatch"
	auditErrAccountLocked        AuditErrorCode = "account_locked"
	auditErrRateLimited          AuditErrorCode = "rate_limited"
	auditErrUserNotFound         AuditErrorCode = "user_not_found"
	auditErrDuplicate            AuditErrorCode = "duplicate"
	auditErrTwoFactorNotEnabled  AuditErrorCode = "totp_not_enabled"
	auditErrTwoFactorInvalid     AuditErrorCode = "totp_invalid"
	auditErrTwoFactorDecrypt     AuditErrorCode = "totp_decrypt_failed"
	auditErrTwoFactorRateLimited AuditErrorCode = "totp_rate_limited"
	auditErrPendingLoginNotFound AuditErrorCode = "pending_login_not_found"
	auditErrRefreshInvalid       AuditErrorCode = "refresh_invalid"
	auditErrRefreshReuse         AuditErrorCode = "refresh_reuse"
	auditErrInvalidToken         AuditErrorCode = "invalid_token"
	auditErrUnavailable          AuditErrorCode = "backend_unavailable"
	auditErrInternal             AuditErrorCode = "internal_error"
)

// emitAudit builds a SecurityEvent from request context and hands it to the
// dispatcher. metadataBuilder only runs when auditing is enabled.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	severity Severity,
	success bool,
	userID string,
	email string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if id := requestIDFromContext(ctx); id != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["request_id"] = id
	}

	event := SecurityEvent{
		Timestamp: e.now().UTC(),
		Type:      eventType,
		Severity:  severity,
		UserID:    userID,
		Email:     email,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if details, ok := metadata["details"]; ok {
		event.Details = details
		delete(metadata, "details")
	}
	code := auditErrorCode(err)
	event.Error = string(code)
	if code == auditErrInternal || code == auditErrUnavailable {
		e.logger.Warn("security event recorded a backend failure",
			zap.String("type", eventType),
			zap.String("request_id", requestIDFromContext(ctx)),
			zap.Error(err),
		)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrEnrollmentRequired):
		return auditErrEnrollmentRequired
	case errors.Is(err, ErrCSRFMismatch):
		return auditErrCSRFMismatch
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountExists), errors.Is(err, ErrTwoFactorAlreadyEnabled):
		return auditErrDuplicate
	case errors.Is(err, ErrTwoFactorNotEnabled), errors.Is(err, ErrTwoFactorNotInitialized):
		return auditErrTwoFactorNotEnabled
	case errors.Is(err, ErrTwoFactorInvalidCode):
		return auditErrTwoFactorInvalid
	case errors.Is(err, ErrTwoFactorDecrypt):
		return auditErrTwoFactorDecrypt
	case errors.Is(err, ErrTwoFactorRateLimited):
		return auditErrTwoFactorRateLimited
	case errors.Is(err, ErrPendingLoginNotFound):
		return auditErrPendingLoginNotFound
	case errors.Is(err, ErrRefreshInvalid):
		return auditErrRefreshInvalid
	case errors.Is(err, ErrRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrAudienceMismatch):
		return auditErrInvalidToken
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
