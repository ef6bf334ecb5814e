package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/bankauth/internal/audit"
	"github.com/MrEthical07/bankauth/internal/metrics"
	"go.uber.org/zap"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login     LoginDeps
	TwoFactor TwoFactorDeps
	Refresh   RefreshDeps
	Logout    LogoutDeps
	Validate  ValidateDeps
	Admin     AdminDeps
}

// AuditFunc emits one security event.
type AuditFunc func(
	ctx context.Context,
	eventType string,
	severity audit.Severity,
	success bool,
	userID string,
	email string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
)

// Errors carries host-level sentinel errors so flows never import the root package.
type Errors struct {
	EngineNotReady     error
	Validation         error
	InvalidCredentials error
	Unauthorized       error
	BackendUnavailable error
	UserNotFound       error
	Forbidden          error
	EnrollmentRequired error
	AccountExists      error

	TwoFactorNotEnabled     error
	TwoFactorNotInitialized error
	TwoFactorAlreadyEnabled error
	TwoFactorInvalidCode    error
	TwoFactorDecrypt        error
	TwoFactorRateLimited    error
	PendingLoginNotFound    error

	RefreshInvalid error
	RefreshReuse   error

	// Locked builds the lockout error carrying the minutes left.
	Locked func(remainingMinutes int) error
	// RateLimited builds the rate-limit error carrying the retry delay.
	RateLimited func(retryAfter time.Duration) error
}

// Common is embedded by every dependency set.
type Common struct {
	Now       func() time.Time
	ClientIP  func(context.Context) string
	UserAgent func(context.Context) string
	MetricInc func(metrics.MetricID)
	Observe   func(metrics.MetricID, time.Duration)
	EmitAudit AuditFunc
	Logger    *zap.Logger
	AdminRole string
	Errors    Errors
}

func (c *Common) fill() {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.ClientIP == nil {
		c.ClientIP = func(context.Context) string { return "" }
	}
	if c.UserAgent == nil {
		c.UserAgent = func(context.Context) string { return "" }
	}
	if c.MetricInc == nil {
		c.MetricInc = func(metrics.MetricID) {}
	}
	if c.Observe == nil {
		c.Observe = func(metrics.MetricID, time.Duration) {}
	}
	if c.EmitAudit == nil {
		c.EmitAudit = func(context.Context, string, audit.Severity, bool, string, string, string, error, func() map[string]string) {}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// UserRecord is the flow-local user model.
type UserRecord struct {
	UserID           string
	Email            string
	Name             string
	Role             string
	PasswordHash     string
	TwoFactorEnabled bool
	TwoFactorSecret  *string
}

// NeedsEnrollment reports whether u is an admin that has not finished 2FA enrollment.
func NeedsEnrollment(u UserRecord, adminRole string) bool {
	return adminRole != "" && u.Role == adminRole && !u.TwoFactorEnabled
}

// SessionTokens is everything handed to the client at token issuance.
type SessionTokens struct {
	AccessToken        string
	AccessExpiresAt    time.Time
	RefreshToken       string
	RefreshExpiresAt   time.Time
	CSRFToken          string
	SessionID          string
	EnrollmentRequired bool
}

// Event names. Types named in the security event catalogue.
const (
	EventLogin              = "login"
	EventLogout             = "logout"
	EventFailedLogin        = "failed_login"
	EventAdminAction        = "admin_action"
	EventSuspiciousActivity = "suspicious_activity"
	EventAccountLocked      = "account_locked"
	EventTwoFactorRequired  = "two_factor_required"
	EventTwoFactorSetup     = "two_factor_setup"
	EventTwoFactorEnabled   = "two_factor_enabled"
	EventTwoFactorFailed    = "two_factor_failed"
	EventRefresh            = "refresh"
	EventRefreshReuse       = "refresh_reuse"
	EventRateLimited        = "rate_limited"
)
