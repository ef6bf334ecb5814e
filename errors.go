package bankauth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/bankauth/jwt"
)

var (
	// ErrValidation is returned for malformed or missing request fields.
	ErrValidation = errors.New("invalid request")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when no usable credential was presented.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller lacks the role for an operation.
	ErrForbidden = errors.New("forbidden")
	// ErrEnrollmentRequired is returned to admins that have not finished 2FA enrollment.
	ErrEnrollmentRequired = errors.New("two-factor enrollment required")
	// ErrCSRFMismatch is returned when the X-CSRF-Token header is missing or wrong.
	ErrCSRFMismatch = errors.New("csrf token mismatch")

	// ErrAccountLocked is wrapped by LockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrLoginRateLimited is wrapped by RateLimitedError for the login action.
	ErrLoginRateLimited = errors.New("login rate limited")

	ErrUserNotFound  = errors.New("user not found")
	ErrAccountExists = errors.New("account already exists")

	ErrTwoFactorNotEnabled     = errors.New("two-factor authentication not enabled")
	ErrTwoFactorNotInitialized = errors.New("two-factor authentication not initialized")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	ErrTwoFactorInvalidCode    = errors.New("invalid two-factor code")
	// ErrTwoFactorDecrypt means the stored secret could not be opened. It is
	// never caused by the client.
	ErrTwoFactorDecrypt       = errors.New("two-factor secret decryption failed")
	ErrTwoFactorRateLimited   = errors.New("two-factor attempts rate limited")
	ErrPendingLoginNotFound   = errors.New("pending login not found")

	// ErrRefreshInvalid covers missing, unknown, revoked and expired refresh tokens.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is returned when an already rotated token is presented.
	// The whole session chain has been revoked by the time it is returned.
	ErrRefreshReuse = errors.New("refresh token reuse detected")

	// ErrBackendUnavailable wraps Redis and Postgres failures.
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrEngineNotReady     = errors.New("engine not initialized")

	ErrTokenInvalid     = jwt.ErrTokenInvalid
	ErrTokenExpired     = jwt.ErrTokenExpired
	ErrAudienceMismatch = jwt.ErrAudienceMismatch
)

// LockedError is returned while an email is locked out.
type LockedError struct {
	RetryAfterMinutes int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minutes", e.RetryAfterMinutes)
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// RateLimitedError is returned when a fixed-window budget is spent.
type RateLimitedError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate limited, retry after %s", e.Action, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Unwrap() error {
	if e.Action == "login" {
		return ErrLoginRateLimited
	}
	return nil
}

// ErrorKind groups errors by how they are reported to a client.
type ErrorKind uint8

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuthentication
	KindForbidden
	KindLocked
	KindRateLimited
	KindNotFound
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindAuthentication:
		return "authentication_error"
	case KindForbidden:
		return "forbidden"
	case KindLocked:
		return "locked"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal_error"
	}
}

// KindOf classifies err. Anything unrecognised is KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindInternal
	}

	var locked *LockedError
	var limited *RateLimitedError

	switch {
	case errors.As(err, &locked), errors.Is(err, ErrAccountLocked):
		return KindLocked
	case errors.As(err, &limited),
		errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrTwoFactorRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrTwoFactorInvalidCode),
		errors.Is(err, ErrTwoFactorNotEnabled),
		errors.Is(err, ErrTwoFactorNotInitialized),
		errors.Is(err, ErrTwoFactorAlreadyEnabled):
		return KindValidation
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrRefreshReuse),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrAudienceMismatch):
		return KindAuthentication
	case errors.Is(err, ErrForbidden),
		errors.Is(err, ErrCSRFMismatch),
		errors.Is(err, ErrEnrollmentRequired):
		return KindForbidden
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrPendingLoginNotFound):
		return KindNotFound
	case errors.Is(err, ErrAccountExists):
		return KindConflict
	default:
		return KindInternal
	}
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden, KindLocked:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
