package bankauth

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestKindOfAndHTTPStatus(t *testing.T) {
	tests := []struct {
		err    error
		kind   ErrorKind
		status int
	}{
		{ErrValidation, KindValidation, http.StatusBadRequest},
		{fmt.Errorf("%w: email", ErrValidation), KindValidation, http.StatusBadRequest},
		{ErrTwoFactorInvalidCode, KindValidation, http.StatusBadRequest},
		{ErrInvalidCredentials, KindAuthentication, http.StatusUnauthorized},
		{ErrRefreshReuse, KindAuthentication, http.StatusUnauthorized},
		{ErrTokenExpired, KindAuthentication, http.StatusUnauthorized},
		{ErrForbidden, KindForbidden, http.StatusForbidden},
		{ErrEnrollmentRequired, KindForbidden, http.StatusForbidden},
		{&LockedError{RetryAfterMinutes: 3}, KindLocked, http.StatusForbidden},
		{&RateLimitedError{Action: "login", RetryAfter: time.Second}, KindRateLimited, http.StatusTooManyRequests},
		{ErrTwoFactorRateLimited, KindRateLimited, http.StatusTooManyRequests},
		{ErrUserNotFound, KindNotFound, http.StatusNotFound},
		{ErrAccountExists, KindConflict, http.StatusConflict},
		{fmt.Errorf("%w: dial tcp", ErrBackendUnavailable), KindInternal, http.StatusInternalServerError},
		{errors.New("boom"), KindInternal, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		if got := KindOf(tc.err); got != tc.kind {
			t.Errorf("KindOf(%v) = %v, want %v", tc.err, got, tc.kind)
		}
		if got := HTTPStatus(KindOf(tc.err)); got != tc.status {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.status)
		}
	}
}

func TestLockedErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("login: %w", &LockedError{RetryAfterMinutes: 7})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatal("expected LockedError to match ErrAccountLocked")
	}
	var locked *LockedError
	if !errors.As(err, &locked) || locked.RetryAfterMinutes != 7 {
		t.Fatalf("unexpected LockedError: %+v", locked)
	}
}

func TestRateLimitedErrorUnwraps(t *testing.T) {
	if !errors.Is(&RateLimitedError{Action: "login"}, ErrLoginRateLimited) {
		t.Fatal("login rate limit must match ErrLoginRateLimited")
	}
	if errors.Is(&RateLimitedError{Action: "other"}, ErrLoginRateLimited) {
		t.Fatal("non-login rate limit must not match ErrLoginRateLimited")
	}
}
