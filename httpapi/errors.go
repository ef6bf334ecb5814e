package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/bankauth"
	"github.com/MrEthical07/bankauth/internal/logger"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type errorBody struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterMinutes int    `json:"retryAfterMinutes,omitempty"`
	RequestID         string `json:"requestId,omitempty"`
}

// Client-facing messages per kind. Internal detail never reaches the body.
var kindMessages = map[bankauth.ErrorKind]string{
	bankauth.KindValidation:     "Invalid request",
	bankauth.KindAuthentication: "Authentication required",
	bankauth.KindForbidden:      "Forbidden",
	bankauth.KindLocked:         "Account temporarily locked",
	bankauth.KindRateLimited:    "Too many requests",
	bankauth.KindNotFound:       "Not found",
	bankauth.KindConflict:       "Already exists",
	bankauth.KindInternal:       "Internal server error",
}

// writeError renders err through the engine's error taxonomy. It matches
// middleware.ErrorHandler.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := bankauth.KindOf(err)
	status := bankauth.HTTPStatus(kind)

	body := errorBody{
		Error:     kind.String(),
		Message:   kindMessages[kind],
		RequestID: chimw.GetReqID(r.Context()),
	}

	switch {
	case errors.Is(err, bankauth.ErrInvalidCredentials):
		body.Message = "Invalid email or password"
	case errors.Is(err, bankauth.ErrCSRFMismatch):
		body.Message = "Invalid CSRF token"
	case errors.Is(err, bankauth.ErrEnrollmentRequired):
		body.Message = "Two-factor enrollment required"
	case errors.Is(err, bankauth.ErrTwoFactorInvalidCode):
		body.Message = "Invalid two-factor code"
	}

	var locked *bankauth.LockedError
	if errors.As(err, &locked) {
		body.RetryAfterMinutes = locked.RetryAfterMinutes
		w.Header().Set("Retry-After", strconv.Itoa(locked.RetryAfterMinutes*60))
	}
	var limited *bankauth.RateLimitedError
	if errors.As(err, &limited) && limited.RetryAfter > 0 {
		body.RetryAfterMinutes = int((limited.RetryAfter + time.Minute - 1) / time.Minute)
		if w.Header().Get("Retry-After") == "" {
			w.Header().Set("Retry-After", strconv.Itoa(int(limited.RetryAfter.Seconds())+1))
		}
	}

	if kind == bankauth.KindInternal {
		logger.From(r.Context()).Error("request failed", zap.Error(err))
	}

	writeJSON(w, status, body)
}

// validationError wraps a decoding or DTO failure so it maps to 400.
func validationError(detail string) error {
	return &requestError{detail: detail}
}

type requestError struct {
	detail string
}

func (e *requestError) Error() string {
	return "invalid request: " + e.detail
}

func (e *requestError) Unwrap() error {
	return bankauth.ErrValidation
}
