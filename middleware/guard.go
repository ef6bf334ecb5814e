package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/bankauth"
)

type authResultContextKey struct{}

// Validator verifies access tokens. *bankauth.Engine implements it.
type Validator interface {
	Validate(ctx context.Context, accessToken string) (*bankauth.AuthResult, error)
}

// ErrorHandler renders a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// DefaultErrorHandler writes the status mapped from err with a plain-text body.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status := bankauth.HTTPStatus(bankauth.KindOf(err))
	http.Error(w, http.StatusText(status), status)
}

// AuthResultFromContext returns the identity stored by [RequireAccess].
func AuthResultFromContext(ctx context.Context) (*bankauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*bankauth.AuthResult)
	return res, ok && res != nil
}

// WithAuthResult stores res in ctx the way [RequireAccess] does.
func WithAuthResult(ctx context.Context, res *bankauth.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// RequireAccess validates the access token from cookieName, falling back to
// an Authorization bearer header, and injects the identity into the request
// context. Tokens flagged for enrollment pass; stack [RequireEnrolled] to
// reject them.
func RequireAccess(v Validator, cookieName string, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = DefaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				onError(w, r, bankauth.ErrEngineNotReady)
				return
			}

			token := accessToken(r, cookieName)
			if token == "" {
				onError(w, r, bankauth.ErrUnauthorized)
				return
			}

			res, err := v.Validate(r.Context(), token)
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

// RequireEnrolled rejects tokens issued to admins that have not finished
// two-factor enrollment.
func RequireEnrolled(onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = DefaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				onError(w, r, bankauth.ErrUnauthorized)
				return
			}
			if res.EnrollmentRequired {
				onError(w, r, bankauth.ErrEnrollmentRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects identities whose role is not role.
func RequireRole(role bankauth.Role, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = DefaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				onError(w, r, bankauth.ErrUnauthorized)
				return
			}
			if res.Role != role {
				onError(w, r, bankauth.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessToken(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	token, _ := bearerToken(r.Header.Get("Authorization"))
	return token
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
