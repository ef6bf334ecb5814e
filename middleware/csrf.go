package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/bankauth"
)

// CSRFVerifier checks a presented CSRF token against the caller's session.
// *bankauth.Engine implements it.
type CSRFVerifier interface {
	VerifyCSRF(ctx context.Context, auth *bankauth.AuthResult, presented string) error
}

// RequireCSRF demands header on state-changing methods of authenticated
// routes. It must run after [RequireAccess]. Safe methods pass untouched.
func RequireCSRF(v CSRFVerifier, header string, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = DefaultErrorHandler
	}
	if header == "" {
		header = "X-CSRF-Token"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !stateChanging(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				onError(w, r, bankauth.ErrUnauthorized)
				return
			}
			if v == nil {
				onError(w, r, bankauth.ErrEngineNotReady)
				return
			}
			if err := v.VerifyCSRF(r.Context(), res, r.Header.Get(header)); err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func stateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
