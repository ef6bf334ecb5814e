package middleware

import (
	"net/http"

	"github.com/MrEthical07/bankauth"
)

// RequestIDHeader is read by [ClientContext] when present.
const RequestIDHeader = "X-Request-Id"

// ClientContext copies the caller's IP, User-Agent and request id into the
// request context so engine calls can record them. Put [RealIP] in front of it
// when running behind a proxy.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := bankauth.WithClientIP(r.Context(), clientIP(r))
		ctx = bankauth.WithUserAgent(ctx, r.UserAgent())
		if id := r.Header.Get(RequestIDHeader); id != "" {
			ctx = bankauth.WithRequestID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
