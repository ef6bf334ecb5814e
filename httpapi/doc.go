// Package httpapi serves the authentication endpoints over chi.
//
// Sessions travel in three cookies: the httpOnly access and refresh tokens
// and a script-readable CSRF token that state-changing authenticated
// requests echo in the X-CSRF-Token header. Errors are rendered from the
// engine's error kinds as {"error", "message", "retryAfterMinutes"}.
//
// A failed refresh never touches cookies. Logout always clears them.
package httpapi
