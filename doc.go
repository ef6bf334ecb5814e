// Package bankauth is the authentication and session-security core of the
// SecureBank backend: password login with transparent hash migration,
// per-IP rate limiting, per-email lockout, TOTP second factor, short-lived
// JWT access tokens, rotating opaque refresh tokens with reuse detection,
// and per-session CSRF tokens.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// bankauth is the public surface. It exposes [Engine], [Builder], [Config]
// and value types (LoginResult, SessionTokens, AuthResult, SecurityEvent).
// Flow orchestration, Redis key layout, rate limiting and audit dispatch live
// under internal/ and are never exported. Token and crypto primitives live in
// the jwt, refresh, password, totp and secretbox sub-packages; the HTTP
// surface lives in httpapi and middleware.
//
// # Session states
//
// A client is Anonymous until a password login succeeds. Accounts with 2FA
// enabled then sit in AwaitingTwoFactor, identified only by an opaque
// pending id held in Redis, until [Engine.ConfirmLoginTwoFactor] accepts a
// code. Only then is a refresh chain persisted and an access token signed.
// Admins without 2FA receive tokens flagged EnrollmentRequired that grant
// access to enrollment and nothing else.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Store refresh tokens or TOTP secrets in plaintext.
//
// # Performance contract
//
// Validate is the hot path and performs no I/O. Login, Refresh and Logout
// make a bounded number of Redis and database round-trips per call.
package bankauth
