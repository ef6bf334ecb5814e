// Package stores provides Redis-backed, short-lived record stores for the
// login session: pending 2FA logins and per-session CSRF tokens.
//
// # Design
//
// Pending logins are versioned, binary-encoded records with a TTL. RecordFailure
// uses WATCH/MULTI optimistic transactions with retry on contention; Consume is
// a single DEL so exactly one caller completes a challenge. CSRF tokens are
// compared in constant time.
//
// # What this package must NOT do
//
//   - Import bankauth or any sibling internal package.
//   - Generate tokens or make authentication decisions (internal/flows does).
package stores
