// Package middleware adapts the bankauth engine to net/http.
//
// # Guards
//
//   - [RequireAccess] validates the access token from the auth cookie or a
//     bearer header and stores the identity in the request context.
//   - [RequireEnrolled] rejects admin sessions still waiting on two-factor
//     enrollment.
//   - [RequireRole] restricts a route to one role.
//   - [RequireCSRF] checks the X-CSRF-Token header on state-changing methods.
//
// # Hardening
//
// [SecurityHeaders] sets the browser hardening headers. [RealIP] believes
// forwarding headers only from trusted proxy networks. [ClientContext]
// records caller metadata for security events, and [Throttle] applies a
// per-IP token bucket.
//
// # What this package must NOT do
//
//   - Parse or sign JWTs directly.
//   - Access Redis.
//   - Make authorization decisions beyond pass/reject from the engine and
//     the role check.
package middleware
