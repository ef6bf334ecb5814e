// Package internal contains helpers private to bankauth, chiefly secure
// random identifiers and token encodings.
//
// # Sub-packages
//
//   - audit: async security-event dispatch (Dispatcher + Sink implementations)
//   - config: YAML/env loading for the bankauthd service
//   - flows: flow orchestrators for every Engine operation
//   - limiters: lockout and 2FA attempt limiters
//   - logger: zap construction and context helpers
//   - metrics: lock-free counters and latency histograms
//   - rate: Redis-backed fixed-window rate limit primitive
//   - security: configuration posture report
//   - stores: Redis stores for pending 2FA logins and CSRF tokens
//
// # What this package must NOT do
//
//   - Export types that appear in the public bankauth API.
package internal
