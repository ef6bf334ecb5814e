// Package rate provides the Redis-backed fixed-window counter used for
// request rate limits (login per IP, refresh per IP, 2FA challenge per IP).
//
// # Window semantics
//
// Fixed window: INCR, PEXPIRE on the first hit, both inside one script.
// Key prefix:
//   - brl:<action>:<identity>
//
// Rate limits are independent of account lockout (internal/limiters).
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters and the engine).
//   - Keep counters in process memory.
package rate
