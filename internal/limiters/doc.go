// Package limiters provides the account-level limiters that sit next to the
// request rate limits in internal/rate.
//
// # Limiters
//
//   - [LockoutLimiter]: failed logins per email; locks for a fixed duration at the threshold.
//   - [TwoFactorLimiter]: wrong TOTP codes per user and scope.
//
// All limiters are nil-safe: calling any method on a nil receiver is a no-op.
//
// # What this package must NOT do
//
//   - Import bankauth or any sibling internal package.
//   - Make policy decisions beyond counting. Flow functions decide consequences.
package limiters
