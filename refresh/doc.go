// Package refresh implements the refresh-token ledger: issuance, lookup,
// conditional revocation and rotation of opaque long-lived tokens.
//
// # Token format
//
// A raw token is 64 random bytes, base64url without padding. Only
// HMAC-SHA256(secret, raw) in hex is stored; the raw value exists only in the
// client cookie.
//
// # Rotation
//
// Rotate persists the successor first, then revokes the presented token with
// a conditional update (revoked only if still active) that links replaced_by.
// Losing that conditional update, or presenting a token that was already
// replaced, is reuse: the whole session chain is revoked.
//
// # What this package must NOT do
//
//   - Issue access tokens or set cookies.
//   - Store raw tokens.
package refresh
