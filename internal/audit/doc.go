// Package audit implements async dispatch of security events.
//
// # Components
//
//   - [Event]: structured record with type, severity, user, email, session, IP, metadata.
//   - [Sink]: event consumer. Implementations: channel, JSON lines, zap, capped Redis list, fan-out.
//   - [Dispatcher]: buffered async relay with an optional severity floor. Only
//     low-severity events may be shed when the buffer is full.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. It does NOT decide which events to
// emit; the Engine and flow functions do.
//
// # What this package must NOT do
//
//   - Import bankauth or any sibling internal package.
//   - Record passwords, TOTP codes, raw refresh tokens or CSRF tokens.
package audit
