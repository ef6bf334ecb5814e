// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunConfirmLoginTwoFactor, etc.)
// accepts a typed dependency struct of function fields and returns results
// without side-effects beyond those dependencies. The root engine builds the
// dependency structs once and delegates to Service.
//
// # Architecture boundaries
//
// Flows coordinate the credential store, password verifier, rate limiter,
// lockout limiter, pending-login store, refresh ledger, token issuer, audit
// emission and metrics. They do NOT own any of these resources; ownership
// stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import bankauth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
