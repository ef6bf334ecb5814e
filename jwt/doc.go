// Package jwt issues and verifies the short-lived HS256 access tokens that
// carry user id, email, role and session id between requests.
//
// Verification pins the algorithm, issuer and audience. Access tokens are
// stateless: revoking a refresh token does not shorten an access token that
// was already issued.
package jwt
