package internal

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const (
	refreshTokenRawSize = 64
	tokenIDSize         = 16
	sessionIDSize       = 16
	challengeIDSize     = 24
	csrfTokenSize       = 32
)

// ErrMalformedToken is returned when a presented refresh token cannot be decoded.
var ErrMalformedToken = errors.New("malformed refresh token")

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func randomHex(n int) (string, error) {
	b, err := randomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewTokenID returns a 32-char hex refresh-token row id.
func NewTokenID() (string, error) {
	return randomHex(tokenIDSize)
}

// NewSessionID returns a 32-char hex id shared by every token in a rotation chain.
func NewSessionID() (string, error) {
	return randomHex(sessionIDSize)
}

// NewCSRFToken returns a 64-char hex token.
func NewCSRFToken() (string, error) {
	return randomHex(csrfTokenSize)
}

// NewChallengeID returns an opaque base64url id for a pending 2FA login.
func NewChallengeID() (string, error) {
	b, err := randomBytes(challengeIDSize)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewRefreshToken returns 64 random bytes encoded base64url without padding.
func NewRefreshToken() (string, error) {
	b, err := randomBytes(refreshTokenRawSize)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeRefreshToken checks that token is a well-formed raw refresh token
// and returns its bytes.
func DecodeRefreshToken(token string) ([]byte, error) {
	if len(token) != base64.RawURLEncoding.EncodedLen(refreshTokenRawSize) {
		return nil, ErrMalformedToken
	}
	raw, err := base64.RawURLEncoding.Strict().DecodeString(token)
	if err != nil || len(raw) != refreshTokenRawSize {
		return nil, ErrMalformedToken
	}
	return raw, nil
}
