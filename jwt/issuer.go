package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultTTL is the access-token lifetime when Config.TTL is zero.
	DefaultTTL = 30 * time.Minute
	// MinSecretBytes is the shortest HS256 secret accepted in strict mode.
	MinSecretBytes = 32
)

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures, wrong algorithms and wrong issuers.
	ErrTokenInvalid = errors.New("access token invalid")
	// ErrTokenExpired is returned once exp (plus leeway) has passed.
	ErrTokenExpired = errors.New("access token expired")
	// ErrAudienceMismatch is returned when aud does not contain the configured audience.
	ErrAudienceMismatch = errors.New("access token audience mismatch")
)

// Config holds the signing parameters. The secret is read once at construction.
type Config struct {
	Secret   []byte
	TTL      time.Duration
	Issuer   string
	Audience string
	Leeway   time.Duration
	// Strict enforces MinSecretBytes.
	Strict bool
}

// Subject is the identity encoded into an access token.
type Subject struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
	// EnrollmentRequired marks an admin that has not completed 2FA enrollment.
	EnrollmentRequired bool
}

// Claims is the decoded access-token payload.
type Claims struct {
	Email              string `json:"email"`
	Role               string `json:"role"`
	SID                string `json:"sid,omitempty"`
	EnrollmentRequired bool   `json:"enroll,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the sub claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	config Config
	now    func() time.Time
}

// NewIssuer validates cfg. TTL defaults to DefaultTTL.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret must be set")
	}
	if cfg.Strict && len(cfg.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretBytes)
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("jwt issuer and audience must be set")
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	return &Issuer{config: cfg, now: time.Now}, nil
}

// TTL returns the configured lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.config.TTL
}

// Sign issues a token for s and returns it with its expiry.
func (i *Issuer) Sign(s Subject) (string, time.Time, error) {
	if s.UserID == "" {
		return "", time.Time{}, errors.New("jwt subject must be set")
	}

	now := i.now()
	exp := now.Add(i.config.TTL)
	claims := Claims{
		Email:              s.Email,
		Role:               s.Role,
		SID:                s.SessionID,
		EnrollmentRequired: s.EnrollmentRequired,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			Issuer:    i.config.Issuer,
			Audience:  jwt.ClaimStrings{i.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses token and classifies failures into ErrTokenInvalid,
// ErrAudienceMismatch or ErrTokenExpired.
func (i *Issuer) Verify(token string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithAudience(i.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(i.config.Leeway))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return i.config.Secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrTokenInvalid
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudienceMismatch
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}
