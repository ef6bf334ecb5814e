// Package totp generates and validates RFC 6238 time-based one-time passwords.
//
// Secrets are handled as base32 strings (no padding), the form authenticator
// apps expect inside an otpauth:// URI. Callers decide where the secret lives;
// this package never stores it.
package totp

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	pqtotp "github.com/pquerna/otp/totp"
)

const (
	// DefaultPeriod is the step length in seconds.
	DefaultPeriod = 30
	// DefaultDigits is the code length.
	DefaultDigits = 6
	// DefaultSkew accepts one step either side of now.
	DefaultSkew = 1

	qrSize = 200
)

// ErrInvalidSecret is returned when a stored secret is not valid base32.
var ErrInvalidSecret = errors.New("totp: invalid secret")

// Config controls code generation and validation.
type Config struct {
	Issuer string
	Period uint
	Digits int
	Skew   uint
}

// Key is a freshly generated secret with its provisioning artifacts.
type Key struct {
	Secret          string
	ProvisioningURI string
	QRCodeDataURL   string
}

// Generator creates and checks codes for one issuer. Safe for concurrent use.
type Generator struct {
	config Config
	digits otp.Digits
	now    func() time.Time
}

// NewGenerator fills defaults and validates cfg.
func NewGenerator(cfg Config) (*Generator, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("totp issuer must be set")
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Digits == 0 {
		cfg.Digits = DefaultDigits
	}
	if cfg.Digits != 6 && cfg.Digits != 8 {
		return nil, errors.New("totp digits must be 6 or 8")
	}
	if cfg.Skew > 2 {
		return nil, errors.New("totp skew must be <= 2")
	}

	digits := otp.DigitsSix
	if cfg.Digits == 8 {
		digits = otp.DigitsEight
	}
	return &Generator{config: cfg, digits: digits, now: time.Now}, nil
}

// Generate creates a new random secret for account and renders its QR code.
func (g *Generator) Generate(account string) (*Key, error) {
	key, err := pqtotp.Generate(pqtotp.GenerateOpts{
		Issuer:      g.config.Issuer,
		AccountName: account,
		Period:      g.config.Period,
		Digits:      g.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("totp generate: %w", err)
	}

	qr, err := qrDataURL(key)
	if err != nil {
		return nil, err
	}

	return &Key{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRCodeDataURL:   qr,
	}, nil
}

// Validate reports whether code matches secret at the current time,
// allowing Skew steps of drift.
func (g *Generator) Validate(secret, code string) (bool, error) {
	return g.ValidateAt(secret, code, g.now())
}

// ValidateAt is Validate against an explicit instant.
func (g *Generator) ValidateAt(secret, code string, at time.Time) (bool, error) {
	code = strings.TrimSpace(code)
	if len(code) != g.config.Digits || !isNumeric(code) {
		return false, nil
	}

	ok, err := pqtotp.ValidateCustom(code, secret, at, pqtotp.ValidateOpts{
		Period:    g.config.Period,
		Skew:      g.config.Skew,
		Digits:    g.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
	switch {
	case errors.Is(err, otp.ErrValidateSecretInvalidBase32):
		return false, ErrInvalidSecret
	case errors.Is(err, otp.ErrValidateInputInvalidLength):
		return false, nil
	case err != nil:
		return false, err
	}
	return ok, nil
}

// CodeAt returns the code for secret at instant at.
func (g *Generator) CodeAt(secret string, at time.Time) (string, error) {
	code, err := pqtotp.GenerateCodeCustom(secret, at, pqtotp.ValidateOpts{
		Period:    g.config.Period,
		Digits:    g.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if errors.Is(err, otp.ErrValidateSecretInvalidBase32) {
		return "", ErrInvalidSecret
	}
	return code, err
}

func qrDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", fmt.Errorf("totp qr image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("totp qr encode: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
