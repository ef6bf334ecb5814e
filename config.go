package bankauth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/bankauth/internal/audit"
	"github.com/MrEthical07/bankauth/jwt"
	"github.com/MrEthical07/bankauth/password"
	"github.com/MrEthical07/bankauth/refresh"
	"github.com/MrEthical07/bankauth/secretbox"
)

// Config holds every tunable of the Engine. Build it with [DefaultConfig]
// and override fields; the Engine keeps its own copy.
type Config struct {
	JWT       JWTConfig
	Refresh   RefreshConfig
	Password  PasswordConfig
	Lockout   LockoutConfig
	RateLimit RateLimitConfig
	TwoFactor TwoFactorConfig
	CSRF      CSRFConfig
	Cookie    CookieConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Security  SecurityConfig
	Cache     CacheConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// JWTConfig configures HS256 access tokens.
type JWTConfig struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

// RefreshConfig configures the refresh-token ledger.
type RefreshConfig struct {
	// Secret keys the HMAC digest stored in place of the raw token.
	Secret        []byte
	TTL           time.Duration
	SweepInterval time.Duration
}

/*
====================================
CREDENTIAL CONFIG
====================================
*/

// PasswordConfig configures hashing and pepper migration.
type PasswordConfig struct {
	BcryptCost int
	// Pepper only verifies hashes written before it was dropped.
	Pepper string
}

// LockoutConfig configures per-email lockout.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
	Retention time.Duration
}

// RateLimitConfig configures the fixed-window login budget per client IP.
type RateLimitConfig struct {
	LoginMax    int
	LoginWindow time.Duration
}

// TwoFactorConfig configures TOTP enrollment and the login challenge.
type TwoFactorConfig struct {
	Issuer string
	// EncryptionKey is the 32-byte AES-256-GCM key sealing stored secrets.
	EncryptionKey []byte
	Period        uint
	Skew          uint

	PendingTTL         time.Duration
	ChallengeAttempts  int
	SetupMaxAttempts   int
	SetupCooldown      time.Duration
	PendingRedisPrefix string
}

/*
====================================
HTTP-FACING CONFIG
====================================
*/

// CSRFConfig configures the double-submit token.
type CSRFConfig struct {
	HeaderName  string
	RedisPrefix string
}

// CookieConfig names and flags the cookies written by httpapi.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	CSRFName    string
	Domain      string
	Path        string
	Secure      bool
	SameSite    http.SameSite
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig configures security-event dispatch.
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	// DropIfFull sheds low-severity events while the buffer is full. Failed
	// logins, lockouts and rate-limit breaches are never shed; Login waits
	// for room instead.
	DropIfFull  bool
	MinSeverity audit.Severity
	// EventListKey is the capped Redis list holding recent events. Empty disables it.
	EventListKey string
	EventListCap int
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SecurityConfig holds environment-wide switches.
type SecurityConfig struct {
	// ProductionMode enforces secret lengths and secure cookies.
	ProductionMode bool
}

// CacheConfig configures the optional in-process user cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. Secrets are left empty.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: jwt.DefaultTTL,
			Issuer:    "securebank",
			Audience:  "securebank-users",
			Leeway:    5 * time.Second,
		},
		Refresh: RefreshConfig{
			TTL:           refresh.DefaultTTL,
			SweepInterval: refresh.DefaultSweepInterval,
		},
		Password: PasswordConfig{
			BcryptCost: password.DefaultCost,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  15 * time.Minute,
			Retention: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			LoginMax:    10,
			LoginWindow: time.Minute,
		},
		TwoFactor: TwoFactorConfig{
			Issuer:             "SecureBank",
			Period:             30,
			Skew:               1,
			PendingTTL:         5 * time.Minute,
			ChallengeAttempts:  5,
			SetupMaxAttempts:   5,
			SetupCooldown:      5 * time.Minute,
			PendingRedisPrefix: "bptf",
		},
		CSRF: CSRFConfig{
			HeaderName:  "X-CSRF-Token",
			RedisPrefix: "bcsrf",
		},
		Cookie: CookieConfig{
			AccessName:  "auth_token",
			RefreshName: "refresh_token",
			CSRFName:    "csrf_token",
			Path:        "/",
			Secure:      true,
			SameSite:    http.SameSiteStrictMode,
		},
		Audit: AuditConfig{
			Enabled:      true,
			BufferSize:   1024,
			DropIfFull:   true,
			EventListKey: "bsec:events",
			EventListCap: 1000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Security: SecurityConfig{
			ProductionMode: true,
		},
		Cache: CacheConfig{
			Enabled: false,
			TTL:     30 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.Refresh.Secret = cloneBytes(cfg.Refresh.Secret)
	out.TwoFactor.EncryptionKey = cloneBytes(cfg.TwoFactor.EncryptionKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT Secret must be set")
	}
	if c.Security.ProductionMode && len(c.JWT.Secret) < jwt.MinSecretBytes {
		return fmt.Errorf("JWT Secret must be at least %d bytes in production mode", jwt.MinSecretBytes)
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" || strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Issuer and Audience must be set")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > time.Minute {
		return errors.New("JWT Leeway must be between 0 and 1m")
	}

	// Refresh
	if len(c.Refresh.Secret) < refresh.MinSecretBytes {
		return fmt.Errorf("Refresh Secret must be at least %d bytes", refresh.MinSecretBytes)
	}
	if c.Refresh.TTL < time.Minute {
		return errors.New("Refresh TTL must be >= 1m")
	}
	if c.Refresh.TTL <= c.JWT.AccessTTL {
		return errors.New("Refresh TTL must exceed JWT AccessTTL")
	}
	if c.Refresh.SweepInterval < 0 {
		return errors.New("Refresh SweepInterval must be >= 0")
	}

	// Password
	if c.Password.BcryptCost < password.MinCost || c.Password.BcryptCost > password.MaxCost {
		return fmt.Errorf("Password BcryptCost must be between %d and %d", password.MinCost, password.MaxCost)
	}

	// Lockout and rate limit
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}
	if c.Lockout.Retention < c.Lockout.Duration {
		return errors.New("Lockout Retention must be >= Duration")
	}
	if c.RateLimit.LoginMax <= 0 {
		return errors.New("RateLimit LoginMax must be > 0")
	}
	if c.RateLimit.LoginWindow < time.Second {
		return errors.New("RateLimit LoginWindow must be >= 1s")
	}

	// Two-factor
	if len(c.TwoFactor.EncryptionKey) != secretbox.KeySize {
		return fmt.Errorf("TwoFactor EncryptionKey must be %d bytes", secretbox.KeySize)
	}
	if strings.TrimSpace(c.TwoFactor.Issuer) == "" {
		return errors.New("TwoFactor Issuer must be set")
	}
	if c.TwoFactor.Skew > 2 {
		return errors.New("TwoFactor Skew must be <= 2")
	}
	if c.TwoFactor.PendingTTL <= 0 || c.TwoFactor.PendingTTL > 15*time.Minute {
		return errors.New("TwoFactor PendingTTL must be > 0 and <= 15m")
	}
	if c.TwoFactor.ChallengeAttempts <= 0 {
		return errors.New("TwoFactor ChallengeAttempts must be > 0")
	}
	if c.TwoFactor.SetupMaxAttempts <= 0 || c.TwoFactor.SetupCooldown <= 0 {
		return errors.New("TwoFactor SetupMaxAttempts and SetupCooldown must be > 0")
	}

	// CSRF and cookies
	if strings.TrimSpace(c.CSRF.HeaderName) == "" {
		return errors.New("CSRF HeaderName must be set")
	}
	if c.Cookie.AccessName == "" || c.Cookie.RefreshName == "" || c.Cookie.CSRFName == "" {
		return errors.New("Cookie names must be set")
	}
	if c.Cookie.AccessName == c.Cookie.RefreshName {
		return errors.New("Cookie AccessName and RefreshName must differ")
	}
	if c.Security.ProductionMode && !c.Cookie.Secure {
		return errors.New("Cookie Secure must be true in production mode")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.EventListCap < 0 {
		return errors.New("Audit EventListCap must be >= 0")
	}
	switch c.Audit.MinSeverity {
	case "", audit.SeverityLow, audit.SeverityMedium, audit.SeverityHigh, audit.SeverityCritical:
	default:
		return errors.New("Audit MinSeverity is invalid")
	}

	// Cache
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return errors.New("Cache TTL must be > 0 when enabled")
	}

	return nil
}
