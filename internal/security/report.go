package security

import "time"

// Report is a read-only summary of the hardening settings in effect.
type Report struct {
	ProductionMode   bool          `json:"productionMode"`
	SigningAlgorithm string        `json:"signingAlgorithm"`
	AccessTTL        time.Duration `json:"accessTtl"`
	RefreshTTL       time.Duration `json:"refreshTtl"`
	BcryptCost       int           `json:"bcryptCost"`
	PepperMigration  bool          `json:"pepperMigration"`

	LockoutThreshold int           `json:"lockoutThreshold"`
	LockoutDuration  time.Duration `json:"lockoutDuration"`
	LoginRateLimit   int           `json:"loginRateLimit"`
	LoginRateWindow  time.Duration `json:"loginRateWindow"`

	TwoFactorSecretsSealed bool `json:"twoFactorSecretsSealed"`
	RefreshSweepEnabled    bool `json:"refreshSweepEnabled"`
	SecureCookies          bool `json:"secureCookies"`
	StrictSameSite         bool `json:"strictSameSite"`
	AuditTrailEnabled      bool `json:"auditTrailEnabled"`
	CredentialCache        bool `json:"credentialCache"`

	Warnings []string `json:"warnings,omitempty"`
}

type ReportInput struct {
	ProductionMode   bool
	SigningAlgorithm string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	BcryptCost       int
	Pepper           bool

	LockoutThreshold int
	LockoutDuration  time.Duration
	LoginMax         int
	LoginWindow      time.Duration

	EncryptionKeyBytes int
	SweepInterval      time.Duration
	CookieSecure       bool
	CookieSameSite     string
	AuditEnabled       bool
	CacheEnabled       bool
	CacheTTL           time.Duration
}

// Recommended floors below which BuildReport adds a warning.
const (
	RecommendedBcryptCost = 12
	MaxRecommendedAccess  = time.Hour
)

func BuildReport(in ReportInput) Report {
	r := Report{
		ProductionMode:         in.ProductionMode,
		SigningAlgorithm:       in.SigningAlgorithm,
		AccessTTL:              in.AccessTTL,
		RefreshTTL:             in.RefreshTTL,
		BcryptCost:             in.BcryptCost,
		PepperMigration:        in.Pepper,
		LockoutThreshold:       in.LockoutThreshold,
		LockoutDuration:        in.LockoutDuration,
		LoginRateLimit:         in.LoginMax,
		LoginRateWindow:        in.LoginWindow,
		TwoFactorSecretsSealed: in.EncryptionKeyBytes == 32,
		RefreshSweepEnabled:    in.SweepInterval > 0,
		SecureCookies:          in.CookieSecure,
		StrictSameSite:         in.CookieSameSite == "strict",
		AuditTrailEnabled:      in.AuditEnabled,
		CredentialCache:        in.CacheEnabled,
	}

	warn := func(msg string) { r.Warnings = append(r.Warnings, msg) }
	if !in.ProductionMode {
		warn("production mode is off")
	}
	if in.BcryptCost < RecommendedBcryptCost {
		warn("bcrypt cost below recommended floor")
	}
	if in.AccessTTL > MaxRecommendedAccess {
		warn("access tokens live longer than one hour")
	}
	if !in.CookieSecure {
		warn("session cookies are sent over plain HTTP")
	}
	if !r.StrictSameSite {
		warn("session cookies are not SameSite=Strict")
	}
	if !r.RefreshSweepEnabled {
		warn("expired refresh tokens are never purged")
	}
	if !in.AuditEnabled {
		warn("security events are not recorded")
	}
	if in.CacheEnabled && in.CacheTTL > time.Minute {
		warn("credential cache may serve stale 2FA state for over a minute")
	}
	return r
}
