package bankauth

import (
	"net/http"

	internalsecurity "github.com/MrEthical07/bankauth/internal/security"
)

// SecurityReport summarizes the hardening settings of a Config, with a
// warning for each setting weaker than recommended.
type SecurityReport = internalsecurity.Report

// SecurityReport describes the engine's effective configuration.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return ReportFor(e.config)
}

// ReportFor builds a SecurityReport without constructing an Engine.
func ReportFor(cfg Config) SecurityReport {
	sameSite := "lax"
	switch cfg.Cookie.SameSite {
	case http.SameSiteStrictMode:
		sameSite = "strict"
	case http.SameSiteNoneMode:
		sameSite = "none"
	}

	return internalsecurity.BuildReport(internalsecurity.ReportInput{
		ProductionMode:     cfg.Security.ProductionMode,
		SigningAlgorithm:   "HS256",
		AccessTTL:          cfg.JWT.AccessTTL,
		RefreshTTL:         cfg.Refresh.TTL,
		BcryptCost:         cfg.Password.BcryptCost,
		Pepper:             cfg.Password.Pepper != "",
		LockoutThreshold:   cfg.Lockout.Threshold,
		LockoutDuration:    cfg.Lockout.Duration,
		LoginMax:           cfg.RateLimit.LoginMax,
		LoginWindow:        cfg.RateLimit.LoginWindow,
		EncryptionKeyBytes: len(cfg.TwoFactor.EncryptionKey),
		SweepInterval:      cfg.Refresh.SweepInterval,
		CookieSecure:       cfg.Cookie.Secure,
		CookieSameSite:     sameSite,
		AuditEnabled:       cfg.Audit.Enabled,
		CacheEnabled:       cfg.Cache.Enabled,
		CacheTTL:           cfg.Cache.TTL,
	})
}
