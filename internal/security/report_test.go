package security

import (
	"testing"
	"time"
)

func hardened() ReportInput {
	return ReportInput{
		ProductionMode:     true,
		SigningAlgorithm:   "HS256",
		AccessTTL:          30 * time.Minute,
		RefreshTTL:         30 * 24 * time.Hour,
		BcryptCost:         12,
		LockoutThreshold:   5,
		LockoutDuration:    15 * time.Minute,
		LoginMax:           10,
		LoginWindow:        time.Minute,
		EncryptionKeyBytes: 32,
		SweepInterval:      time.Hour,
		CookieSecure:       true,
		CookieSameSite:     "strict",
		AuditEnabled:       true,
	}
}

func TestBuildReportHardened(t *testing.T) {
	r := BuildReport(hardened())
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", r.Warnings)
	}
	if !r.TwoFactorSecretsSealed || !r.RefreshSweepEnabled || !r.StrictSameSite {
		t.Fatalf("unexpected report: %+v", r)
	}
}

func TestBuildReportWarnings(t *testing.T) {
	in := hardened()
	in.ProductionMode = false
	in.BcryptCost = 10
	in.AccessTTL = 2 * time.Hour
	in.CookieSecure = false
	in.CookieSameSite = "lax"
	in.SweepInterval = 0
	in.AuditEnabled = false
	in.CacheEnabled = true
	in.CacheTTL = 5 * time.Minute

	r := BuildReport(in)
	if len(r.Warnings) != 8 {
		t.Fatalf("expected 8 warnings, got %d: %v", len(r.Warnings), r.Warnings)
	}
	if r.StrictSameSite || r.RefreshSweepEnabled || r.SecureCookies {
		t.Fatalf("unexpected report: %+v", r)
	}
}
