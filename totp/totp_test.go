package totp

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// base32 of the RFC 6238 SHA1 seed "12345678901234567890"
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func newTestGenerator(t *testing.T, cfg Config) *Generator {
	t.Helper()
	if cfg.Issuer == "" {
		cfg.Issuer = "SecureBank"
	}
	g, err := NewGenerator(cfg)
	if err != nil {
		t.Fatalf("NewGenerator error: %v", err)
	}
	return g
}

func TestValidateRFCVectorsSHA1(t *testing.T) {
	g := newTestGenerator(t, Config{Skew: 0})

	vectors := []struct {
		unix int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
		{20000000000, "353130"},
	}
	for _, v := range vectors {
		ok, err := g.ValidateAt(rfcSecret, v.code, time.Unix(v.unix, 0))
		if err != nil {
			t.Fatalf("ValidateAt(%d) error: %v", v.unix, err)
		}
		if !ok {
			t.Fatalf("expected code %s at %d to validate", v.code, v.unix)
		}
	}
}

func TestValidateDriftWindow(t *testing.T) {
	g := newTestGenerator(t, Config{Skew: 1})
	now := time.Unix(1_700_000_000, 0)

	prev, err := g.CodeAt(rfcSecret, now.Add(-30*time.Second))
	if err != nil {
		t.Fatalf("CodeAt error: %v", err)
	}
	next, err := g.CodeAt(rfcSecret, now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("CodeAt error: %v", err)
	}
	far, err := g.CodeAt(rfcSecret, now.Add(-90*time.Second))
	if err != nil {
		t.Fatalf("CodeAt error: %v", err)
	}

	for _, code := range []string{prev, next} {
		ok, err := g.ValidateAt(rfcSecret, code, now)
		if err != nil || !ok {
			t.Fatalf("expected adjacent step code %s to validate (%v)", code, err)
		}
	}
	if far != prev && far != next {
		ok, _ := g.ValidateAt(rfcSecret, far, now)
		if ok {
			t.Fatal("expected code three steps back to be rejected")
		}
	}
}

func TestValidateRejectsMalformedCodes(t *testing.T) {
	g := newTestGenerator(t, Config{})
	at := time.Unix(59, 0)

	for _, code := range []string{"", "28708", "2870823", "28708a", "abcdef"} {
		ok, err := g.ValidateAt(rfcSecret, code, at)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", code, err)
		}
		if ok {
			t.Fatalf("expected %q to be rejected", code)
		}
	}
}

func TestValidateInvalidSecret(t *testing.T) {
	g := newTestGenerator(t, Config{})
	if _, err := g.ValidateAt("not-base32!", "123456", time.Now()); !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("expected ErrInvalidSecret, got %v", err)
	}
}

func TestGenerateProducesProvisioningArtifacts(t *testing.T) {
	g := newTestGenerator(t, Config{})

	key, err := g.Generate("john@bank.com")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(key.Secret) != 32 {
		t.Fatalf("expected 32 base32 chars for a 20-byte secret, got %d", len(key.Secret))
	}
	if !strings.HasPrefix(key.ProvisioningURI, "otpauth://totp/SecureBank:") {
		t.Fatalf("unexpected provisioning uri: %s", key.ProvisioningURI)
	}
	if !strings.Contains(key.ProvisioningURI, "secret="+key.Secret) {
		t.Fatalf("provisioning uri missing secret: %s", key.ProvisioningURI)
	}
	if !strings.HasPrefix(key.QRCodeDataURL, "data:image/png;base64,") {
		t.Fatalf("unexpected qr data url prefix: %.40s", key.QRCodeDataURL)
	}

	code, err := g.CodeAt(key.Secret, time.Now())
	if err != nil {
		t.Fatalf("CodeAt error: %v", err)
	}
	ok, err := g.Validate(key.Secret, code)
	if err != nil || !ok {
		t.Fatalf("expected generated secret to validate its own code (%v)", err)
	}
}

func TestNewGeneratorValidation(t *testing.T) {
	cases := []Config{
		{},
		{Issuer: "x", Digits: 7},
		{Issuer: "x", Skew: 3},
	}
	for _, cfg := range cases {
		if _, err := NewGenerator(cfg); err == nil {
			t.Fatalf("expected config %+v to be rejected", cfg)
		}
	}
}
