package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"APP_ENV", "LOG_LEVEL", "HTTP_ADDR", "PORT", "DATABASE_URL",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"JWT_SECRET", "JWT_ISSUER", "JWT_AUDIENCE", "JWT_EXPIRES_IN",
	"REFRESH_TOKEN_SECRET", "REFRESH_TOKEN_TTL_DAYS",
	"MFA_SECRET_KEY", "BCRYPT_COST", "PASSWORD_PEPPER", "COOKIE_SECURE",
	"TRUSTED_PROXIES",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", strings.Repeat("j", 32))
	t.Setenv("REFRESH_TOKEN_SECRET", strings.Repeat("r", 32))
	t.Setenv("MFA_SECRET_KEY", strings.Repeat("ab", 32))
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dev", c.App.Env)
	assert.Equal(t, ":3000", c.HTTP.Addr)
	assert.Equal(t, 30*time.Minute, c.JWT.ExpiresIn)
	assert.Equal(t, 30, c.Refresh.TTLDays)
	assert.Equal(t, 5, c.Lockout.Threshold)
	assert.Equal(t, 10, c.RateLimit.LoginMax)
	assert.True(t, c.Cookie.Secure)
	assert.False(t, c.IsProd())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bankauth.yaml")
	yml := `
app:
  env: staging
  log_level: debug
http:
  addr: ":8080"
  throttle_rps: 5
  throttle_burst: 10
  trusted_proxies: ["10.0.0.0/8"]
redis:
  addr: "redis:6379"
jwt:
  expires_in: 15m
lockout:
  threshold: 3
  duration: 10m
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("JWT_EXPIRES_IN", "20m")
	t.Setenv("REFRESH_TOKEN_TTL_DAYS", "7")
	t.Setenv("COOKIE_SECURE", "false")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.App.Env)
	assert.Equal(t, "debug", c.App.LogLevel)
	assert.Equal(t, ":9090", c.HTTP.Addr, "env beats file")
	assert.Equal(t, 5.0, c.HTTP.ThrottleRPS)
	assert.Equal(t, []string{"10.0.0.0/8"}, c.HTTP.TrustedProxies)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.Equal(t, 2, c.Redis.DB)
	assert.Equal(t, 20*time.Minute, c.JWT.ExpiresIn)
	assert.Equal(t, 7, c.Refresh.TTLDays)
	assert.Equal(t, 3, c.Lockout.Threshold)
	assert.Equal(t, 10*time.Minute, c.Lockout.Duration)
	assert.False(t, c.Cookie.Secure)
}

func TestLoadRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad int", env: map[string]string{"REDIS_DB": "two"}},
		{name: "bad bool", env: map[string]string{"COOKIE_SECURE": "maybe"}},
		{name: "bad duration", env: map[string]string{"JWT_EXPIRES_IN": "soon"}},
		{name: "bad env", env: map[string]string{"APP_ENV": "moon"}},
		{name: "short mfa key", env: map[string]string{"MFA_SECRET_KEY": "abcd"}},
		{name: "bad trusted proxy", env: map[string]string{"TRUSTED_PROXIES": "10.0.0.0/8,edge-lb"}},
		{name: "non-hex mfa key", env: map[string]string{"MFA_SECRET_KEY": strings.Repeat("zz", 32)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}

	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTrustedProxiesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,192.168.1.1 ")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, c.HTTP.TrustedProxies)

	clearEnv(t)
	c, err = Load("")
	require.NoError(t, err)
	assert.Empty(t, c.HTTP.TrustedProxies, "no proxy is trusted by default")
}

func TestToEngineConfig(t *testing.T) {
	clearEnv(t)
	setSecrets(t)
	t.Setenv("APP_ENV", "PROD")
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("PASSWORD_PEPPER", "legacy")
	t.Setenv("JWT_EXPIRES_IN", "1800s")

	c, err := Load("")
	require.NoError(t, err)
	require.True(t, c.IsProd())

	eng, err := c.ToEngineConfig()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, eng.JWT.AccessTTL)
	assert.Equal(t, "securebank", eng.JWT.Issuer)
	assert.Equal(t, 30*24*time.Hour, eng.Refresh.TTL)
	assert.Len(t, eng.TwoFactor.EncryptionKey, 32)
	assert.Equal(t, byte(0xab), eng.TwoFactor.EncryptionKey[0])
	assert.Equal(t, 10, eng.Password.BcryptCost)
	assert.Equal(t, "legacy", eng.Password.Pepper)
	assert.True(t, eng.Security.ProductionMode)
	assert.True(t, eng.Cookie.Secure)
}

func TestToEngineConfigRequiresSecrets(t *testing.T) {
	clearEnv(t)

	c, err := Load("")
	require.NoError(t, err)
	_, err = c.ToEngineConfig()
	assert.Error(t, err, "missing MFA key")

	t.Setenv("MFA_SECRET_KEY", strings.Repeat("ab", 32))
	c, err = Load("")
	require.NoError(t, err)
	_, err = c.ToEngineConfig()
	assert.Error(t, err, "missing JWT secret")

	setSecrets(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("COOKIE_SECURE", "false")
	c, err = Load("")
	require.NoError(t, err)
	_, err = c.ToEngineConfig()
	assert.Error(t, err, "insecure cookies in production")
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("7d")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)

	d, err = parseDuration(" 45m ")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, d)

	_, err = parseDuration("0d")
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that is present, even when empty.
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=warn\n"), 0o600))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"), path))
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", c.App.LogLevel)
}
