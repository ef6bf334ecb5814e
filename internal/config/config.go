package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/bankauth"
	"github.com/MrEthical07/bankauth/middleware"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the service configuration read by bankauthd. Secrets are
// expected from the environment rather than the YAML file.
type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	HTTP struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		IdleTimeout     time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		// Per-IP token bucket in front of every route. Zero disables it.
		ThrottleRPS   float64 `yaml:"throttle_rps"`
		ThrottleBurst int     `yaml:"throttle_burst"`
		// CIDRs of reverse proxies whose forwarding headers are believed.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"http"`

	Database struct {
		URL      string `yaml:"url"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	JWT struct {
		Secret    string        `yaml:"secret"`
		Issuer    string        `yaml:"issuer"`
		Audience  string        `yaml:"audience"`
		ExpiresIn time.Duration `yaml:"expires_in"`
	} `yaml:"jwt"`

	Refresh struct {
		Secret        string        `yaml:"secret"`
		TTLDays       int           `yaml:"ttl_days"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"refresh"`

	MFA struct {
		// SecretKey is 64 hex characters (AES-256).
		SecretKey string `yaml:"secret_key"`
		Issuer    string `yaml:"issuer"`
	} `yaml:"mfa"`

	Password struct {
		BcryptCost int    `yaml:"bcrypt_cost"`
		Pepper     string `yaml:"pepper"`
	} `yaml:"password"`

	Lockout struct {
		Threshold int           `yaml:"threshold"`
		Duration  time.Duration `yaml:"duration"`
	} `yaml:"lockout"`

	RateLimit struct {
		LoginMax    int           `yaml:"login_max"`
		LoginWindow time.Duration `yaml:"login_window"`
	} `yaml:"rate_limit"`

	Cookie struct {
		Secure bool   `yaml:"secure"`
		Domain string `yaml:"domain"`
	} `yaml:"cookie"`

	Audit struct {
		EventListCap int `yaml:"event_list_cap"`
	} `yaml:"audit"`

	Cache struct {
		Enabled bool          `yaml:"enabled"`
		TTL     time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
}

// Default returns the settings used when neither file nor environment sets
// a value.
func Default() *Config {
	eng := bankauth.DefaultConfig()

	var c Config
	c.App.Env = "dev"
	c.App.LogLevel = "info"
	c.HTTP.Addr = ":3000"
	c.HTTP.ReadTimeout = 10 * time.Second
	c.HTTP.WriteTimeout = 15 * time.Second
	c.HTTP.IdleTimeout = 60 * time.Second
	c.HTTP.ShutdownTimeout = 15 * time.Second
	c.HTTP.ThrottleRPS = 20
	c.HTTP.ThrottleBurst = 50
	c.Database.MaxConns = 10
	c.Redis.Addr = "localhost:6379"
	c.JWT.Issuer = eng.JWT.Issuer
	c.JWT.Audience = eng.JWT.Audience
	c.JWT.ExpiresIn = eng.JWT.AccessTTL
	c.Refresh.TTLDays = int(eng.Refresh.TTL / (24 * time.Hour))
	c.Refresh.SweepInterval = eng.Refresh.SweepInterval
	c.MFA.Issuer = eng.TwoFactor.Issuer
	c.Password.BcryptCost = eng.Password.BcryptCost
	c.Lockout.Threshold = eng.Lockout.Threshold
	c.Lockout.Duration = eng.Lockout.Duration
	c.RateLimit.LoginMax = eng.RateLimit.LoginMax
	c.RateLimit.LoginWindow = eng.RateLimit.LoginWindow
	c.Cookie.Secure = true
	c.Audit.EventListCap = eng.Audit.EventListCap
	c.Cache.TTL = eng.Cache.TTL
	return &c
}

// LoadDotEnv loads each existing file into the process environment without
// overriding variables already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := c.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// IsProd reports whether the service runs with production hardening.
func (c *Config) IsProd() bool {
	env := strings.ToLower(c.App.Env)
	return env == "prod" || env == "production"
}

// Validate checks service-level settings. Engine settings are checked by
// [Config.ToEngineConfig].
func (c *Config) Validate() error {
	switch strings.ToLower(c.App.Env) {
	case "dev", "development", "staging", "test", "prod", "production":
	default:
		return fmt.Errorf("unknown app env %q", c.App.Env)
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errors.New("http addr must be set")
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("redis addr must be set")
	}
	if c.HTTP.ThrottleRPS < 0 || (c.HTTP.ThrottleRPS > 0 && c.HTTP.ThrottleBurst <= 0) {
		return errors.New("http throttle needs a positive rate and burst")
	}
	if _, err := middleware.ParseTrustedProxies(c.HTTP.TrustedProxies); err != nil {
		return err
	}
	if c.Refresh.TTLDays <= 0 {
		return errors.New("refresh ttl_days must be > 0")
	}
	if c.MFA.SecretKey != "" {
		if _, err := c.mfaKey(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) mfaKey() ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(c.MFA.SecretKey))
	if err != nil || len(key) != 32 {
		return nil, errors.New("MFA_SECRET_KEY must be 64 hex characters")
	}
	return key, nil
}

// ToEngineConfig maps the service settings onto a validated engine config.
func (c *Config) ToEngineConfig() (bankauth.Config, error) {
	out := bankauth.DefaultConfig()

	out.JWT.Secret = []byte(c.JWT.Secret)
	out.JWT.Issuer = c.JWT.Issuer
	out.JWT.Audience = c.JWT.Audience
	out.JWT.AccessTTL = c.JWT.ExpiresIn

	out.Refresh.Secret = []byte(c.Refresh.Secret)
	out.Refresh.TTL = time.Duration(c.Refresh.TTLDays) * 24 * time.Hour
	out.Refresh.SweepInterval = c.Refresh.SweepInterval

	if c.MFA.SecretKey == "" {
		return bankauth.Config{}, errors.New("MFA_SECRET_KEY must be set")
	}
	key, err := c.mfaKey()
	if err != nil {
		return bankauth.Config{}, err
	}
	out.TwoFactor.EncryptionKey = key
	out.TwoFactor.Issuer = c.MFA.Issuer

	out.Password.BcryptCost = c.Password.BcryptCost
	out.Password.Pepper = c.Password.Pepper

	out.Lockout.Threshold = c.Lockout.Threshold
	out.Lockout.Duration = c.Lockout.Duration
	if out.Lockout.Retention < out.Lockout.Duration {
		out.Lockout.Retention = out.Lockout.Duration
	}
	out.RateLimit.LoginMax = c.RateLimit.LoginMax
	out.RateLimit.LoginWindow = c.RateLimit.LoginWindow

	out.Cookie.Secure = c.Cookie.Secure
	out.Cookie.Domain = c.Cookie.Domain
	out.Audit.EventListCap = c.Audit.EventListCap
	out.Cache.Enabled = c.Cache.Enabled
	out.Cache.TTL = c.Cache.TTL
	out.Security.ProductionMode = c.IsProd()

	if err := out.Validate(); err != nil {
		return bankauth.Config{}, fmt.Errorf("engine config: %w", err)
	}
	return out, nil
}

/* ==== ENV OVERRIDES ==== */

func (c *Config) applyEnvOverrides() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("APP_ENV", &c.App.Env)
	c.App.Env = strings.ToLower(c.App.Env)
	str("LOG_LEVEL", &c.App.LogLevel)
	str("HTTP_ADDR", &c.HTTP.Addr)
	if v, ok := os.LookupEnv("TRUSTED_PROXIES"); ok && v != "" {
		c.HTTP.TrustedProxies = c.HTTP.TrustedProxies[:0]
		for _, cidr := range strings.Split(v, ",") {
			if cidr = strings.TrimSpace(cidr); cidr != "" {
				c.HTTP.TrustedProxies = append(c.HTTP.TrustedProxies, cidr)
			}
		}
	}
	if port, ok := os.LookupEnv("PORT"); ok && port != "" && os.Getenv("HTTP_ADDR") == "" {
		c.HTTP.Addr = ":" + port
	}
	str("DATABASE_URL", &c.Database.URL)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	num("REDIS_DB", &c.Redis.DB)
	str("JWT_SECRET", &c.JWT.Secret)
	str("JWT_ISSUER", &c.JWT.Issuer)
	str("JWT_AUDIENCE", &c.JWT.Audience)
	dur("JWT_EXPIRES_IN", &c.JWT.ExpiresIn)
	str("REFRESH_TOKEN_SECRET", &c.Refresh.Secret)
	num("REFRESH_TOKEN_TTL_DAYS", &c.Refresh.TTLDays)
	str("MFA_SECRET_KEY", &c.MFA.SecretKey)
	num("BCRYPT_COST", &c.Password.BcryptCost)
	str("PASSWORD_PEPPER", &c.Password.Pepper)
	flag("COOKIE_SECURE", &c.Cookie.Secure)

	return errors.Join(errs...)
}

// parseDuration accepts Go durations ("30m") and the day suffix ("7d").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return d, nil
}
