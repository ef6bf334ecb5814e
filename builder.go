package bankauth

import (
	"errors"
	"time"

	"github.com/MrEthical07/bankauth/internal/audit"
	"github.com/MrEthical07/bankauth/internal/limiters"
	"github.com/MrEthical07/bankauth/internal/rate"
	"github.com/MrEthical07/bankauth/internal/stores"
	"github.com/MrEthical07/bankauth/jwt"
	"github.com/MrEthical07/bankauth/password"
	"github.com/MrEthical07/bankauth/refresh"
	"github.com/MrEthical07/bankauth/secretbox"
	"github.com/MrEthical07/bankauth/totp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder can be used for exactly one Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users        CredentialStore
	refreshStore refresh.Store
	auditSink    AuditSink
	logger       *zap.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for rate limits, lockout, pending logins,
// CSRF tokens and the security event list.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the user store. When Config.Cache is enabled it is
// wrapped by [NewCachedCredentialStore].
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.users = store
	return b
}

// WithRefreshStore sets the refresh-token persistence.
func (b *Builder) WithRefreshStore(store refresh.Store) *Builder {
	b.refreshStore = store
	return b
}

// WithAuditSink adds a sink next to the Redis event list.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
// Build performs no I/O.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("credential store required")
	}
	if b.refreshStore == nil {
		return nil, errors.New("refresh store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("bankauth")

	// -------- CREDENTIALS --------
	verifier, err := password.NewVerifier(password.Config{
		Cost:   cfg.Password.BcryptCost,
		Pepper: cfg.Password.Pepper,
	})
	if err != nil {
		return nil, err
	}

	users := b.users
	if cfg.Cache.Enabled {
		users = NewCachedCredentialStore(users, cfg.Cache.TTL)
	}

	// -------- TOKENS --------
	issuer, err := jwt.NewIssuer(jwt.Config{
		Secret:   cloneBytes(cfg.JWT.Secret),
		TTL:      cfg.JWT.AccessTTL,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   cfg.JWT.Leeway,
		Strict:   cfg.Security.ProductionMode,
	})
	if err != nil {
		return nil, err
	}

	ledger, err := refresh.NewLedger(b.refreshStore, refresh.Config{
		Secret: cloneBytes(cfg.Refresh.Secret),
		TTL:    cfg.Refresh.TTL,
	})
	if err != nil {
		return nil, err
	}

	// -------- TWO-FACTOR --------
	box, err := secretbox.New(cfg.TwoFactor.EncryptionKey)
	if err != nil {
		return nil, err
	}
	generator, err := totp.NewGenerator(totp.Config{
		Issuer: cfg.TwoFactor.Issuer,
		Period: cfg.TwoFactor.Period,
		Skew:   cfg.TwoFactor.Skew,
	})
	if err != nil {
		return nil, err
	}

	// -------- AUDIT --------
	var events *audit.RedisListSink
	sinks := audit.MultiSink{}
	if cfg.Audit.EventListKey != "" {
		events = audit.NewRedisListSink(b.redis, cfg.Audit.EventListKey, cfg.Audit.EventListCap, logger)
		sinks = append(sinks, events)
	}
	if b.auditSink != nil {
		sinks = append(sinks, b.auditSink)
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		redis:     b.redis,
		users:     users,
		passwords: verifier,
		decoyHash: newDecoyHash(verifier, logger),
		box:       box,
		totp:      generator,
		issuer:    issuer,
		ledger:    ledger,
		logger:    logger,
		events:    events,
		now:       time.Now,
	}

	engine.rateLimiter = rate.New(b.redis)
	engine.lockout = limiters.NewLockoutLimiter(b.redis, limiters.LockoutConfig{
		Threshold: cfg.Lockout.Threshold,
		Duration:  cfg.Lockout.Duration,
		Retention: cfg.Lockout.Retention,
	})
	engine.twoFactorLimiter = limiters.NewTwoFactorLimiter(b.redis, limiters.TwoFactorLimiterConfig{
		MaxAttempts: cfg.TwoFactor.SetupMaxAttempts,
		Cooldown:    cfg.TwoFactor.SetupCooldown,
	})
	engine.pending = stores.NewPendingLoginStore(b.redis, cfg.TwoFactor.PendingRedisPrefix)
	engine.csrf = stores.NewCSRFStore(b.redis, cfg.CSRF.RedisPrefix)
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:         cfg.Audit.Enabled,
		BufferSize:      cfg.Audit.BufferSize,
		ShedLowSeverity: cfg.Audit.DropIfFull,
		MinSeverity:     cfg.Audit.MinSeverity,
	}, sinks)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.flow = engine.buildFlows()

	b.built = true

	return engine, nil
}
