package bankauth

import (
	"io"

	internalaudit "github.com/MrEthical07/bankauth/internal/audit"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SecurityEvent is a structured security record emitted by the engine.
type SecurityEvent = internalaudit.Event

// Severity grades a SecurityEvent.
type Severity = internalaudit.Severity

const (
	SeverityLow      = internalaudit.SeverityLow
	SeverityMedium   = internalaudit.SeverityMedium
	SeverityHigh     = internalaudit.SeverityHigh
	SeverityCritical = internalaudit.SeverityCritical
)

// Security event types.
const (
	EventLogin              = "login"
	EventLogout             = "logout"
	EventFailedLogin        = "failed_login"
	EventTransaction        = "transaction"
	EventAdminAction        = "admin_action"
	EventSuspiciousActivity = "suspicious_activity"
	EventAccountLocked      = "account_locked"
	EventTwoFactorRequired  = "two_factor_required"
	EventTwoFactorSetup     = "two_factor_setup"
	EventTwoFactorEnabled   = "two_factor_enabled"
	EventTwoFactorFailed    = "two_factor_failed"
	EventRefresh            = "refresh"
	EventRefreshReuse       = "refresh_reuse"
	EventRateLimited        = "rate_limited"
	EventCSRFRejected       = "csrf_rejected"
)

// AuditSink receives SecurityEvents from the engine's dispatcher.
type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink

type ChannelSink = internalaudit.ChannelSink

type JSONWriterSink = internalaudit.JSONWriterSink

// MultiSink fans every event out to each member.
type MultiSink = internalaudit.MultiSink

// RedisListSink keeps the most recent events in a capped Redis list.
type RedisListSink = internalaudit.RedisListSink

// ZapSink logs every event through zap.
type ZapSink = internalaudit.ZapSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewRedisListSink creates a sink that LPUSHes to key and trims to capacity.
func NewRedisListSink(rdb redis.UniversalClient, key string, capacity int, logger *zap.Logger) *RedisListSink {
	return internalaudit.NewRedisListSink(rdb, key, capacity, logger)
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
