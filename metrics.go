package bankauth

import internalmetrics "github.com/MrEthical07/bankauth/internal/metrics"

// MetricID identifies a counter or histogram in the engine's metrics.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess         = internalmetrics.MetricLoginSuccess
	MetricLoginFailure         = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited     = internalmetrics.MetricLoginRateLimited
	MetricLoginLocked          = internalmetrics.MetricLoginLocked
	MetricLockoutTriggered     = internalmetrics.MetricLockoutTriggered
	MetricPasswordRehashed     = internalmetrics.MetricPasswordRehashed
	MetricTwoFactorRequired    = internalmetrics.MetricTwoFactorRequired
	MetricTwoFactorSuccess     = internalmetrics.MetricTwoFactorSuccess
	MetricTwoFactorFailure     = internalmetrics.MetricTwoFactorFailure
	MetricTwoFactorRateLimited = internalmetrics.MetricTwoFactorRateLimited
	MetricTwoFactorSetup       = internalmetrics.MetricTwoFactorSetup
	MetricTwoFactorEnabled     = internalmetrics.MetricTwoFactorEnabled
	MetricSessionCreated       = internalmetrics.MetricSessionCreated
	MetricRefreshSuccess       = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure       = internalmetrics.MetricRefreshFailure
	MetricRefreshReuseDetected = internalmetrics.MetricRefreshReuseDetected
	MetricRefreshPurged        = internalmetrics.MetricRefreshPurged
	MetricLogout               = internalmetrics.MetricLogout
	MetricCSRFRejected         = internalmetrics.MetricCSRFRejected
	MetricRateLimitHit         = internalmetrics.MetricRateLimitHit
	MetricAdminUserCreated     = internalmetrics.MetricAdminUserCreated
	MetricValidateLatency      = internalmetrics.MetricValidateLatency
	MetricLoginLatency         = internalmetrics.MetricLoginLatency

	metricIDCount = internalmetrics.MetricIDCount
)

// Metrics holds lock-free counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics]. When cfg.Enabled is false every operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}
