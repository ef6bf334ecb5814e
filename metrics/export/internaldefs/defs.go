package internaldefs

import (
	metrics "github.com/MrEthical07/bankauth/internal/metrics"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   metrics.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   metrics.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for security events lost to backpressure.
const AuditDroppedName = "bankauth_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: metrics.MetricLoginSuccess, Name: "bankauth_login_success_total", Help: "Fully authenticated logins."},
	{ID: metrics.MetricLoginFailure, Name: "bankauth_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: metrics.MetricLoginRateLimited, Name: "bankauth_login_rate_limited_total", Help: "Logins rejected by the per-IP budget."},
	{ID: metrics.MetricLoginLocked, Name: "bankauth_login_locked_total", Help: "Logins rejected because the account is locked."},
	{ID: metrics.MetricLockoutTriggered, Name: "bankauth_lockout_triggered_total", Help: "Accounts locked after repeated failures."},
	{ID: metrics.MetricPasswordRehashed, Name: "bankauth_password_rehashed_total", Help: "Stored credentials migrated to the current hash."},
	{ID: metrics.MetricTwoFactorRequired, Name: "bankauth_two_factor_required_total", Help: "Logins that stopped at the two-factor challenge."},
	{ID: metrics.MetricTwoFactorSuccess, Name: "bankauth_two_factor_success_total", Help: "Accepted two-factor codes."},
	{ID: metrics.MetricTwoFactorFailure, Name: "bankauth_two_factor_failure_total", Help: "Rejected two-factor codes."},
	{ID: metrics.MetricTwoFactorRateLimited, Name: "bankauth_two_factor_rate_limited_total", Help: "Two-factor attempts over budget."},
	{ID: metrics.MetricTwoFactorSetup, Name: "bankauth_two_factor_setup_total", Help: "Two-factor enrollments started."},
	{ID: metrics.MetricTwoFactorEnabled, Name: "bankauth_two_factor_enabled_total", Help: "Two-factor enrollments confirmed."},
	{ID: metrics.MetricSessionCreated, Name: "bankauth_session_created_total", Help: "Sessions issued."},
	{ID: metrics.MetricRefreshSuccess, Name: "bankauth_refresh_success_total", Help: "Successful refresh-token rotations."},
	{ID: metrics.MetricRefreshFailure, Name: "bankauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: metrics.MetricRefreshReuseDetected, Name: "bankauth_refresh_reuse_detected_total", Help: "Replayed refresh tokens."},
	{ID: metrics.MetricRefreshPurged, Name: "bankauth_refresh_purged_total", Help: "Expired or revoked refresh tokens swept."},
	{ID: metrics.MetricLogout, Name: "bankauth_logout_total", Help: "Logouts."},
	{ID: metrics.MetricCSRFRejected, Name: "bankauth_csrf_rejected_total", Help: "Requests rejected by the CSRF check."},
	{ID: metrics.MetricRateLimitHit, Name: "bankauth_rate_limit_hit_total", Help: "Rate-limit checks that denied a request."},
	{ID: metrics.MetricAdminUserCreated, Name: "bankauth_admin_user_created_total", Help: "Users created by admins."},
}

var HistogramDefs = []HistogramDef{
	{ID: metrics.MetricValidateLatency, Name: "bankauth_validate_latency_seconds", Help: "Access-token validation latency."},
	{ID: metrics.MetricLoginLatency, Name: "bankauth_login_latency_seconds", Help: "Password login latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// engine bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling when
// histograms are disabled.
func NormalizeBuckets(raw []uint64) [metrics.HistBucketCount]uint64 {
	var out [metrics.HistBucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [metrics.HistBucketCount]uint64) [metrics.HistBucketCount]uint64 {
	var out [metrics.HistBucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
