package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/bankauth"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeSource struct {
	snapshot bankauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() bankauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestCollectorEmptyWhenMetricsDisabled(t *testing.T) {
	c := NewCollector(fakeSource{
		snapshot: bankauth.MetricsSnapshot{
			Counters:   map[bankauth.MetricID]uint64{},
			Histograms: map[bankauth.MetricID][]uint64{},
		},
	})

	reg := prometheus.NewRegistry()
	if err := Register(reg, c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) != 0 {
		t.Fatalf("expected no metrics for disabled engine, got %d families", len(families))
	}
}

func TestCollectorCountersAndHistogram(t *testing.T) {
	src := fakeSource{
		snapshot: bankauth.MetricsSnapshot{
			Counters: map[bankauth.MetricID]uint64{
				bankauth.MetricLoginSuccess:         7,
				bankauth.MetricRefreshReuseDetected: 1,
			},
			Histograms: map[bankauth.MetricID][]uint64{
				bankauth.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	}
	reg, err := NewRegistry(src)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	out := rec.Body.String()
	for _, want := range []string{
		"bankauth_login_success_total 7",
		"bankauth_refresh_reuse_detected_total 1",
		`bankauth_validate_latency_seconds_bucket{le="0.005"} 1`,
		`bankauth_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"bankauth_validate_latency_seconds_count 36",
		"bankauth_audit_dropped_total 2",
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "bankauth_login_latency_seconds_count") {
		t.Fatal("histogram without samples should be omitted")
	}
}

func TestRegisterToleratesDuplicates(t *testing.T) {
	reg := prometheus.NewRegistry()
	src := fakeSource{snapshot: bankauth.MetricsSnapshot{Counters: map[bankauth.MetricID]uint64{}, Histograms: map[bankauth.MetricID][]uint64{}}}
	c := NewCollector(src)

	if err := Register(reg, c); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := Register(reg, c); err != nil {
		t.Fatalf("duplicate Register should be ignored, got %v", err)
	}
}
