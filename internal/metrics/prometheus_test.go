package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetrics_InitializationAndUpdate(t *testing.T) {
	pm := NewPrometheusMetrics()
	if pm == nil {
		t.Fatalf("NewPrometheusMetrics returned nil")
	}
	if pm.GetRegistry() == nil {
		t.Fatalf("GetRegistry returned nil")
	}

	pm.UpdateSystemMetrics()
	before := pm.GetUptime()
	time.Sleep(10 * time.Millisecond)
	after := pm.GetUptime()
	if before >= after {
		t.Fatalf("expected uptime to increase, before=%v after=%v", before, after)
	}
	if pm.GetLastUpdate().IsZero() {
		t.Fatalf("expected last update to be set")
	}
}

func TestPrometheusMetrics_HandlerServes(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.UpdateSystemMetrics()
	pm.ObserveProbe("port", ResultOpen, 5*time.Millisecond)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	pm.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{
		"reconnoiter_system_uptime_seconds",
		"reconnoiter_probe_total",
		"go_goroutines",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in exposition output", name)
		}
	}
}

func TestPrometheusMetrics_ProbeMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.ObserveProbe("port", ResultOpen, time.Millisecond)
	pm.ObserveProbe("port", ResultOpen, time.Millisecond)
	pm.ObserveProbe("port", ResultClosed, time.Millisecond)
	pm.ObserveProbe("banner", ResultTimeout, time.Second)

	if count := testutil.CollectAndCount(pm.probesTotal); count != 3 {
		t.Errorf("expected 3 label combinations, got %d", count)
	}
	if got := testutil.ToFloat64(pm.probesTotal.WithLabelValues("port", ResultOpen)); got != 2 {
		t.Errorf("expected 2 open port probes, got %v", got)
	}
	if count := testutil.CollectAndCount(pm.probeDuration); count != 2 {
		t.Errorf("expected 2 stages in duration histogram, got %d", count)
	}

	pm.ObserveRateLimitWait(100 * time.Millisecond)
	if count := testutil.CollectAndCount(pm.rateLimitWait); count != 1 {
		t.Errorf("expected 1 rate limit histogram, got %d", count)
	}
}

func TestPrometheusMetrics_OperationMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementOperations("scan_target", "success")
	pm.IncrementOperations("scan_target", "resolution_failed")
	pm.RecordOperationDuration("scan_target", 2*time.Second)
	pm.AddFindings("open_port", 3)
	pm.AddFindings("open_port", 0)
	pm.AddFindings("subdomain", 2)
	pm.AddActiveOperations("ping_sweep", 1)
	pm.AddActiveOperations("ping_sweep", 1)
	pm.AddActiveOperations("ping_sweep", -1)
	pm.IncrementScheduledRuns("nightly", "success")

	if count := testutil.CollectAndCount(pm.operationsTotal); count != 2 {
		t.Errorf("expected 2 operation label combinations, got %d", count)
	}
	if got := testutil.ToFloat64(pm.findingsTotal.WithLabelValues("open_port")); got != 3 {
		t.Errorf("expected 3 open port findings, got %v", got)
	}
	if got := testutil.ToFloat64(pm.activeOperations.WithLabelValues("ping_sweep")); got != 1 {
		t.Errorf("expected 1 active sweep, got %v", got)
	}
	if got := testutil.ToFloat64(pm.scheduledRuns.WithLabelValues("nightly", "success")); got != 1 {
		t.Errorf("expected 1 scheduled run, got %v", got)
	}
}

func TestPrometheusMetrics_APIMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementHTTPRequests("GET", "/api/v1/health", "200")
	pm.IncrementHTTPRequests("POST", "/api/v1/scans", "400")
	pm.RecordHTTPDuration("GET", "/api/v1/health", 10*time.Millisecond)

	if count := testutil.CollectAndCount(pm.httpRequests); count != 2 {
		t.Errorf("expected 2 request label combinations, got %d", count)
	}
	if count := testutil.CollectAndCount(pm.httpDuration); count != 1 {
		t.Errorf("expected 1 duration series, got %d", count)
	}
}

func TestPrometheusMetrics_StartPeriodicUpdates(t *testing.T) {
	pm := NewPrometheusMetrics()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		pm.StartPeriodicUpdates(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartPeriodicUpdates did not return after cancel")
	}
	if pm.GetLastUpdate().IsZero() {
		t.Fatal("expected periodic updates to run")
	}
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.ObserveProbe("port", ResultOpen, time.Millisecond)
	r.ObserveRateLimitWait(time.Millisecond)
	r.IncrementOperations("x", "y")
	r.RecordOperationDuration("x", time.Second)
	r.AddFindings("x", 1)
	r.AddActiveOperations("x", 1)
	r.IncrementHTTPRequests("GET", "/", "200")
	r.RecordHTTPDuration("GET", "/", time.Millisecond)
	r.IncrementScheduledRuns("x", "y")
}
