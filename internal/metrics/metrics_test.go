package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Snapshot("payments")
	m.SubscriptionError("payments")
	m.Write("payments", "create", ResultOK)
	m.SubscriptionsOpened(3)
	m.SubscriptionsClosed(3)
	m.Export(ResultOK)
	m.SecurityEvent(EventRateLimited)
	if m.Registry() != nil {
		t.Fatal("nil metrics should have no registry")
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.Snapshot("payments")
	m.Snapshot("payments")
	m.Write("vendors", "delete", ResultError)
	m.SubscriptionsOpened(3)
	m.SubscriptionsClosed(1)
	m.SecurityEvent(EventSuspicious)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	for _, want := range []string{
		`sitepay_snapshots_total{collection="payments"} 2`,
		`sitepay_writes_total{collection="vendors",op="delete",result="error"} 1`,
		`sitepay_active_subscriptions 2`,
		`sitepay_http_security_events_total{event="suspicious"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
