package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestHTTPRequestCounter(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/v1/credentials/:id", "200").Inc()

	family := gatherFamily(t, "botvault_http_requests_total")
	if family == nil {
		t.Fatal("botvault_http_requests_total not registered")
	}

	found := false
	for _, m := range family.GetMetric() {
		labels := map[string]string{}
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		if labels["method"] == "GET" && labels["path"] == "/v1/credentials/:id" && labels["status"] == "200" {
			found = true
			if m.GetCounter().GetValue() < 1 {
				t.Errorf("counter value = %v, want >= 1", m.GetCounter().GetValue())
			}
		}
	}
	if !found {
		t.Error("expected labelled series not found")
	}
}

func TestVaultCountersRegistered(t *testing.T) {
	BotVerificationsTotal.WithLabelValues("ok").Inc()
	EnvelopeOperationsTotal.WithLabelValues("decrypt", "ok").Inc()
	AuditAppendFailuresTotal.Add(0)

	for _, name := range []string{
		"botvault_bot_verifications_total",
		"botvault_envelope_operations_total",
		"botvault_audit_append_failures_total",
	} {
		if gatherFamily(t, name) == nil {
			t.Errorf("metric %s not registered", name)
		}
	}
}
