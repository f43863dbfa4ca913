package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObservePublish("mqtt", true)
	m.ObservePublish("mqtt", true)
	m.ObservePublish("api", false)
	m.ObserveEvent("motion")
	m.ObserveRead("temperature", false)
	m.ObserveReconfigure()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"mqtt ok", testutil.ToFloat64(m.publishes.WithLabelValues("mqtt", "ok")), 2},
		{"api error", testutil.ToFloat64(m.publishes.WithLabelValues("api", "error")), 1},
		{"motion", testutil.ToFloat64(m.events.WithLabelValues("motion")), 1},
		{"temp read error", testutil.ToFloat64(m.sensorReads.WithLabelValues("temperature", "error")), 1},
		{"reconfigs", testutil.ToFloat64(m.reconfigs), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestGauges(t *testing.T) {
	m := New()
	m.SetTemperature(22.5)
	m.SetFans(60, 2)
	m.SetMQTTConnected(true)

	if got := testutil.ToFloat64(m.temperature); got != 22.5 {
		t.Errorf("temperature: got %v", got)
	}
	if got := testutil.ToFloat64(m.fanDuty); got != 60 {
		t.Errorf("fan duty: got %v", got)
	}
	if got := testutil.ToFloat64(m.fansActive); got != 2 {
		t.Errorf("fans active: got %v", got)
	}
	if got := testutil.ToFloat64(m.mqttConnected); got != 1 {
		t.Errorf("mqtt connected: got %v", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveEvent("heartbeat")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `envnode_events_total{event="heartbeat"} 1`) {
		t.Errorf("metrics output missing event counter:\n%s", body)
	}
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveIteration()
	if got := testutil.ToFloat64(b.loopIterations); got != 0 {
		t.Errorf("registries share state: %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObservePublish("mqtt", true)
	m.ObserveEvent("switch")
	m.ObserveRead("motion", false)
	m.ObserveReconfigure()
	m.ObserveIteration()
	m.SetTemperature(1)
	m.SetFans(1, 1)
	m.SetMQTTConnected(true)
}
