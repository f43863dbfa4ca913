package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/envnode/internal/config"
	"github.com/sweeney/envnode/internal/fan"
	"github.com/sweeney/envnode/internal/logging"
	"github.com/sweeney/envnode/internal/metrics"
	"github.com/sweeney/envnode/internal/mqtt"
	"github.com/sweeney/envnode/internal/scheduler"
	"github.com/sweeney/envnode/internal/sensors"
	"github.com/sweeney/envnode/internal/status"
	"github.com/sweeney/envnode/internal/timing"
	"github.com/sweeney/envnode/internal/web"
)

const documentTemplate = `{
  "device_global_config": {
    "heartbeat_publish_period": %HEARTBEAT%,
    "remote_logger": {"mqtt": {"enabled": true, "base_topic": "az_iots3/ulog"}},
    "fan_pwm_controller_config": {
      "enabled": true,
      "manual_override": {"enabled": false, "manual_dutycycle": 0},
      "pwm_pin": 18, "pwm_freq": 25000,
      "temp_min": 20, "temp_max": 30,
      "fan_min_duty": 20, "fan_max_duty": 100,
      "hysteresis": 1
    },
    "fan_step_controller_config": {
      "enabled": true,
      "manual_override": {"enabled": false, "fans_active": 0},
      "pins": [17, 27, 22],
      "temp_min": 20, "temp_max": 30,
      "hysteresis": 1
    }
  },
  "system_global_config": {
    "mqtt_config": {"enabled": true, "broker": "10.0.0.5", "port": 1883, "base_topic": "home/sensors"},
    "check_config_file_period": 1000
  },
  "device_list": [
    {"device_id": "Office00", "name": "%NAME%", "enabled": true}
  ]
}`

func document(heartbeat, name string) string {
	return strings.NewReplacer("%HEARTBEAT%", heartbeat, "%NAME%", name).Replace(documentTemplate)
}

// configServer serves a replaceable configuration document.
type configServer struct {
	mu   sync.Mutex
	body string
}

func (c *configServer) set(body string) {
	c.mu.Lock()
	c.body = body
	c.mu.Unlock()
}

func (c *configServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(c.body))
}

// line is a settable GPIO input.
type line struct{ high bool }

func (l *line) Read() (bool, error) { return l.high, nil }
func (l *line) Close() error { return nil }

// TestIntegrationFullFlow drives the loop from a served configuration
// through motion, switch, a live reconfiguration and a heartbeat, then reads
// the result back through the status surface.
func TestIntegrationFullFlow(t *testing.T) {
	cfgSrv := &configServer{body: document("60000", "Office")}
	srv := httptest.NewServer(cfgSrv)
	defer srv.Close()

	var logBuf bytes.Buffer
	sink := logging.NewSink(log.New(&logBuf, "", 0), nil)

	loader := &config.Loader{URL: srv.URL, DeviceID: "Office00", Logger: sink}
	dev, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	motion, sw := &line{}, &line{}
	temp := &sensors.FakeSensor{Kind: sensors.TypeBME280, Readings: []sensors.Reading{{TemperatureF: 77}}}
	mgr := sensors.NewManager(motion, sw, temp, sink)

	clock := timing.NewFakeClock(500_000, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	fans := &fan.FakeOpeners{}
	var transports []*mqtt.FakeTransport
	factories := scheduler.DefaultFactories(fans.PWM, fans.Step)
	factories.MQTT = func(_ string, cfg *config.MQTT, _ time.Duration, _ logging.Logger) (mqtt.Transport, error) {
		tr := mqtt.NewFakeTransport(cfg)
		transports = append(transports, tr)
		return tr, nil
	}

	m := metrics.New()
	tracker := status.NewTracker(clock.Now(), status.Config{ConfigURL: srv.URL, Version: "1.2.0"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeps := 0
	s, err := scheduler.New(scheduler.Deps{
		DeviceID:  "Office00",
		Version:   "1.2.0",
		Clock:     clock,
		Config:    loader,
		Sensors:   mgr,
		Logger:    sink,
		Factories: factories,
		Tracker:   tracker,
		Metrics:   m,
		Sleep: func(ctx context.Context, d time.Duration) error {
			sleeps++
			clock.Advance(d)
			switch sleeps {
			case 4:
				motion.high = true
			case 12:
				sw.high = true
			case 20:
				cfgSrv.set(document("5000", "Office Desk"))
			case 48:
				cancel()
				return ctx.Err()
			}
			return nil
		},
	}, dev)
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(transports) != 2 {
		t.Fatalf("expected 2 transport epochs, got %d", len(transports))
	}
	if !transports[0].Closed || !transports[1].Closed {
		t.Error("transports not closed")
	}

	first := decode(t, transports[0].Payloads)
	if len(first) != 2 {
		t.Fatalf("first epoch: expected 2 payloads, got %d", len(first))
	}
	if first[0]["event_type"] != "motion" || first[0]["motion"] != "HIGH" {
		t.Errorf("payload 0: %v", first[0])
	}
	if first[1]["event_type"] != "switch" || first[1]["switch"] != "HIGH" {
		t.Errorf("payload 1: %v", first[1])
	}
	if first[0]["timestamp"] != "2026-03-01T12:00:01Z" || first[0]["fan_pwm"] != 60.0 {
		t.Errorf("payload 0 fields: %v", first[0])
	}

	second := decode(t, transports[1].Payloads)
	if len(second) != 1 || second[0]["event_type"] != "heartbeat" {
		t.Fatalf("second epoch: %v", second)
	}
	if second[0]["timestamp"] != "2026-03-01T12:00:05Z" {
		t.Errorf("heartbeat timestamp: %v", second[0]["timestamp"])
	}

	if len(transports[0].RawTopics) == 0 {
		t.Error("no log lines forwarded to the broker")
	}
	for _, topic := range transports[0].RawTopics {
		if topic != "az_iots3/ulog" {
			t.Errorf("log forwarded to %q", topic)
		}
	}
	if !strings.Contains(logBuf.String(), "Office00(Office Desk): ") {
		t.Error("log prefix not updated after reconfiguration")
	}

	if len(fans.Levels) != 1 || !fans.Levels[0].Closed {
		t.Error("pwm output should be acquired once and released at shutdown")
	}

	h := web.New(":0", tracker, m.Handler(), nil).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.json", nil))
	var st status.StatusJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("status json: %v", err)
	}
	if st.Status.Name != "Office Desk" || st.Status.Config.Reconfigures != 2 {
		t.Errorf("status device: %+v", st.Status)
	}
	if c := st.Status.Counts; c.Motion != 1 || c.Switch != 1 || c.Heartbeat != 1 {
		t.Errorf("event counts: %+v", c)
	}
	if st.Status.Config.HeartbeatMs != 5000 {
		t.Errorf("heartbeat_ms: %d", st.Status.Config.HeartbeatMs)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	for _, want := range []string{
		`envnode_events_total{event="motion"} 1`,
		`envnode_publishes_total{result="ok",transport="mqtt"} 3`,
		`envnode_reconfigurations_total 2`,
	} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func decode(t *testing.T, payloads [][]byte) []map[string]any {
	t.Helper()
	out := make([]map[string]any, 0, len(payloads))
	for _, p := range payloads {
		var m map[string]any
		if err := json.Unmarshal(p, &m); err != nil {
			t.Fatalf("payload %s: %v", p, err)
		}
		out = append(out, m)
	}
	return out
}
