// Package metrics exposes loop counters and the latest readings in the
// Prometheus text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so a restarted bootstrap can build a
// fresh set without colliding with the previous one. A nil *Metrics
// records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	publishes      *prometheus.CounterVec
	events         *prometheus.CounterVec
	sensorReads    *prometheus.CounterVec
	reconfigs      prometheus.Counter
	temperature    prometheus.Gauge
	fanDuty        prometheus.Gauge
	fansActive     prometheus.Gauge
	mqttConnected  prometheus.Gauge
	loopIterations prometheus.Counter
}

// New registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "envnode_publishes_total",
			Help: "Publish attempts by transport and result.",
		}, []string{"transport", "result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "envnode_events_total",
			Help: "Triggered events by type.",
		}, []string{"event"}),
		sensorReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "envnode_sensor_reads_total",
			Help: "Sensor reads by sensor and result.",
		}, []string{"sensor", "result"}),
		reconfigs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envnode_reconfigurations_total",
			Help: "Configuration changes applied.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envnode_temperature_celsius",
			Help: "Last good temperature reading.",
		}),
		fanDuty: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envnode_fan_pwm_duty_percent",
			Help: "Current PWM fan duty.",
		}),
		fansActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envnode_fans_active",
			Help: "Fans switched on by the step controller.",
		}),
		mqttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envnode_mqtt_connected",
			Help: "1 when the MQTT transport is connected.",
		}),
		loopIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envnode_loop_iterations_total",
			Help: "Control loop iterations.",
		}),
	}

	m.registry.MustRegister(
		m.publishes,
		m.events,
		m.sensorReads,
		m.reconfigs,
		m.temperature,
		m.fanDuty,
		m.fansActive,
		m.mqttConnected,
		m.loopIterations,
	)
	return m
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// ObservePublish counts one publish attempt on transport.
func (m *Metrics) ObservePublish(transport string, ok bool) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(transport, result(ok)).Inc()
}

// ObserveEvent counts a triggered event.
func (m *Metrics) ObserveEvent(event string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event).Inc()
}

// ObserveRead counts one sensor read.
func (m *Metrics) ObserveRead(sensor string, ok bool) {
	if m == nil {
		return
	}
	m.sensorReads.WithLabelValues(sensor, result(ok)).Inc()
}

// ObserveReconfigure counts an applied configuration.
func (m *Metrics) ObserveReconfigure() {
	if m == nil {
		return
	}
	m.reconfigs.Inc()
}

// ObserveIteration counts a loop iteration.
func (m *Metrics) ObserveIteration() {
	if m == nil {
		return
	}
	m.loopIterations.Inc()
}

// SetTemperature records the latest reading in Celsius.
func (m *Metrics) SetTemperature(c float64) {
	if m == nil {
		return
	}
	m.temperature.Set(c)
}

// SetFans records the fan controller outputs.
func (m *Metrics) SetFans(duty, active int) {
	if m == nil {
		return
	}
	m.fanDuty.Set(float64(duty))
	m.fansActive.Set(float64(active))
}

// SetMQTTConnected records the broker connection state.
func (m *Metrics) SetMQTTConnected(connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	m.mqttConnected.Set(v)
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
