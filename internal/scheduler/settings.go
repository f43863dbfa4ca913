package scheduler

import (
	"time"

	"github.com/sweeney/envnode/internal/config"
)

// Loop constants.
const (
	MinSleep       = 100 * time.Millisecond
	MaxPacing      = 500 * time.Millisecond
	ErrorBackoff   = time.Second
	HeartbeatGrace = 2 * time.Second
)

// Settings are the scalar values the loop runs on. Each reconfiguration
// overlays the keys present in the new document on the previous values.
type Settings struct {
	Enabled      bool
	MQTTEnabled  bool
	APIEnabled   bool
	KafkaEnabled bool

	MQTT  *config.MQTT
	API   *config.API
	Kafka *config.Kafka

	Heartbeat      time.Duration
	ReconnectDelay time.Duration
	MotionCooldown time.Duration
	MotionPeriod   time.Duration
	SwitchPeriod   time.Duration
	TempPeriod     time.Duration
	ConfigPeriod   time.Duration
}

// DefaultSettings returns the values used before any document is applied.
func DefaultSettings() Settings {
	return Settings{
		Enabled:        true,
		Heartbeat:      30 * time.Second,
		ReconnectDelay: 10 * time.Second,
		MotionCooldown: 30 * time.Second,
		MotionPeriod:   time.Second,
		SwitchPeriod:   time.Second,
		TempPeriod:     5 * time.Second,
		ConfigPeriod:   60 * time.Second,
	}
}

// Merge returns s with every key present in d applied.
func (s Settings) Merge(d *config.Device) Settings {
	if d.Enabled != nil {
		s.Enabled = *d.Enabled
	}
	if d.MQTT != nil {
		s.MQTT = d.MQTT
		if d.MQTT.Enabled != nil {
			s.MQTTEnabled = *d.MQTT.Enabled
		}
	}
	if d.API != nil {
		s.API = d.API
		if d.API.Enabled != nil {
			s.APIEnabled = *d.API.Enabled
		}
	}
	if d.Kafka != nil {
		s.Kafka = d.Kafka
		if d.Kafka.Enabled != nil {
			s.KafkaEnabled = *d.Kafka.Enabled
		}
	}
	s.Heartbeat = millisOr(d.HeartbeatPublishPeriod, s.Heartbeat)
	s.ReconnectDelay = millisOr(d.MQTTReconnectDelay, s.ReconnectDelay)
	s.MotionCooldown = millisOr(d.MotionCooldown, s.MotionCooldown)
	s.MotionPeriod = millisOr(d.MotionCheckPeriod, s.MotionPeriod)
	s.SwitchPeriod = millisOr(d.SwitchCheckPeriod, s.SwitchPeriod)
	s.TempPeriod = millisOr(d.TemperatureCheckPeriod, s.TempPeriod)
	s.ConfigPeriod = millisOr(d.ConfigCheckPeriod, s.ConfigPeriod)
	return s
}

// Pacing returns the sleep between iterations: a quarter of the fastest
// sensor period, capped at MaxPacing/4 and never below MinSleep.
func (s Settings) Pacing() time.Duration {
	fastest := min(s.MotionPeriod, s.SwitchPeriod, s.TempPeriod, MaxPacing)
	return max(MinSleep, fastest/4)
}

func millisOr(m *config.Millis, fallback time.Duration) time.Duration {
	if m == nil {
		return fallback
	}
	return m.Duration()
}
