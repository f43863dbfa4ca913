// Package status provides a thread-safe status tracker for the sensor node.
// The control loop writes it once per iteration; HTTP handlers read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/envnode/internal/payload"
)

// Config contains daemon settings for display.
type Config struct {
	ConfigURL string
	HTTPAddr  string
	Version   string
}

// Device is the identity and transport state of the current config epoch.
type Device struct {
	ID          string
	Name        string
	Enabled     bool
	Broker      string
	HeartbeatMs int64
	MQTT        bool
	API         bool
	Kafka       bool
}

// EventCounts tallies published events.
type EventCounts struct {
	Heartbeat int
	Motion    int
	Switch    int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Readings      payload.Readings
	Device        Device
	Counts        EventCounts
	LastEvent     string
	LastPublish   time.Time
	Reconfigures  int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Readings:  payload.NewReadings(cfg.Version),
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetReadings stores a copy of the readings snapshot.
func (t *Tracker) SetReadings(r payload.Readings) {
	c := r.Clone()
	t.mu.Lock()
	t.snap.Readings = c
	t.mu.Unlock()
}

// SetDevice records the device and transport state after a reconfiguration.
func (t *Tracker) SetDevice(d Device) {
	t.mu.Lock()
	t.snap.Device = d
	t.snap.Reconfigures++
	t.mu.Unlock()
}

// RecordEvent counts a published event.
func (t *Tracker) RecordEvent(event string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch event {
	case payload.EventHeartbeat:
		t.snap.Counts.Heartbeat++
	case payload.EventMotion:
		t.snap.Counts.Motion++
	case payload.EventSwitch:
		t.snap.Counts.Switch++
	}
	t.snap.LastEvent = event
	t.snap.LastPublish = at
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Readings = t.snap.Readings.Clone()
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
