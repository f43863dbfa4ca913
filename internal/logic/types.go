// Package logic contains the pure publish-trigger rules for the sensor node.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via timing.Ticks parameters.
package logic

import (
	"time"

	"github.com/sweeney/envnode/internal/timing"
)

// EventType is the reason a payload is published.
type EventType string

const (
	EventNone      EventType = ""
	EventHeartbeat EventType = "heartbeat"
	EventMotion    EventType = "motion"
	EventSwitch    EventType = "switch"
)

// Decision is the outcome of one trigger evaluation.
type Decision struct {
	Now   timing.Ticks
	Event EventType

	// MotionSuppressed is set when a motion transition was seen but the
	// cooldown had not elapsed. Remaining is the cooldown left.
	MotionSuppressed bool
	Remaining        time.Duration

	// SwitchDropped is set when a switch change lost to a motion event.
	SwitchDropped bool
}

// EventCounts tracks the number of each published event type.
type EventCounts struct {
	Heartbeat int
	Motion    int
	Switch    int
}
