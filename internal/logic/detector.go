package logic

import (
	"time"

	"github.com/sweeney/envnode/internal/timing"
)

// Detector decides when to publish. Motion beats switch beats heartbeat;
// only motion has a cooldown. Transition flags are consumed by every
// evaluation whichever event wins.
type Detector struct {
	heartbeat time.Duration
	cooldown  time.Duration

	lastPublish       timing.Ticks
	lastMotionPublish timing.Ticks

	motionRising  bool
	switchChanged bool

	counts EventCounts
}

// NewDetector creates a detector at now. The first motion transition is
// allowed immediately; the first heartbeat is due one period after now.
func NewDetector(heartbeat, cooldown time.Duration, now timing.Ticks) *Detector {
	return &Detector{
		heartbeat:         heartbeat,
		cooldown:          cooldown,
		lastPublish:       now,
		lastMotionPublish: timing.Add(now, -cooldown),
	}
}

// SetPeriods replaces the heartbeat period and the motion cooldown.
func (d *Detector) SetPeriods(heartbeat, cooldown time.Duration) {
	d.heartbeat = heartbeat
	d.cooldown = cooldown
}

// ArmMotion lets the next motion transition fire at now regardless of the
// previous motion publish.
func (d *Detector) ArmMotion(now timing.Ticks) {
	d.lastMotionPublish = timing.Add(now, -d.cooldown)
}

// ObserveMotion records the result of a motion read.
func (d *Detector) ObserveMotion(rising bool) {
	d.motionRising = rising
}

// ObserveSwitch records the result of a switch read.
func (d *Detector) ObserveSwitch(changed bool) {
	d.switchChanged = changed
}

// Evaluate picks the event to publish at now, if any, and clears the
// transition flags. It does not advance any timestamp; call Published once
// the payload has been handed to the transports.
func (d *Detector) Evaluate(now timing.Ticks) Decision {
	dec := Decision{Now: now}

	motionAllowed := timing.Elapsed(now, d.lastMotionPublish, d.cooldown)
	motion := d.motionRising && motionAllowed
	if d.motionRising && !motionAllowed {
		dec.MotionSuppressed = true
		dec.Remaining = d.cooldown - timing.Diff(now, d.lastMotionPublish)
	}

	switch {
	case motion:
		dec.Event = EventMotion
		dec.SwitchDropped = d.switchChanged
	case d.switchChanged:
		dec.Event = EventSwitch
	case timing.Elapsed(now, d.lastPublish, d.heartbeat):
		dec.Event = EventHeartbeat
	}

	d.motionRising = false
	d.switchChanged = false
	return dec
}

// Published advances the publish timestamps for dec. It is called whether
// or not the transports reported success.
func (d *Detector) Published(dec Decision) {
	if dec.Event == EventNone {
		return
	}
	d.lastPublish = dec.Now
	switch dec.Event {
	case EventMotion:
		d.lastMotionPublish = dec.Now
		d.counts.Motion++
	case EventSwitch:
		d.counts.Switch++
	case EventHeartbeat:
		d.counts.Heartbeat++
	}
}

// ScheduleHeartbeat makes the next heartbeat due grace after now.
func (d *Detector) ScheduleHeartbeat(now timing.Ticks, grace time.Duration) {
	d.lastPublish = timing.Add(now, grace-d.heartbeat)
}

// HeartbeatDueIn returns the time until the next heartbeat at now.
func (d *Detector) HeartbeatDueIn(now timing.Ticks) time.Duration {
	return d.heartbeat - timing.Diff(now, d.lastPublish)
}

// Counts returns a copy of the published event counts.
func (d *Detector) Counts() EventCounts {
	return d.counts
}
