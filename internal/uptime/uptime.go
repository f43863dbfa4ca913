// Package uptime accumulates process uptime from wrapping ticks.
package uptime

import (
	"fmt"
	"time"

	"github.com/sweeney/envnode/internal/timing"
)

// Tracker sums elapsed time across tick overflow. Update must be called more
// often than half the tick period; the control loop calls it every iteration.
type Tracker struct {
	last  timing.Ticks
	total time.Duration
}

// New starts a tracker at the given tick.
func New(now timing.Ticks) *Tracker {
	return &Tracker{last: now}
}

// Update folds the time since the previous call into the total.
// A tick that appears to go backwards is ignored.
func (t *Tracker) Update(now timing.Ticks) {
	if d := timing.Diff(now, t.last); d > 0 {
		t.total += d
	}
	t.last = now
}

// Elapsed returns the accumulated uptime as of now.
func (t *Tracker) Elapsed(now timing.Ticks) time.Duration {
	total := t.total
	if d := timing.Diff(now, t.last); d > 0 {
		total += d
	}
	return total
}

// Seconds returns whole seconds of uptime.
func (t *Tracker) Seconds(now timing.Ticks) int64 {
	return int64(t.Elapsed(now) / time.Second)
}

// String formats uptime as dd:hh:mm:ss.
func (t *Tracker) String(now timing.Ticks) string {
	return Format(t.Elapsed(now))
}

// Format renders d as dd:hh:mm:ss.
func Format(d time.Duration) string {
	secs := int64(d / time.Second)
	days := secs / 86400
	hours := (secs / 3600) % 24
	minutes := (secs / 60) % 60
	seconds := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", days, hours, minutes, seconds)
}
