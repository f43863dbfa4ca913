// Package timing provides a wrapping millisecond tick source.
// Ticks wrap at 2^32 ms (about 49.7 days); Diff stays correct across the wrap
// as long as the two ticks are less than half a period apart.
package timing

import "time"

// Ticks is a monotonic millisecond counter that wraps around.
type Ticks uint32

// Diff returns a - b as a signed duration, correct across wraparound.
func Diff(a, b Ticks) time.Duration {
	return time.Duration(int32(a-b)) * time.Millisecond
}

// Add returns t advanced by d. Sub-millisecond parts of d are dropped.
func Add(t Ticks, d time.Duration) Ticks {
	return t + Ticks(int64(d/time.Millisecond))
}

// Elapsed reports whether at least period has passed between since and now.
func Elapsed(now, since Ticks, period time.Duration) bool {
	return Diff(now, since) >= period
}

// Clock supplies ticks and wall time.
type Clock interface {
	Ticks() Ticks
	Now() time.Time
}

// SystemClock derives ticks from the Go monotonic clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a clock whose ticks start at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Ticks returns the milliseconds since the clock was created, modulo 2^32.
func (c *SystemClock) Ticks() Ticks {
	return Ticks(uint64(time.Since(c.start).Milliseconds()))
}

// Now returns the current wall time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}
