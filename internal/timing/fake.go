package timing

import "time"

// FakeClock is a manually advanced clock for tests.
type FakeClock struct {
	T    Ticks
	Wall time.Time
}

// NewFakeClock creates a FakeClock at the given tick and wall time.
func NewFakeClock(t Ticks, wall time.Time) *FakeClock {
	return &FakeClock{T: t, Wall: wall}
}

// Ticks returns the current fake tick.
func (c *FakeClock) Ticks() Ticks {
	return c.T
}

// Now returns the current fake wall time.
func (c *FakeClock) Now() time.Time {
	return c.Wall
}

// Advance moves both tick and wall time forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.T = Add(c.T, d)
	c.Wall = c.Wall.Add(d)
}
