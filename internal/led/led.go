// Package led blinks the alive indicator from the control loop without a
// goroutine of its own.
package led

import (
	"time"

	"github.com/sweeney/envnode/internal/gpio"
	"github.com/sweeney/envnode/internal/logging"
	"github.com/sweeney/envnode/internal/timing"
)

// DefaultInterval is the toggle period.
const DefaultInterval = time.Second

// Blinker toggles an output each time Update sees the interval has passed.
type Blinker struct {
	out      gpio.Output
	inverted bool
	interval time.Duration
	logger   logging.Logger

	running bool
	on      bool
	last    timing.Ticks
}

// New returns a stopped blinker with the LED off. inverted is for
// active-low LEDs.
func New(out gpio.Output, inverted bool, logger logging.Logger) *Blinker {
	b := &Blinker{out: out, inverted: inverted, interval: DefaultInterval, logger: logger}
	b.set(false)
	return b
}

// Start begins blinking from now.
func (b *Blinker) Start(now timing.Ticks, interval time.Duration) {
	if interval > 0 {
		b.interval = interval
	}
	b.running = true
	b.last = now
}

// Update toggles the LED when due and reports whether it did.
func (b *Blinker) Update(now timing.Ticks) bool {
	if !b.running || !timing.Elapsed(now, b.last, b.interval) {
		return false
	}
	b.set(!b.on)
	b.last = now
	return true
}

// On reports the logical LED state.
func (b *Blinker) On() bool { return b.on }

// Stop halts blinking and turns the LED off.
func (b *Blinker) Stop() {
	b.running = false
	b.set(false)
}

// Close stops the blinker and releases the line.
func (b *Blinker) Close() error {
	b.Stop()
	return b.out.Close()
}

func (b *Blinker) set(on bool) {
	if err := b.out.Set(on != b.inverted); err != nil {
		b.logger.Printf("led: set failed: %v", err)
		return
	}
	b.on = on
}
