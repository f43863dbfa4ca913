// Package gpio provides digital input and output lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Input reads a single digital line.
type Input interface {
	// Read returns true when the line is high.
	Read() (bool, error)

	// Close releases the line.
	Close() error
}

// Output drives a single digital line.
type Output interface {
	// Set drives the line high (true) or low (false).
	Set(high bool) error

	// Close releases the line.
	Close() error
}

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// Pin definitions (BCM numbering), matching the sensor node carrier board.
const (
	DefaultPinMotion = 16
	DefaultPinSwitch = 15
	DefaultPinLED    = 25
)

// DefaultIDPins are the strap pins read for the device id, LSB first.
var DefaultIDPins = []int{0, 1, 2, 3}

// Level renders a line state the way payloads report it.
func Level(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}
