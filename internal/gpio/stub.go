//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errUnsupported
}

// Close is a no-op on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}

// RequestInput returns an error on non-Linux platforms.
func (c *Chip) RequestInput(pin int) (Input, error) {
	return nil, errUnsupported
}

// RequestOutput returns an error on non-Linux platforms.
func (c *Chip) RequestOutput(pin int) (Output, error) {
	return nil, errUnsupported
}

// RequestOutputs returns an error on non-Linux platforms.
func (c *Chip) RequestOutputs(pins []int) (*Bank, error) {
	return nil, errUnsupported
}
