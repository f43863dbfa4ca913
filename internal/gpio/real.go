//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Chip owns an open GPIO character device and hands out lines from it.
type Chip struct {
	chip *gpiocdev.Chip
}

// OpenChip opens the named GPIO chip, e.g. "gpiochip0".
func OpenChip(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{chip: chip}, nil
}

// Close releases the chip. Lines requested from it must be closed first.
func (c *Chip) Close() error {
	return c.chip.Close()
}

// RealInput reads one line requested as input with pull-down.
type RealInput struct {
	line *gpiocdev.Line
	pin  int
}

// RequestInput requests pin as an input with pull-down to match Pi boot
// defaults, so a floating PIR or switch reads LOW.
func (c *Chip) RequestInput(pin int) (*RealInput, error) {
	line, err := c.chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", pin, err)
	}
	return &RealInput{line: line, pin: pin}, nil
}

// Read returns true when the raw line value is 1.
func (r *RealInput) Read() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", r.pin, err)
	}
	return v == 1, nil
}

// Close releases the line.
func (r *RealInput) Close() error {
	return r.line.Close()
}

// RealOutput drives one line requested as output, initially low.
type RealOutput struct {
	line *gpiocdev.Line
	pin  int
}

// RequestOutput requests pin as an output driven low.
func (c *Chip) RequestOutput(pin int) (*RealOutput, error) {
	line, err := c.chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	return &RealOutput{line: line, pin: pin}, nil
}

// Set drives the line.
func (o *RealOutput) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", o.pin, err)
	}
	return nil
}

// Close drives the line low, then reconfigures it to input with pull-down
// (matching Pi boot defaults) before releasing it. This keeps fan drivers
// from being held on across a restart.
func (o *RealOutput) Close() error {
	var errs []error
	if err := o.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("drive pin %d low: %w", o.pin, err))
	}
	if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", o.pin, err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", o.pin, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RequestOutputs requests every pin as an output. On failure, lines already
// requested are released and no bank is returned.
func (c *Chip) RequestOutputs(pins []int) (*Bank, error) {
	outs := make([]Output, 0, len(pins))
	for _, pin := range pins {
		o, err := c.RequestOutput(pin)
		if err != nil {
			for _, prev := range outs {
				prev.Close()
			}
			return nil, err
		}
		outs = append(outs, o)
	}
	return NewBank(outs), nil
}
