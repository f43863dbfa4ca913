package gpio

import "fmt"

// Bank is an ordered set of outputs switched as "first n on".
type Bank struct {
	outs []Output
}

// NewBank wraps outs in order.
func NewBank(outs []Output) *Bank {
	return &Bank{outs: outs}
}

// Len returns the number of outputs.
func (b *Bank) Len() int {
	return len(b.outs)
}

// SetActiveCount drives the first n outputs high and the rest low.
// n is clamped to [0, Len()].
func (b *Bank) SetActiveCount(n int) error {
	for i, o := range b.outs {
		if err := o.Set(i < n); err != nil {
			return fmt.Errorf("bank output %d: %w", i, err)
		}
	}
	return nil
}

// Close releases every output, returning the first error.
func (b *Bank) Close() error {
	var first error
	for _, o := range b.outs {
		if err := o.Close(); err != nil && first == nil {
			first = err
		}
	}
	b.outs = nil
	return first
}

// ReadID reads strap pins (LSB first) into an integer, treating a failed read
// as 0 for that bit.
func ReadID(pins []Input) int {
	id := 0
	for i, p := range pins {
		high, err := p.Read()
		if err == nil && high {
			id |= 1 << i
		}
	}
	return id
}
