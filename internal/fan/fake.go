package fan

import "errors"

// FakeLevel records duty cycles set on it.
type FakeLevel struct {
	Pin, Freq int
	Levels    []int
	Closed    bool
	SetErr    error
}

// SetLevel records duty.
func (f *FakeLevel) SetLevel(duty int) error {
	if f.SetErr != nil {
		return f.SetErr
	}
	f.Levels = append(f.Levels, duty)
	return nil
}

// Close marks the output closed.
func (f *FakeLevel) Close() error {
	f.Closed = true
	return nil
}

// FakeCount records active counts set on it.
type FakeCount struct {
	Pins   []int
	Counts []int
	Closed bool
}

// SetActiveCount records n.
func (f *FakeCount) SetActiveCount(n int) error {
	f.Counts = append(f.Counts, n)
	return nil
}

// Len returns the number of pins.
func (f *FakeCount) Len() int { return len(f.Pins) }

// Close marks the output closed.
func (f *FakeCount) Close() error {
	f.Closed = true
	return nil
}

// FakeOpeners hands out fake outputs and records every acquisition.
type FakeOpeners struct {
	Levels []*FakeLevel
	Counts []*FakeCount
	Fail   bool
}

var errFakeOpen = errors.New("fake: output busy")

// PWM implements PWMOpener.
func (o *FakeOpeners) PWM(pin, freq int) (LevelOutput, error) {
	if o.Fail {
		return nil, errFakeOpen
	}
	f := &FakeLevel{Pin: pin, Freq: freq}
	o.Levels = append(o.Levels, f)
	return f, nil
}

// Step implements StepOpener.
func (o *FakeOpeners) Step(pins []int) (CountOutput, error) {
	if o.Fail {
		return nil, errFakeOpen
	}
	f := &FakeCount{Pins: append([]int(nil), pins...)}
	o.Counts = append(o.Counts, f)
	return f, nil
}
