// Package fan maps temperature to fan actuation with hysteresis.
//
// PWMController drives one proportional channel (duty 0..100).
// StepController switches a bank of fans on in order (0..N active).
// Both survive reconfiguration: Configure updates thresholds in place and
// only re-acquires outputs when the pins change.
package fan

import (
	"errors"

	"golang.org/x/exp/constraints"
)

// ErrOutput is returned when a controller cannot acquire its outputs.
var ErrOutput = errors.New("fan: output unavailable")

// LevelOutput drives a PWM channel.
type LevelOutput interface {
	SetLevel(duty int) error
	Close() error
}

// CountOutput drives an ordered bank of on/off fans.
type CountOutput interface {
	SetActiveCount(n int) error
	Len() int
	Close() error
}

// PWMOpener acquires a PWM channel on pin at freq Hz.
type PWMOpener func(pin, freq int) (LevelOutput, error)

// StepOpener acquires one output per pin, in order.
type StepOpener func(pins []int) (CountOutput, error)

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
