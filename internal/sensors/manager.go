package sensors

import (
	"fmt"

	"github.com/sweeney/envnode/internal/gpio"
	"github.com/sweeney/envnode/internal/logging"
)

// MotionResult is one motion sample.
type MotionResult struct {
	State string
	// Detected is true on a LOW to HIGH transition since the previous sample.
	Detected bool
}

// SwitchResult is one switch sample.
type SwitchResult struct {
	State string
	// Changed is true when the state differs from the previous sample.
	Changed bool
}

// TemperatureResult is one temperature sample with its source.
type TemperatureResult struct {
	Reading
	SensorType string
}

// Manager is the uniform read surface over the inputs and the selected
// temperature sensor. A failed read returns an error and leaves the
// transition memory untouched.
type Manager struct {
	motion gpio.Input
	sw     gpio.Input
	temp   TemperatureSensor
	logger logging.Logger

	prevMotion string
	prevSwitch string
}

// NewManager wraps the inputs and samples their initial states. Any of
// motion, sw and temp may be nil, in which case the matching read fails.
func NewManager(motion, sw gpio.Input, temp TemperatureSensor, logger logging.Logger) *Manager {
	m := &Manager{motion: motion, sw: sw, temp: temp, logger: logger}
	if s, err := readLevel(motion); err == nil {
		m.prevMotion = s
	}
	if s, err := readLevel(sw); err == nil {
		m.prevSwitch = s
	}
	logger.Printf("sensors: initial motion=%q switch=%q", m.prevMotion, m.prevSwitch)
	return m
}

// ReadMotion samples the motion input.
func (m *Manager) ReadMotion() (MotionResult, error) {
	state, err := readLevel(m.motion)
	if err != nil {
		return MotionResult{}, fmt.Errorf("motion: %w", err)
	}
	detected := state == "HIGH" && m.prevMotion == "LOW"
	m.prevMotion = state
	return MotionResult{State: state, Detected: detected}, nil
}

// ReadSwitch samples the switch input. The first successful sample after
// a failed initial read is never reported as a change.
func (m *Manager) ReadSwitch() (SwitchResult, error) {
	state, err := readLevel(m.sw)
	if err != nil {
		return SwitchResult{}, fmt.Errorf("switch: %w", err)
	}
	changed := m.prevSwitch != "" && state != m.prevSwitch
	m.prevSwitch = state
	return SwitchResult{State: state, Changed: changed}, nil
}

// ReadTemperature samples the temperature sensor.
func (m *Manager) ReadTemperature() (TemperatureResult, error) {
	if m.temp == nil {
		return TemperatureResult{}, ErrNoSensor
	}
	r, err := m.temp.Read()
	if err != nil {
		return TemperatureResult{}, fmt.Errorf("%s: %w", m.temp.Type(), err)
	}
	return TemperatureResult{Reading: r, SensorType: m.temp.Type()}, nil
}

// SensorType returns the selected temperature sensor type, or "" if none.
func (m *Manager) SensorType() string {
	if m.temp == nil {
		return ""
	}
	return m.temp.Type()
}

// Close releases the inputs and the temperature sensor.
func (m *Manager) Close() error {
	var first error
	for _, in := range []gpio.Input{m.motion, m.sw} {
		if in == nil {
			continue
		}
		if err := in.Close(); err != nil && first == nil {
			first = err
		}
	}
	if m.temp != nil {
		if err := m.temp.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func readLevel(in gpio.Input) (string, error) {
	if in == nil {
		return "", fmt.Errorf("input not configured")
	}
	high, err := in.Read()
	if err != nil {
		return "", err
	}
	return gpio.Level(high), nil
}
