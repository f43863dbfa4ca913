package fan

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// periphPWM drives a hardware PWM capable pin through periph.io.
type periphPWM struct {
	pin  gpio.PinIO
	freq physic.Frequency
}

// OpenPWM is the PWMOpener for real hardware. pin is a BCM number.
func OpenPWM(pin, freq int) (LevelOutput, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	name := fmt.Sprintf("GPIO%d", pin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pwm pin %s not found", name)
	}
	out := &periphPWM{pin: p, freq: physic.Frequency(freq) * physic.Hertz}
	if err := out.SetLevel(0); err != nil {
		return nil, err
	}
	return out, nil
}

// SetLevel sets duty in percent.
func (p *periphPWM) SetLevel(duty int) error {
	d := gpio.Duty(int64(gpio.DutyMax) * int64(clamp(duty, 0, 100)) / 100)
	if err := p.pin.PWM(d, p.freq); err != nil {
		return fmt.Errorf("pwm %s: %w", p.pin.Name(), err)
	}
	return nil
}

// Close stops PWM and leaves the pin driven low.
func (p *periphPWM) Close() error {
	if err := p.pin.Halt(); err != nil {
		return fmt.Errorf("halt %s: %w", p.pin.Name(), err)
	}
	return p.pin.Out(gpio.Low)
}
