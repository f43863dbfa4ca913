package fan

import (
	"fmt"
	"math"

	"github.com/sweeney/envnode/internal/config"
	"github.com/sweeney/envnode/internal/logging"
)

// PWMController sets a duty cycle proportional to temperature between
// TempMin and TempMax, with a hysteresis band around TempMin.
type PWMController struct {
	cfg    config.FanPWM
	open   PWMOpener
	logger logging.Logger

	out     LevelOutput
	outPin  int
	outFreq int

	duty     int
	lastTemp *float64
}

// NewPWM builds a controller and applies cfg. An enabled controller whose
// output cannot be acquired is an error.
func NewPWM(cfg config.FanPWM, open PWMOpener, logger logging.Logger) (*PWMController, error) {
	c := &PWMController{open: open, logger: logger}
	logger.Printf("fan pwm: initializing")
	if err := c.Configure(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure applies cfg. The current duty is kept unless the output is
// re-acquired or the controller is disabled.
func (c *PWMController) Configure(cfg config.FanPWM) error {
	c.cfg = cfg
	c.logger.Printf("fan pwm: enabled=%t pin=%d range=%.1fC..%.1fC", cfg.Enabled, cfg.PWMPin, cfg.TempMin, cfg.TempMax)

	if !cfg.Enabled {
		c.stop()
		return nil
	}
	if !c.TryInit() {
		return fmt.Errorf("%w: pwm pin %d", ErrOutput, cfg.PWMPin)
	}
	return nil
}

// TryInit acquires the PWM output if it is not already held on the
// configured pin and frequency. It reports whether an output is held.
func (c *PWMController) TryInit() bool {
	if c.out != nil && c.outPin == c.cfg.PWMPin && c.outFreq == c.cfg.PWMFreq {
		return true
	}
	c.release()

	out, err := c.open(c.cfg.PWMPin, c.cfg.PWMFreq)
	if err != nil {
		c.logger.Printf("fan pwm: init failed: %v", err)
		return false
	}
	c.out, c.outPin, c.outFreq = out, c.cfg.PWMPin, c.cfg.PWMFreq
	c.duty = 0
	if err := out.SetLevel(0); err != nil {
		c.logger.Printf("fan pwm: set duty 0%%: %v", err)
	}
	c.logger.Printf("fan pwm: output on pin %d at %dHz", c.outPin, c.outFreq)
	return true
}

// Update feeds a temperature and returns the resulting duty percent.
func (c *PWMController) Update(tempC float64) int {
	if !c.cfg.Enabled || c.out == nil {
		return 0
	}

	if c.cfg.ManualOverride.Enabled {
		fixed := clamp(c.cfg.ManualOverride.ManualDutyCycle, 0, 100)
		if fixed != c.duty {
			c.setDuty(fixed)
			c.logger.Printf("fan pwm: manual override %d%%", fixed)
		}
		return c.duty
	}

	t := tempC
	c.lastTemp = &t

	next := c.target(tempC)
	if next != c.duty {
		c.setDuty(next)
		c.logger.Printf("fan pwm: duty %d%% at %.1fC", c.duty, tempC)
	}
	return c.duty
}

func (c *PWMController) target(t float64) int {
	cfg := c.cfg
	h := cfg.Hysteresis
	switch {
	case c.duty == 0 && t < cfg.TempMin+h:
		return 0
	case c.duty > 0 && t < cfg.TempMin-h:
		return 0
	case t >= cfg.TempMax:
		return clamp(cfg.FanMaxDuty, 0, 100)
	case t <= cfg.TempMin:
		// Inside the band below TempMin while running: hold.
		return c.duty
	}
	factor := (t - cfg.TempMin) / (cfg.TempMax - cfg.TempMin)
	duty := cfg.FanMinDuty + int(math.Floor(factor*float64(cfg.FanMaxDuty-cfg.FanMinDuty)))
	return clamp(duty, 0, 100)
}

func (c *PWMController) setDuty(duty int) {
	duty = clamp(duty, 0, 100)
	if c.out == nil {
		c.duty = 0
		return
	}
	if err := c.out.SetLevel(duty); err != nil {
		c.logger.Printf("fan pwm: set duty %d%%: %v", duty, err)
		return
	}
	c.duty = duty
}

func (c *PWMController) stop() {
	if c.out != nil {
		c.setDuty(0)
	}
	c.duty = 0
}

func (c *PWMController) release() {
	if c.out == nil {
		return
	}
	c.setDuty(0)
	if err := c.out.Close(); err != nil {
		c.logger.Printf("fan pwm: release: %v", err)
	}
	c.out = nil
	c.duty = 0
}

// Close stops the fan and releases the output.
func (c *PWMController) Close() error {
	c.release()
	c.logger.Printf("fan pwm: deinitialized")
	return nil
}

// Duty returns the current duty percent.
func (c *PWMController) Duty() int { return c.duty }

// Enabled reports whether temperature control is enabled.
func (c *PWMController) Enabled() bool { return c.cfg.Enabled }

// LastTemperature returns the last temperature fed to Update, if any.
func (c *PWMController) LastTemperature() (float64, bool) {
	if c.lastTemp == nil {
		return 0, false
	}
	return *c.lastTemp, true
}
