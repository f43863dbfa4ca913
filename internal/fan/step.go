package fan

import (
	"fmt"
	"slices"

	"github.com/sweeney/envnode/internal/config"
	"github.com/sweeney/envnode/internal/logging"
)

// StepController turns fans on one at a time as temperature crosses evenly
// spaced thresholds. Hysteresis only applies while at least one fan runs.
type StepController struct {
	cfg    config.FanStep
	open   StepOpener
	logger logging.Logger

	out     CountOutput
	outPins []int

	thresholds []float64
	active     int
	lastTemp   *float64
}

// NewStep builds a controller and applies cfg.
func NewStep(cfg config.FanStep, open StepOpener, logger logging.Logger) (*StepController, error) {
	c := &StepController{open: open, logger: logger}
	logger.Printf("fan step: initializing")
	if err := c.Configure(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure applies cfg and recomputes thresholds.
func (c *StepController) Configure(cfg config.FanStep) error {
	c.cfg = cfg
	c.thresholds = Thresholds(cfg)
	c.logger.Printf("fan step: enabled=%t pins=%v thresholds=%v", cfg.Enabled, cfg.Pins, c.thresholds)

	if !cfg.Enabled {
		c.stop()
		return nil
	}
	if !c.TryInit() {
		return fmt.Errorf("%w: step pins %v", ErrOutput, cfg.Pins)
	}
	return nil
}

// Thresholds returns the activation temperature of each fan in cfg.
func Thresholds(cfg config.FanStep) []float64 {
	n := len(cfg.Pins)
	if n == 0 {
		return nil
	}
	step := (cfg.TempMax - cfg.TempMin) / float64(n+1)
	if cfg.TempStepSize != nil {
		step = *cfg.TempStepSize
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = min(cfg.TempMin+float64(i+1)*step, cfg.TempMax)
	}
	return out
}

// TryInit acquires the fan outputs unless they are already held on the
// configured pins. It reports whether outputs are held.
func (c *StepController) TryInit() bool {
	if c.out != nil && slices.Equal(c.outPins, c.cfg.Pins) {
		return true
	}
	c.release()

	out, err := c.open(c.cfg.Pins)
	if err != nil {
		c.logger.Printf("fan step: init failed: %v", err)
		return false
	}
	c.out = out
	c.outPins = slices.Clone(c.cfg.Pins)
	c.active = 0
	if err := out.SetActiveCount(0); err != nil {
		c.logger.Printf("fan step: set 0 active: %v", err)
	}
	c.logger.Printf("fan step: initialized %d fan outputs", out.Len())
	return true
}

// Update feeds a temperature and returns the number of active fans.
func (c *StepController) Update(tempC float64) int {
	if !c.cfg.Enabled || c.out == nil {
		return 0
	}
	t := tempC
	c.lastTemp = &t
	total := len(c.thresholds)

	if c.cfg.ManualOverride.Enabled {
		fixed := clamp(c.cfg.ManualOverride.FansActive, 0, total)
		if fixed != c.active {
			c.setActive(fixed)
			c.logger.Printf("fan step: manual override %d active", fixed)
		}
		return c.active
	}

	// Hysteresis lowers only the thresholds of fans already running, so it
	// delays switching off and never brings the next fan on early.
	next := 0
	for i, th := range c.thresholds {
		if i < c.active {
			th -= c.cfg.Hysteresis
		}
		if tempC >= th {
			next = i + 1
		}
	}
	next = min(next, total)

	if next != c.active {
		c.setActive(next)
		c.logger.Printf("fan step: %d active at %.1fC", c.active, tempC)
	}
	return c.active
}

func (c *StepController) setActive(n int) {
	if c.out == nil {
		c.active = 0
		return
	}
	n = clamp(n, 0, c.out.Len())
	if err := c.out.SetActiveCount(n); err != nil {
		c.logger.Printf("fan step: set %d active: %v", n, err)
		return
	}
	c.active = n
}

func (c *StepController) stop() {
	if c.out != nil {
		c.setActive(0)
	}
	c.active = 0
}

func (c *StepController) release() {
	if c.out == nil {
		return
	}
	c.setActive(0)
	if err := c.out.Close(); err != nil {
		c.logger.Printf("fan step: release: %v", err)
	}
	c.out = nil
	c.outPins = nil
	c.active = 0
}

// Close turns every fan off and releases the outputs.
func (c *StepController) Close() error {
	c.release()
	c.logger.Printf("fan step: deinitialized")
	return nil
}

// ActiveFans returns the number of fans currently on.
func (c *StepController) ActiveFans() int { return c.active }

// Enabled reports whether temperature control is enabled.
func (c *StepController) Enabled() bool { return c.cfg.Enabled }

// CurrentThresholds returns the activation temperatures in use.
func (c *StepController) CurrentThresholds() []float64 {
	return slices.Clone(c.thresholds)
}
