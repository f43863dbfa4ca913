// Package scheduler runs the sensor node's control loop: it polls the
// sensors on their own periods, drives the fans, decides when to publish,
// and applies configuration changes live.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/envnode/internal/api"
	"github.com/sweeney/envnode/internal/config"
	"github.com/sweeney/envnode/internal/display"
	"github.com/sweeney/envnode/internal/fan"
	"github.com/sweeney/envnode/internal/kafka"
	"github.com/sweeney/envnode/internal/logging"
	"github.com/sweeney/envnode/internal/logic"
	"github.com/sweeney/envnode/internal/metrics"
	"github.com/sweeney/envnode/internal/mqtt"
	"github.com/sweeney/envnode/internal/payload"
	"github.com/sweeney/envnode/internal/sensors"
	"github.com/sweeney/envnode/internal/status"
	"github.com/sweeney/envnode/internal/timing"
	"github.com/sweeney/envnode/internal/uptime"
)

// ConfigSource reports configuration changes. Check returns (nil, nil)
// when nothing changed.
type ConfigSource interface {
	Check(ctx context.Context) (*config.Device, error)
}

// SensorReader is the sensor facade.
type SensorReader interface {
	ReadMotion() (sensors.MotionResult, error)
	ReadSwitch() (sensors.SwitchResult, error)
	ReadTemperature() (sensors.TemperatureResult, error)
}

// DeviceLogger is the log sink the loop re-points on every reconfiguration.
type DeviceLogger interface {
	logging.Logger
	SetDeviceInfo(id, name string)
	SetPublisher(p logging.Publisher)
	ConfigureRemote(rc logging.RemoteConfig)
}

// Indicator is the alive LED.
type Indicator interface {
	Update(now timing.Ticks) bool
	Stop()
}

// Publisher is an optional transport that posts whole payloads.
type Publisher interface {
	Publish(payload []byte) bool
	Close() error
}

// Factories build the per-epoch transports and acquire fan outputs.
type Factories struct {
	MQTT  func(deviceID string, cfg *config.MQTT, reconnect time.Duration, logger logging.Logger) (mqtt.Transport, error)
	API   func(deviceID string, cfg *config.API, logger logging.Logger) (Publisher, error)
	Kafka func(deviceID string, cfg *config.Kafka, logger logging.Logger) (Publisher, error)
	PWM   fan.PWMOpener
	Step  fan.StepOpener
}

// DefaultFactories wires the real transports and the given fan openers.
func DefaultFactories(pwm fan.PWMOpener, step fan.StepOpener) Factories {
	return Factories{
		MQTT: func(id string, cfg *config.MQTT, reconnect time.Duration, logger logging.Logger) (mqtt.Transport, error) {
			c, err := mqtt.New(id, cfg, logger, mqtt.WithReconnectDelay(reconnect))
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		API: func(id string, cfg *config.API, logger logging.Logger) (Publisher, error) {
			c, err := api.New(id, cfg, logger)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Kafka: func(id string, cfg *config.Kafka, logger logging.Logger) (Publisher, error) {
			p, err := kafka.New(id, cfg, logger)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		PWM:  pwm,
		Step: step,
	}
}

// Deps are the collaborators the scheduler drives. Display, LED, RSSI,
// Tracker, Metrics and Sleep are optional.
type Deps struct {
	DeviceID  string
	Version   string
	Clock     timing.Clock
	Config    ConfigSource
	Sensors   SensorReader
	Logger    DeviceLogger
	Factories Factories

	Display display.Display
	LED     Indicator
	RSSI    func() (int, error)
	Tracker *status.Tracker
	Metrics *metrics.Metrics
	Sleep   func(ctx context.Context, d time.Duration) error
}

// Scheduler owns the readings snapshot, the transports and the fan
// controllers. It is not safe for concurrent use; Run is its only driver.
type Scheduler struct {
	deps   Deps
	logger DeviceLogger
	clock  timing.Clock

	cfg      *config.Device
	set      Settings
	readings payload.Readings
	uptime   *uptime.Tracker
	detector *logic.Detector

	mqtt   mqtt.Transport
	api    Publisher
	kafka  Publisher
	pwm    *fan.PWMController
	step   *fan.StepController
	mqttUp bool

	lastMotionCheck timing.Ticks
	lastSwitchCheck timing.Ticks
	lastTempCheck   timing.Ticks
	lastCfgCheck    timing.Ticks
}

// New builds a scheduler and applies initial through the reconfiguration
// path. An error means the initial configuration cannot run.
func New(deps Deps, initial *config.Device) (*Scheduler, error) {
	if deps.Clock == nil {
		deps.Clock = timing.NewSystemClock()
	}
	if deps.Display == nil {
		deps.Display = display.Nop{}
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}

	now := deps.Clock.Ticks()
	set := DefaultSettings()
	s := &Scheduler{
		deps:         deps,
		logger:       deps.Logger,
		clock:        deps.Clock,
		set:          set,
		readings:     payload.NewReadings(deps.Version),
		uptime:       uptime.New(now),
		detector:     logic.NewDetector(set.Heartbeat, set.MotionCooldown, now),
		lastCfgCheck: now,
	}
	if err := s.Reconfigure(initial, now); err != nil {
		s.teardown()
		return nil, err
	}
	// Every sensor check and the first motion event are due immediately
	// under the applied periods.
	s.detector.ArmMotion(now)
	s.lastMotionCheck = timing.Add(now, -s.set.MotionPeriod)
	s.lastSwitchCheck = timing.Add(now, -s.set.SwitchPeriod)
	s.lastTempCheck = timing.Add(now, -s.set.TempPeriod)
	return s, nil
}

// Run loops until ctx is cancelled or a fatal configuration error occurs.
// Resources are released before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.teardown()
	s.logger.Printf("scheduler: starting main loop")

	for {
		if ctx.Err() != nil {
			s.logger.Printf("scheduler: stop requested, exiting main loop")
			return nil
		}

		fatal, transient := s.iterateSafe(ctx)
		if fatal != nil {
			return fatal
		}
		pause := s.set.Pacing()
		if transient != nil {
			s.logger.Printf("scheduler: error in main loop: %v", transient)
			pause = ErrorBackoff
		}
		if err := s.deps.Sleep(ctx, pause); err != nil {
			s.logger.Printf("scheduler: stop requested, exiting main loop")
			return nil
		}
	}
}

// iterateSafe runs one iteration, converting a panic into a transient error.
func (s *Scheduler) iterateSafe(ctx context.Context) (fatal, transient error) {
	defer func() {
		if r := recover(); r != nil {
			transient = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.iterate(ctx), nil
}

// iterate performs one pass of the loop. Only fatal errors are returned.
func (s *Scheduler) iterate(ctx context.Context) error {
	now := s.clock.Ticks()
	s.uptime.Update(now)
	if s.deps.LED != nil {
		s.deps.LED.Update(now)
	}
	s.deps.Metrics.ObserveIteration()

	if err := s.maybeReloadConfig(ctx, now); err != nil {
		return err
	}

	if s.mqtt != nil && s.set.MQTTEnabled {
		s.mqttUp = s.mqtt.EnsureConnected()
	} else {
		s.mqttUp = false
	}

	s.readSensors(now)
	s.publish(now)
	s.report()
	return nil
}

func (s *Scheduler) maybeReloadConfig(ctx context.Context, now timing.Ticks) error {
	if !timing.Elapsed(now, s.lastCfgCheck, s.set.ConfigPeriod) {
		return nil
	}
	s.lastCfgCheck = now

	dev, err := s.deps.Config.Check(ctx)
	if err != nil {
		if errors.Is(err, config.ErrInvalid) || errors.Is(err, config.ErrDeviceNotFound) {
			return fmt.Errorf("scheduler: config check: %w", err)
		}
		s.logger.Printf("scheduler: config check failed: %v", err)
		return nil
	}
	if dev == nil {
		return nil
	}
	s.logger.Printf("scheduler: new config detected, reinitializing")
	return s.Reconfigure(dev, now)
}

func (s *Scheduler) readSensors(now timing.Ticks) {
	if timing.Elapsed(now, s.lastMotionCheck, s.set.MotionPeriod) {
		if s.set.Enabled {
			m, err := s.deps.Sensors.ReadMotion()
			s.deps.Metrics.ObserveRead("motion", err == nil)
			if err != nil {
				s.logger.Printf("sensors: %v", err)
			} else {
				s.readings.Motion = m.State
				s.detector.ObserveMotion(m.Detected)
			}
		}
		s.lastMotionCheck = now
	}

	if timing.Elapsed(now, s.lastSwitchCheck, s.set.SwitchPeriod) {
		if s.set.Enabled {
			sw, err := s.deps.Sensors.ReadSwitch()
			s.deps.Metrics.ObserveRead("switch", err == nil)
			if err != nil {
				s.logger.Printf("sensors: %v", err)
			} else {
				s.readings.Switch = sw.State
				s.detector.ObserveSwitch(sw.Changed)
			}
		}
		s.lastSwitchCheck = now
	}

	if timing.Elapsed(now, s.lastTempCheck, s.set.TempPeriod) {
		if s.set.Enabled {
			t, err := s.deps.Sensors.ReadTemperature()
			s.deps.Metrics.ObserveRead("temperature", err == nil)
			if err != nil {
				s.logger.Printf("sensors: %v", err)
			} else {
				s.applyTemperature(t)
			}
		}
		s.lastTempCheck = now
	}
}

// applyTemperature stores a good reading, feeds the fans and refreshes the
// headline.
func (s *Scheduler) applyTemperature(t sensors.TemperatureResult) {
	f, c := t.TemperatureF, t.TemperatureC()
	s.readings.TemperatureF = &f
	s.readings.TemperatureC = &c
	s.readings.Humidity = t.Humidity
	s.readings.PressureInHg = t.PressureInHg
	s.readings.SensorType = t.SensorType
	s.deps.Metrics.SetTemperature(c)

	if s.pwm != nil {
		duty := s.pwm.Update(c)
		s.readings.FanPWM = &duty
	}
	if s.step != nil {
		active := s.step.Update(c)
		s.readings.FansActive = &active
	}
	s.deps.Metrics.SetFans(intOrZero(s.readings.FanPWM), intOrZero(s.readings.FansActive))

	var pwm, step *int
	switch {
	case s.pwm != nil && s.pwm.Enabled():
		pwm = s.readings.FanPWM
	case s.step != nil && s.step.Enabled():
		step = s.readings.FansActive
	}
	s.deps.Display.ShowHeadline(display.Headline(f, pwm, step))
}

// report copies the loop state to the status tracker and metrics.
func (s *Scheduler) report() {
	s.deps.Metrics.SetMQTTConnected(s.mqttUp)
	if s.deps.Tracker == nil {
		return
	}
	s.deps.Tracker.SetReadings(s.readings)
	s.deps.Tracker.SetMQTTConnected(s.mqttUp)
}

// Settings returns the scalar settings of the current epoch.
func (s *Scheduler) Settings() Settings { return s.set }

// Readings returns a copy of the readings snapshot.
func (s *Scheduler) Readings() payload.Readings { return s.readings.Clone() }

// teardown releases every owned resource. It is safe to call twice.
func (s *Scheduler) teardown() {
	s.logger.SetPublisher(nil)
	s.closeTransports()
	if s.pwm != nil {
		if err := s.pwm.Close(); err != nil {
			s.logger.Printf("scheduler: fan pwm close: %v", err)
		}
		s.pwm = nil
	}
	if s.step != nil {
		if err := s.step.Close(); err != nil {
			s.logger.Printf("scheduler: fan step close: %v", err)
		}
		s.step = nil
	}
	if s.deps.LED != nil {
		s.deps.LED.Stop()
	}
	if err := s.deps.Display.Close(); err != nil {
		s.logger.Printf("scheduler: display close: %v", err)
	}
}

func (s *Scheduler) closeTransports() {
	if s.mqtt != nil {
		if err := s.mqtt.Close(); err != nil {
			s.logger.Printf("scheduler: mqtt close: %v", err)
		}
		s.mqtt = nil
	}
	if s.api != nil {
		s.api.Close()
		s.api = nil
	}
	if s.kafka != nil {
		if err := s.kafka.Close(); err != nil {
			s.logger.Printf("scheduler: %v", err)
		}
		s.kafka = nil
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
