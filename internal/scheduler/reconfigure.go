package scheduler

import (
	"fmt"

	"github.com/sweeney/envnode/internal/config"
	"github.com/sweeney/envnode/internal/fan"
	"github.com/sweeney/envnode/internal/logging"
	"github.com/sweeney/envnode/internal/mqtt"
	"github.com/sweeney/envnode/internal/status"
	"github.com/sweeney/envnode/internal/timing"
)

// Reconfigure swaps the loop over to dev. The old transports are released
// before new ones are built; fan controllers are reconfigured in place. A
// returned error is fatal: the loop must not continue on a half-applied
// configuration.
func (s *Scheduler) Reconfigure(dev *config.Device, now timing.Ticks) error {
	id := s.deps.DeviceID

	s.logger.SetPublisher(nil)
	s.closeTransports()

	s.cfg = dev
	s.set = s.set.Merge(dev)
	s.detector.SetPeriods(s.set.Heartbeat, s.set.MotionCooldown)

	if s.set.MQTTEnabled {
		t, err := s.deps.Factories.MQTT(id, s.set.MQTT, s.set.ReconnectDelay, s.logger)
		if err != nil {
			return fmt.Errorf("scheduler: mqtt transport: %w", err)
		}
		s.mqtt = t
	}

	if s.set.APIEnabled {
		p, err := s.deps.Factories.API(id, s.set.API, s.logger)
		if err != nil {
			s.logger.Printf("scheduler: api init failed, disabled until next config: %v", err)
			s.set.APIEnabled = false
		} else {
			s.api = p
		}
	}

	if s.set.KafkaEnabled {
		p, err := s.deps.Factories.Kafka(id, s.set.Kafka, s.logger)
		if err != nil {
			s.logger.Printf("scheduler: kafka init failed, disabled until next config: %v", err)
			s.set.KafkaEnabled = false
		} else {
			s.kafka = p
		}
	}

	s.logger.SetDeviceInfo(id, dev.DisplayName())
	if s.mqtt != nil {
		s.logger.SetPublisher(s.mqtt)
	}
	s.logger.ConfigureRemote(remoteConfig(dev.RemoteLogger))

	if s.pwm == nil {
		s.logger.Printf("scheduler: initializing fan pwm controller")
		c, err := fan.NewPWM(dev.FanPWM, s.deps.Factories.PWM, s.logger)
		if err != nil {
			return fmt.Errorf("scheduler: fan pwm: %w", err)
		}
		s.pwm = c
	} else {
		s.logger.Printf("scheduler: reconfiguring fan pwm controller")
		if err := s.pwm.Configure(dev.FanPWM); err != nil {
			return fmt.Errorf("scheduler: fan pwm: %w", err)
		}
	}

	if s.step == nil {
		s.logger.Printf("scheduler: initializing fan step controller")
		c, err := fan.NewStep(dev.FanStep, s.deps.Factories.Step, s.logger)
		if err != nil {
			return fmt.Errorf("scheduler: fan step: %w", err)
		}
		s.step = c
	} else {
		s.logger.Printf("scheduler: reconfiguring fan step controller")
		if err := s.step.Configure(dev.FanStep); err != nil {
			return fmt.Errorf("scheduler: fan step: %w", err)
		}
	}

	s.detector.ScheduleHeartbeat(now, HeartbeatGrace)
	s.lastCfgCheck = now

	s.deps.Metrics.ObserveReconfigure()
	if s.deps.Tracker != nil {
		broker := ""
		if s.set.MQTT != nil {
			broker = fmt.Sprintf("%s:%d", s.set.MQTT.Broker, s.set.MQTT.Port)
		}
		s.deps.Tracker.SetDevice(status.Device{
			ID:          id,
			Name:        dev.DisplayName(),
			Enabled:     s.set.Enabled,
			Broker:      broker,
			HeartbeatMs: s.set.Heartbeat.Milliseconds(),
			MQTT:        s.mqtt != nil,
			API:         s.api != nil,
			Kafka:       s.kafka != nil,
		})
	}
	s.logger.Printf("scheduler: config applied: enabled=%t mqtt=%t api=%t kafka=%t heartbeat=%v",
		s.set.Enabled, s.mqtt != nil, s.api != nil, s.kafka != nil, s.set.Heartbeat)
	return nil
}

// Transport returns the current network transport, or nil.
func (s *Scheduler) Transport() mqtt.Transport { return s.mqtt }

func remoteConfig(rl *config.RemoteLogger) logging.RemoteConfig {
	if rl == nil {
		return logging.RemoteConfig{}
	}
	rc := logging.RemoteConfig{
		MQTTEnabled:   rl.MQTT.Enabled,
		MQTTBaseTopic: rl.MQTT.BaseTopic,
	}
	if rl.HTTP != nil {
		rc.HTTPEnabled = rl.HTTP.Enabled != nil && *rl.HTTP.Enabled
		rc.HTTPURL = rl.HTTP.URL
	}
	return rc
}
