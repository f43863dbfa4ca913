package scheduler

import (
	"math"
	"time"

	"github.com/sweeney/envnode/internal/logic"
	"github.com/sweeney/envnode/internal/payload"
	"github.com/sweeney/envnode/internal/timing"
)

// publish evaluates the triggers and, when one fires on an enabled device,
// hands the payload to every enabled transport. Timestamps advance whatever
// the transports report.
func (s *Scheduler) publish(now timing.Ticks) {
	if s.deps.RSSI != nil {
		if rssi, err := s.deps.RSSI(); err == nil {
			s.readings.WifiRSSI = &rssi
		}
	}
	s.readings.UptimeSeconds = s.uptime.Seconds(now)

	dec := s.detector.Evaluate(now)
	if dec.MotionSuppressed {
		s.logger.Printf("scheduler: motion suppressed, cooldown %ds remaining", int(math.Ceil(dec.Remaining.Seconds())))
	}
	if dec.SwitchDropped {
		s.logger.Printf("scheduler: switch change superseded by motion event")
	}
	if dec.Event == logic.EventNone || !s.set.Enabled {
		return
	}

	s.readings.Uptime = s.uptime.String(now)
	r := s.readings.Clone()
	fanPWM, fansActive := intOrZero(r.FanPWM), intOrZero(r.FansActive)
	r.FanPWM, r.FansActive = &fanPWM, &fansActive

	event := string(dec.Event)
	wall := s.clock.Now()
	msg, err := payload.Build(s.deps.DeviceID, r, event, wall)
	if err != nil {
		s.logger.Printf("scheduler: build payload: %v", err)
		return
	}
	body, err := payload.Encode(msg)
	if err != nil {
		s.logger.Printf("scheduler: encode payload: %v", err)
		return
	}
	s.logger.Printf("payload: %s", body)

	if s.set.MQTTEnabled && s.mqtt != nil {
		ok := s.mqtt.Publish(body)
		s.deps.Metrics.ObservePublish("mqtt", ok)
		if !ok {
			s.logger.Printf("scheduler: mqtt publish failed")
		}
	}
	if s.set.APIEnabled && s.api != nil {
		s.publishAPI(r, event, wall)
	}
	if s.set.KafkaEnabled && s.kafka != nil {
		ok := s.kafka.Publish(body)
		s.deps.Metrics.ObservePublish("kafka", ok)
	}

	s.detector.Published(dec)
	s.deps.Metrics.ObserveEvent(event)
	if s.deps.Tracker != nil {
		s.deps.Tracker.RecordEvent(event, wall)
	}
}

func (s *Scheduler) publishAPI(r payload.Readings, event string, wall time.Time) {
	msg, err := payload.BuildAPI(s.deps.DeviceID, r, event, wall)
	if err != nil {
		s.logger.Printf("scheduler: build api payload: %v", err)
		return
	}
	body, err := payload.Encode(msg)
	if err != nil {
		s.logger.Printf("scheduler: encode api payload: %v", err)
		return
	}
	ok := s.api.Publish(body)
	s.deps.Metrics.ObservePublish("api", ok)
}
