// Package payload holds the readings snapshot and builds the outbound
// message shapes published by the transports.
package payload

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// Event types.
const (
	EventHeartbeat = "heartbeat"
	EventMotion    = "motion"
	EventSwitch    = "switch"
)

// Unknown is the initial value of string readings before their first read.
const Unknown = "UNKNOWN"

// TimestampFormat is ISO-8601 UTC at second precision.
const TimestampFormat = "2006-01-02T15:04:05Z"

// ErrNoEvent is returned when a message is built without an event type.
var ErrNoEvent = errors.New("payload: event type must be specified")

// Readings is the last known value of every reported quantity.
// Nil pointers are values never read successfully and serialize as null.
type Readings struct {
	TemperatureF  *float64
	TemperatureC  *float64
	Humidity      *float64
	PressureInHg  *float64
	Motion        string
	Switch        string
	SensorType    string
	FanPWM        *int
	FansActive    *int
	WifiRSSI      *int
	UptimeSeconds int64
	Uptime        string
	Version       string
}

// NewReadings returns a snapshot with every value unknown.
func NewReadings(version string) Readings {
	return Readings{
		Motion:     Unknown,
		Switch:     Unknown,
		SensorType: Unknown,
		Uptime:     "00:00:00:00",
		Version:    version,
	}
}

// Clone returns a copy that shares no pointers with r.
func (r Readings) Clone() Readings {
	c := r
	c.TemperatureF = clonePtr(r.TemperatureF)
	c.TemperatureC = clonePtr(r.TemperatureC)
	c.Humidity = clonePtr(r.Humidity)
	c.PressureInHg = clonePtr(r.PressureInHg)
	c.FanPWM = clonePtr(r.FanPWM)
	c.FansActive = clonePtr(r.FansActive)
	c.WifiRSSI = clonePtr(r.WifiRSSI)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Message is the broker payload. Field order is the wire order.
type Message struct {
	EventType       string   `json:"event_type"`
	DeviceID        string   `json:"device_id"`
	Temperature     *float64 `json:"temperature"`
	Humidity        *float64 `json:"humidity"`
	Pressure        *float64 `json:"pressure"`
	Motion          string   `json:"motion"`
	Switch          string   `json:"switch"`
	SensorType      string   `json:"sensor_type"`
	WifiRSSI        *int     `json:"wifi_rssi"`
	UptimeSeconds   int64    `json:"uptime_seconds"`
	FanPWM          *int     `json:"fan_pwm"`
	FansActiveLevel *int     `json:"fans_active_level"`
	Timestamp       string   `json:"timestamp"`
	Version         string   `json:"version"`
	Uptime          string   `json:"uptime"`
}

// APIMessage is the reduced shape posted to the HTTP ingest endpoint.
type APIMessage struct {
	EventType       string   `json:"event_type"`
	DeviceID        string   `json:"device_id"`
	Temperature     *float64 `json:"temperature"`
	SensorType      string   `json:"sensor_type"`
	WifiRSSI        *int     `json:"wifi_rssi"`
	UptimeSeconds   int64    `json:"uptime_seconds"`
	FanPWM          *int     `json:"fan_pwm"`
	FansActiveLevel *int     `json:"fans_active_level"`
	Timestamp       string   `json:"timestamp"`
	Version         string   `json:"version"`
}

// Build assembles the broker message for event from r.
func Build(deviceID string, r Readings, event string, now time.Time) (Message, error) {
	if event == "" {
		return Message{}, ErrNoEvent
	}
	return Message{
		EventType:       event,
		DeviceID:        deviceID,
		Temperature:     round(r.TemperatureF, 1),
		Humidity:        round(r.Humidity, 1),
		Pressure:        round(r.PressureInHg, 2),
		Motion:          orUnknown(r.Motion),
		Switch:          orUnknown(r.Switch),
		SensorType:      orUnknown(r.SensorType),
		WifiRSSI:        r.WifiRSSI,
		UptimeSeconds:   r.UptimeSeconds,
		FanPWM:          r.FanPWM,
		FansActiveLevel: r.FansActive,
		Timestamp:       now.UTC().Format(TimestampFormat),
		Version:         r.Version,
		Uptime:          r.Uptime,
	}, nil
}

// BuildAPI assembles the HTTP ingest message for event from r.
func BuildAPI(deviceID string, r Readings, event string, now time.Time) (APIMessage, error) {
	if event == "" {
		return APIMessage{}, ErrNoEvent
	}
	return APIMessage{
		EventType:       event,
		DeviceID:        deviceID,
		Temperature:     round(r.TemperatureF, 1),
		SensorType:      orUnknown(r.SensorType),
		WifiRSSI:        r.WifiRSSI,
		UptimeSeconds:   r.UptimeSeconds,
		FanPWM:          r.FanPWM,
		FansActiveLevel: r.FansActive,
		Timestamp:       now.UTC().Format(TimestampFormat),
		Version:         r.Version,
	}, nil
}

// Encode marshals a message to JSON.
func Encode(m any) ([]byte, error) {
	return json.Marshal(m)
}

func round(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	p := math.Pow(10, float64(places))
	r := math.Round(*v*p) / p
	return &r
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
