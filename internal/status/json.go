package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	DeviceID      string       `json:"device_id"`
	Name          string       `json:"name"`
	Enabled       bool         `json:"enabled"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	LastEvent     string       `json:"last_event,omitempty"`
	LastPublish   string       `json:"last_publish,omitempty"`
	Readings      ReadingsJSON `json:"readings"`
	Transports    Transports   `json:"transports"`
	Counts        CountsJSON   `json:"event_counts"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingsJSON is the last known value of each quantity; null when never read.
type ReadingsJSON struct {
	TemperatureF *float64 `json:"temperature_f"`
	TemperatureC *float64 `json:"temperature_c"`
	Humidity     *float64 `json:"humidity"`
	PressureInHg *float64 `json:"pressure_inhg"`
	Motion       string   `json:"motion"`
	Switch       string   `json:"switch"`
	SensorType   string   `json:"sensor_type"`
	FanPWM       *int     `json:"fan_pwm"`
	FansActive   *int     `json:"fans_active_level"`
	WifiRSSI     *int     `json:"wifi_rssi"`
	Uptime       string   `json:"uptime"`
}

// Transports reports which publish paths the current config enables.
type Transports struct {
	MQTT          bool   `json:"mqtt"`
	MQTTConnected bool   `json:"mqtt_connected"`
	Broker        string `json:"broker,omitempty"`
	API           bool   `json:"api"`
	Kafka         bool   `json:"kafka"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Heartbeat int `json:"heartbeat"`
	Motion    int `json:"motion"`
	Switch    int `json:"switch"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ConfigURL    string `json:"config_url"`
	HTTPAddr     string `json:"http_addr"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Reconfigures int    `json:"reconfigurations"`
	Version      string `json:"version"`
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	r := snap.Readings
	inner := StatusInner{
		DeviceID:      snap.Device.ID,
		Name:          snap.Device.Name,
		Enabled:       snap.Device.Enabled,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		LastEvent:     snap.LastEvent,
		Readings: ReadingsJSON{
			TemperatureF: r.TemperatureF,
			TemperatureC: r.TemperatureC,
			Humidity:     r.Humidity,
			PressureInHg: r.PressureInHg,
			Motion:       r.Motion,
			Switch:       r.Switch,
			SensorType:   r.SensorType,
			FanPWM:       r.FanPWM,
			FansActive:   r.FansActive,
			WifiRSSI:     r.WifiRSSI,
			Uptime:       r.Uptime,
		},
		Transports: Transports{
			MQTT:          snap.Device.MQTT,
			MQTTConnected: snap.MQTTConnected,
			Broker:        snap.Device.Broker,
			API:           snap.Device.API,
			Kafka:         snap.Device.Kafka,
		},
		Counts: CountsJSON{
			Heartbeat: snap.Counts.Heartbeat,
			Motion:    snap.Counts.Motion,
			Switch:    snap.Counts.Switch,
		},
		Config: ConfigJSON{
			ConfigURL:    snap.Config.ConfigURL,
			HTTPAddr:     snap.Config.HTTPAddr,
			HeartbeatMs:  snap.Device.HeartbeatMs,
			Reconfigures: snap.Reconfigures,
			Version:      snap.Config.Version,
		},
	}
	if !snap.LastPublish.IsZero() {
		inner.LastPublish = snap.LastPublish.UTC().Format(time.RFC3339)
	}

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}
