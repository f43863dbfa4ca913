// Package config loads the device's runtime configuration from the shared
// configuration document and validates it.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid configuration")

	// ErrDeviceNotFound is returned when the document has no entry for the device.
	ErrDeviceNotFound = errors.New("device not found in configuration")
)

// Device is the merged configuration for one device.
// Pointer scalars are nil when the key was absent from the document.
type Device struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Enabled  *bool  `json:"enabled"`

	HeartbeatPublishPeriod *Millis `json:"heartbeat_publish_period"`
	MQTTReconnectDelay     *Millis `json:"mqtt_reconnect_delay"`
	MotionCooldown         *Millis `json:"motion_cooldown_wait_period"`
	MotionCheckPeriod      *Millis `json:"motion_check_period"`
	SwitchCheckPeriod      *Millis `json:"switch_check_period"`
	TemperatureCheckPeriod *Millis `json:"temperature_check_period"`
	ConfigCheckPeriod      *Millis `json:"check_config_file_period"`

	MQTT         *MQTT         `json:"mqtt_config"`
	API          *API          `json:"api_config"`
	Kafka        *Kafka        `json:"kafka_config"`
	RemoteLogger *RemoteLogger `json:"remote_logger"`

	FanPWM  FanPWM  `json:"fan_pwm_controller_config"`
	FanStep FanStep `json:"fan_step_controller_config"`

	I2CTempSensorPins *I2CPins `json:"i2c_temp_sensor_pins"`
	MotionSensorPin   *Pin     `json:"motion_sensor_pin"`
	SwitchSensorPin   *Pin     `json:"switch_sensor_pin"`
	OneWirePin        *Pin     `json:"onewire_ds18b20_pin"`

	// Fingerprint identifies the document body this config was parsed from.
	Fingerprint uint64 `json:"-"`
}

// MQTT configures the broker transport.
type MQTT struct {
	Enabled               *bool  `json:"enabled"`
	Broker                string `json:"broker"`
	Port                  int    `json:"port"`
	User                  string `json:"user"`
	Password              string `json:"password"`
	BaseTopic             string `json:"base_topic"`
	ReconnectDelaySeconds *int   `json:"reconnect_delay_seconds"`
}

// API configures the HTTP ingest transport. Required keys are checked when
// the transport is built, not at load.
type API struct {
	Enabled      *bool   `json:"enabled"`
	URL          *string `json:"url"`
	APIKey       *string `json:"api_key"`
	TimeoutMS    *int    `json:"timeout_ms"`
	RetryDelayMS *int    `json:"retry_delay_ms"`
}

// Kafka configures the optional broker transport.
type Kafka struct {
	Enabled *bool    `json:"enabled"`
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// RemoteLogger configures log forwarding.
type RemoteLogger struct {
	MQTT struct {
		Enabled   bool   `json:"enabled"`
		BaseTopic string `json:"base_topic"`
	} `json:"mqtt"`
	HTTP *struct {
		Enabled *bool  `json:"enabled"`
		URL     string `json:"url"`
	} `json:"http"`
}

// ManualOverride pins a fan controller to a fixed output.
type ManualOverride struct {
	Enabled         bool `json:"enabled"`
	ManualDutyCycle int  `json:"manual_dutycycle"`
	FansActive      int  `json:"fans_active"`
}

// FanPWM configures the proportional fan controller.
type FanPWM struct {
	Enabled        bool           `json:"enabled"`
	ManualOverride ManualOverride `json:"manual_override"`
	PWMPin         int            `json:"pwm_pin"`
	PWMFreq        int            `json:"pwm_freq"`
	TempMin        float64        `json:"temp_min"`
	TempMax        float64        `json:"temp_max"`
	FanMinDuty     int            `json:"fan_min_duty"`
	FanMaxDuty     int            `json:"fan_max_duty"`
	Hysteresis     float64        `json:"hysteresis"`
}

// FanStep configures the discrete step fan controller.
type FanStep struct {
	Enabled        bool           `json:"enabled"`
	ManualOverride ManualOverride `json:"manual_override"`
	Pins           []int          `json:"pins"`
	TempMin        float64        `json:"temp_min"`
	TempMax        float64        `json:"temp_max"`
	Hysteresis     float64        `json:"hysteresis"`
	TempStepSize   *float64       `json:"temp_step_size"`
}

// I2CPins names the temperature sensor bus. SCL and SDA are informational
// on Linux, where the bus is opened by name.
type I2CPins struct {
	SCL int    `json:"scl"`
	SDA int    `json:"sda"`
	Bus string `json:"bus"`
}

// Pin is a GPIO line number written either as an integer or as {"pin": n}.
type Pin int

// UnmarshalJSON implements json.Unmarshaler.
func (p *Pin) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj map[string]int
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		for _, key := range []string{"pin", "PIN"} {
			if v, ok := obj[key]; ok {
				*p = Pin(v)
				return nil
			}
		}
		return fmt.Errorf("pin object has no \"pin\" key: %s", data)
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Pin(v)
	return nil
}

var pinKeys = []string{
	"i2c_temp_sensor_pins",
	"motion_sensor_pin",
	"switch_sensor_pin",
	"onewire_ds18b20_pin",
}

var fanPWMRequired = []string{
	"enabled", "manual_override", "pwm_pin", "pwm_freq",
	"temp_min", "temp_max", "fan_min_duty", "fan_max_duty", "hysteresis",
}

var fanStepRequired = []string{
	"enabled", "manual_override", "pins", "temp_min", "temp_max", "hysteresis",
}

type document struct {
	DeviceGlobal map[string]json.RawMessage   `json:"device_global_config"`
	SystemGlobal map[string]json.RawMessage   `json:"system_global_config"`
	DeviceList   []map[string]json.RawMessage `json:"device_list"`
}

// Parse extracts, merges and validates the configuration for deviceID from
// the document body.
func Parse(body []byte, deviceID string) (*Device, error) {
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse document: %v", ErrInvalid, err)
	}

	entry, ok := findDevice(doc.DeviceList, deviceID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceID)
	}

	merged := make(map[string]json.RawMessage)
	for _, layer := range []map[string]json.RawMessage{doc.DeviceGlobal, doc.SystemGlobal, entry} {
		for k, v := range layer {
			merged[k] = v
		}
	}
	for _, key := range pinKeys {
		if v, ok := doc.DeviceGlobal[key]; ok {
			merged[key] = v
		}
	}

	if err := requireKeys(merged, "fan_pwm_controller_config", fanPWMRequired); err != nil {
		return nil, err
	}
	if err := requireKeys(merged, "fan_step_controller_config", fanStepRequired); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var dev Device
	if err := json.Unmarshal(raw, &dev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := dev.Validate(); err != nil {
		return nil, err
	}
	dev.Fingerprint = Fingerprint(body)
	return &dev, nil
}

func findDevice(list []map[string]json.RawMessage, deviceID string) (map[string]json.RawMessage, bool) {
	for _, entry := range list {
		var id string
		if err := json.Unmarshal(entry["device_id"], &id); err != nil {
			continue
		}
		if id == deviceID {
			return entry, true
		}
	}
	return nil, false
}

func requireKeys(merged map[string]json.RawMessage, block string, keys []string) error {
	raw, ok := merged[block]
	if !ok {
		return fmt.Errorf("%w: missing %s", ErrInvalid, block)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, block, err)
	}
	var missing []string
	for _, k := range keys {
		if _, ok := fields[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s missing required keys: %s", ErrInvalid, block, strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks cross-field constraints.
func (d *Device) Validate() error {
	var problems []string
	if d.FanPWM.TempMax <= d.FanPWM.TempMin {
		problems = append(problems, "fan_pwm_controller_config: temp_max must exceed temp_min")
	}
	if d.FanPWM.FanMaxDuty < d.FanPWM.FanMinDuty {
		problems = append(problems, "fan_pwm_controller_config: fan_max_duty below fan_min_duty")
	}
	if d.FanStep.TempMax <= d.FanStep.TempMin {
		problems = append(problems, "fan_step_controller_config: temp_max must exceed temp_min")
	}
	if d.FanStep.TempStepSize != nil && *d.FanStep.TempStepSize <= 0 {
		problems = append(problems, "fan_step_controller_config: temp_step_size must be positive")
	}
	if d.MQTT.IsEnabled() {
		if d.MQTT.Broker == "" {
			problems = append(problems, "mqtt_config: broker required when enabled")
		}
		if d.MQTT.Port <= 0 {
			problems = append(problems, "mqtt_config: port required when enabled")
		}
	}
	if d.Kafka.IsEnabled() && (len(d.Kafka.Brokers) == 0 || d.Kafka.Topic == "") {
		problems = append(problems, "kafka_config: brokers and topic required when enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// DisplayName returns the configured name, falling back to the device id.
func (d *Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.DeviceID
}

// IsEnabled reports whether the block is present and enabled.
func (m *MQTT) IsEnabled() bool {
	return m != nil && m.Enabled != nil && *m.Enabled
}

// IsEnabled reports whether the block is present and enabled.
func (a *API) IsEnabled() bool {
	return a != nil && a.Enabled != nil && *a.Enabled
}

// IsEnabled reports whether the block is present and enabled.
func (k *Kafka) IsEnabled() bool {
	return k != nil && k.Enabled != nil && *k.Enabled
}
