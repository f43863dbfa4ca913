// Package mqtt provides the broker transport with abstraction for testing.
package mqtt

import (
	"github.com/sweeney/envnode/internal/config"
)

// DefaultBaseTopic is used when mqtt_config has no base_topic.
const DefaultBaseTopic = "home/sensors"

// Transport publishes readings to the broker.
type Transport interface {
	// EnsureConnected connects if needed, rate-limited by the reconnect
	// delay. It reports whether the transport is connected afterwards.
	EnsureConnected() bool

	// Publish sends a reading payload to the device topic. It returns
	// false on failure rather than an error; failed payloads are buffered
	// and replayed after the next successful connect.
	Publish(payload []byte) bool

	// PublishRaw sends payload to topic without buffering or logging.
	PublishRaw(topic string, payload []byte) bool

	// Config returns the configuration the transport was built from.
	Config() *config.MQTT

	// Close disconnects from the broker.
	Close() error
}

// TopicFor returns the device topic "<base>/<deviceID>".
func TopicFor(cfg *config.MQTT, deviceID string) string {
	base := DefaultBaseTopic
	if cfg != nil && cfg.BaseTopic != "" {
		base = cfg.BaseTopic
	}
	return base + "/" + deviceID
}
