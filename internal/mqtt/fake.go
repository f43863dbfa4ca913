package mqtt

import (
	"github.com/sweeney/envnode/internal/config"
)

// FakeTransport records publishes for test assertions.
type FakeTransport struct {
	// Cfg is returned by Config.
	Cfg *config.MQTT

	// Payloads contains every payload passed to Publish, successful or not.
	Payloads [][]byte

	// RawTopics and RawPayloads record PublishRaw calls.
	RawTopics   []string
	RawPayloads [][]byte

	// Connected controls EnsureConnected.
	Connected bool

	// FailPublish makes Publish return false.
	FailPublish bool

	// EnsureCalls counts EnsureConnected calls.
	EnsureCalls int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeTransport creates a connected FakeTransport for cfg.
func NewFakeTransport(cfg *config.MQTT) *FakeTransport {
	return &FakeTransport{Cfg: cfg, Connected: true}
}

// EnsureConnected reports Connected.
func (f *FakeTransport) EnsureConnected() bool {
	f.EnsureCalls++
	return f.Connected
}

// Publish records the payload.
func (f *FakeTransport) Publish(payload []byte) bool {
	f.Payloads = append(f.Payloads, payload)
	return f.Connected && !f.FailPublish
}

// PublishRaw records the topic and payload.
func (f *FakeTransport) PublishRaw(topic string, payload []byte) bool {
	f.RawTopics = append(f.RawTopics, topic)
	f.RawPayloads = append(f.RawPayloads, payload)
	return f.Connected
}

// Config returns Cfg.
func (f *FakeTransport) Config() *config.MQTT { return f.Cfg }

// Close marks the transport as closed.
func (f *FakeTransport) Close() error {
	f.Closed = true
	return nil
}
