package mqtt

import (
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/envnode/internal/config"
	"github.com/sweeney/envnode/internal/logging"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakePaho overrides the paho.Client methods the transport uses.
type fakePaho struct {
	paho.Client

	opts        *paho.ClientOptions
	connected   bool
	connectErr  error
	slowConnect bool
	publishErr  error
	topics      []string
	payloads    []string
	disconnects int
}

func (f *fakePaho) IsConnected() bool { return f.connected }

func (f *fakePaho) Connect() paho.Token {
	if f.connectErr == nil {
		f.connected = true
	}
	return &fakeToken{err: f.connectErr, timeout: f.slowConnect}
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	if f.publishErr != nil {
		return &fakeToken{err: f.publishErr}
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, string(payload.([]byte)))
	return &fakeToken{}
}

func (f *fakePaho) Disconnect(uint) {
	f.connected = false
	f.disconnects++
}

type harness struct {
	clock   time.Time
	clients []*fakePaho
	next    func() *fakePaho
}

func (h *harness) factory(opts *paho.ClientOptions) paho.Client {
	fp := &fakePaho{opts: opts}
	if h.next != nil {
		fp = h.next()
		fp.opts = opts
	}
	h.clients = append(h.clients, fp)
	return fp
}

func testConfig() *config.MQTT {
	enabled := true
	return &config.MQTT{Enabled: &enabled, Broker: "10.0.0.5", Port: 1883, User: "node", Password: "pw"}
}

func newTestClient(t *testing.T, cfg *config.MQTT) (*Client, *harness) {
	t.Helper()
	h := &harness{clock: time.Unix(1000, 0)}
	c, err := New("Office00", cfg, logging.Discard(),
		WithClientFactory(h.factory),
		WithClock(func() time.Time { return h.clock }),
		WithReconnectDelay(10*time.Second),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, h
}

func TestNewValidates(t *testing.T) {
	if _, err := New("d", nil, logging.Discard()); err == nil {
		t.Error("nil config: expected error")
	}
	if _, err := New("d", &config.MQTT{Port: 1883}, logging.Discard()); err == nil {
		t.Error("missing broker: expected error")
	}
}

func TestTopic(t *testing.T) {
	c, _ := newTestClient(t, testConfig())
	if c.Topic() != "home/sensors/Office00" {
		t.Errorf("default topic: got %q", c.Topic())
	}

	cfg := testConfig()
	cfg.BaseTopic = "az_iots3/data"
	c, _ = newTestClient(t, cfg)
	if c.Topic() != "az_iots3/data/Office00" {
		t.Errorf("custom topic: got %q", c.Topic())
	}
	if c.Config() != cfg {
		t.Error("Config should return the pointer the transport was built from")
	}
}

func TestConnectTimeoutDisconnectsClient(t *testing.T) {
	c, h := newTestClient(t, testConfig())
	h.next = func() *fakePaho { return &fakePaho{slowConnect: true} }

	if c.EnsureConnected() {
		t.Fatal("expected timed-out connect to fail")
	}
	fp := h.clients[0]
	if fp.connected || fp.disconnects != 1 {
		t.Errorf("timed-out client left running: connected=%t disconnects=%d", fp.connected, fp.disconnects)
	}
	if c.IsConnected() {
		t.Error("transport reports connected after timeout")
	}
}

func TestConnectErrorDisconnectsClient(t *testing.T) {
	c, h := newTestClient(t, testConfig())
	h.next = func() *fakePaho { return &fakePaho{connectErr: errors.New("not authorized")} }

	if c.EnsureConnected() {
		t.Fatal("expected failed connect")
	}
	if h.clients[0].disconnects != 1 {
		t.Errorf("disconnects: got %d, want 1", h.clients[0].disconnects)
	}
}

func TestEnsureConnectedRateLimited(t *testing.T) {
	c, h := newTestClient(t, testConfig())
	h.next = func() *fakePaho { return &fakePaho{connectErr: errors.New("refused")} }

	if c.EnsureConnected() {
		t.Fatal("expected failed connect")
	}
	h.clock = h.clock.Add(5 * time.Second)
	if c.EnsureConnected() {
		t.Fatal("expected rate-limited false")
	}
	if len(h.clients) != 1 {
		t.Fatalf("attempts inside reconnect delay: got %d, want 1", len(h.clients))
	}

	h.next = nil
	h.clock = h.clock.Add(5 * time.Second)
	if !c.EnsureConnected() {
		t.Fatal("expected connect after reconnect delay")
	}
	if len(h.clients) != 2 {
		t.Errorf("attempts: got %d, want 2", len(h.clients))
	}

	opts := h.clients[1].opts
	if opts.ClientID != "Office00" || opts.Username != "node" {
		t.Errorf("options: client id %q user %q", opts.ClientID, opts.Username)
	}
	if !c.EnsureConnected() || len(h.clients) != 2 {
		t.Error("connected transport should not reconnect")
	}
}

func TestConfigReconnectDelayOverrides(t *testing.T) {
	cfg := testConfig()
	secs := 30
	cfg.ReconnectDelaySeconds = &secs
	c, _ := newTestClient(t, cfg)
	if c.reconnectDelay != 30*time.Second {
		t.Errorf("reconnect delay: got %v, want 30s", c.reconnectDelay)
	}
}

func TestPublishBuffersWhileDisconnected(t *testing.T) {
	c, h := newTestClient(t, testConfig())

	if c.Publish([]byte("a")) || c.Publish([]byte("b")) {
		t.Fatal("publish while disconnected should return false")
	}
	if c.buffer.len() != 2 {
		t.Fatalf("buffered: got %d, want 2", c.buffer.len())
	}

	if !c.EnsureConnected() {
		t.Fatal("EnsureConnected")
	}
	fp := h.clients[0]
	if len(fp.payloads) != 2 || fp.payloads[0] != "a" || fp.payloads[1] != "b" {
		t.Errorf("replayed payloads: got %v", fp.payloads)
	}

	if !c.Publish([]byte("c")) {
		t.Fatal("publish while connected should succeed")
	}
	if fp.topics[2] != "home/sensors/Office00" {
		t.Errorf("topic: got %q", fp.topics[2])
	}
}

func TestPublishFailureDisconnects(t *testing.T) {
	c, h := newTestClient(t, testConfig())
	c.EnsureConnected()
	fp := h.clients[0]
	fp.publishErr = errors.New("broken pipe")

	if c.Publish([]byte("x")) {
		t.Fatal("expected publish failure")
	}
	if c.IsConnected() {
		t.Error("transport should drop the client after a publish error")
	}
	if c.buffer.len() != 1 {
		t.Errorf("failed payload should be buffered, got %d", c.buffer.len())
	}
}

func TestPublishRaw(t *testing.T) {
	c, h := newTestClient(t, testConfig())
	if c.PublishRaw("logs", []byte("line")) {
		t.Error("PublishRaw while disconnected should return false")
	}
	if c.buffer.len() != 0 {
		t.Error("PublishRaw must not buffer")
	}

	c.EnsureConnected()
	if !c.PublishRaw("logs", []byte("line")) {
		t.Fatal("PublishRaw while connected")
	}
	if h.clients[0].topics[0] != "logs" {
		t.Errorf("topic: got %q", h.clients[0].topics[0])
	}
}

func TestClose(t *testing.T) {
	c, h := newTestClient(t, testConfig())
	c.EnsureConnected()
	c.Publish([]byte("x"))
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if h.clients[0].disconnects != 1 {
		t.Errorf("disconnects: got %d, want 1", h.clients[0].disconnects)
	}
	if c.IsConnected() {
		t.Error("closed transport reports connected")
	}
}
