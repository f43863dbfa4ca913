package mqtt

import (
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/envnode/internal/config"
	"github.com/sweeney/envnode/internal/logging"
)

const (
	defaultReconnectDelay = 10 * time.Second
	defaultBufferSize     = 32
	connectTimeout        = 5 * time.Second
	publishTimeout        = 5 * time.Second
	keepAlive             = 60 * time.Second
)

// Client is the paho-backed Transport. It is driven from the scheduler's
// single goroutine.
type Client struct {
	deviceID string
	cfg      *config.MQTT
	topic    string
	logger   logging.Logger

	newClient      func(*paho.ClientOptions) paho.Client
	now            func() time.Time
	reconnectDelay time.Duration

	client      paho.Client
	lastAttempt time.Time
	attempted   bool
	buffer      *backlog[pending]
}

// Option customizes a Client.
type Option func(*Client)

// WithReconnectDelay sets the minimum spacing between connect attempts when
// the config does not carry reconnect_delay_seconds.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) { c.reconnectDelay = d }
}

// WithClientFactory replaces paho.NewClient, for tests.
func WithClientFactory(f func(*paho.ClientOptions) paho.Client) Option {
	return func(c *Client) { c.newClient = f }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New builds a transport for cfg. It does not connect; the first
// EnsureConnected does.
func New(deviceID string, cfg *config.MQTT, logger logging.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("mqtt: no mqtt_config")
	}
	if cfg.Broker == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("mqtt: broker and port required, got %q:%d", cfg.Broker, cfg.Port)
	}
	c := &Client{
		deviceID:       deviceID,
		cfg:            cfg,
		topic:          TopicFor(cfg, deviceID),
		logger:         logger,
		newClient:      paho.NewClient,
		now:            time.Now,
		reconnectDelay: defaultReconnectDelay,
		buffer:         newBacklog[pending](defaultBufferSize),
	}
	for _, o := range opts {
		o(c)
	}
	if cfg.ReconnectDelaySeconds != nil {
		c.reconnectDelay = time.Duration(*cfg.ReconnectDelaySeconds) * time.Second
	}
	logger.Printf("mqtt: transport for %s on %s:%d topic %s", deviceID, cfg.Broker, cfg.Port, c.topic)
	return c, nil
}

// Config returns the configuration the transport was built from.
func (c *Client) Config() *config.MQTT { return c.cfg }

// Topic returns the device topic.
func (c *Client) Topic() string { return c.topic }

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// EnsureConnected implements Transport.
func (c *Client) EnsureConnected() bool {
	if c.IsConnected() {
		return true
	}
	now := c.now()
	if c.attempted && now.Sub(c.lastAttempt) < c.reconnectDelay {
		return false
	}
	c.attempted = true
	c.lastAttempt = now
	return c.connect()
}

func (c *Client) connect() bool {
	c.drop()

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", c.cfg.Broker, c.cfg.Port)).
		SetClientID(c.deviceID).
		SetKeepAlive(keepAlive).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(false).
		SetCleanSession(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.logger.Printf("mqtt: connection lost: %v", err)
		})
	if c.cfg.User != "" {
		opts.SetUsername(c.cfg.User)
		opts.SetPassword(c.cfg.Password)
	}

	c.logger.Printf("mqtt: connecting to %s:%d", c.cfg.Broker, c.cfg.Port)
	client := c.newClient(opts)
	token := client.Connect()
	// A client that failed or timed out is disconnected so a late connect
	// cannot leave a second session under the same client id.
	if !token.WaitTimeout(connectTimeout) {
		c.logger.Printf("mqtt: connect timeout")
		client.Disconnect(0)
		return false
	}
	if err := token.Error(); err != nil {
		c.logger.Printf("mqtt: connect failed: %v", err)
		client.Disconnect(0)
		return false
	}
	c.client = client
	c.logger.Printf("mqtt: connected")
	c.replay()
	return true
}

func (c *Client) replay() {
	queued := c.buffer.take()
	if len(queued) == 0 {
		return
	}
	c.logger.Printf("mqtt: replaying %d buffered messages", len(queued))
	for i, msg := range queued {
		if err := c.send(msg.topic, msg.payload); err != nil {
			c.logger.Printf("mqtt: replay failed: %v", err)
			for _, rest := range queued[i:] {
				c.buffer.add(rest)
			}
			c.drop()
			return
		}
	}
}

// Publish implements Transport.
func (c *Client) Publish(payload []byte) bool {
	if !c.IsConnected() {
		c.hold(payload)
		c.logger.Printf("mqtt: not connected, buffered (%d pending)", c.buffer.len())
		return false
	}
	c.logger.Printf("mqtt: publishing to %s: %s", c.topic, payload)
	if err := c.send(c.topic, payload); err != nil {
		c.logger.Printf("mqtt: publish failed, assuming disconnect: %v", err)
		c.drop()
		c.hold(payload)
		return false
	}
	return true
}

func (c *Client) hold(payload []byte) {
	if c.buffer.add(pending{topic: c.topic, payload: payload}) {
		c.logger.Printf("mqtt: buffer full (%d messages), dropping oldest", defaultBufferSize)
	}
}

// PublishRaw implements Transport.
func (c *Client) PublishRaw(topic string, payload []byte) bool {
	if !c.IsConnected() {
		return false
	}
	return c.send(topic, payload) == nil
}

// send publishes at QoS 0, not retained.
func (c *Client) send(topic string, payload []byte) error {
	token := c.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	return token.Error()
}

func (c *Client) drop() {
	if c.client == nil {
		return
	}
	c.client.Disconnect(250)
	c.client = nil
}

// Close disconnects from the broker and discards buffered messages.
func (c *Client) Close() error {
	if c.client != nil {
		c.client.Disconnect(1000) // 1 second quiesce
		c.client = nil
		c.logger.Printf("mqtt: disconnected")
	}
	c.buffer.take()
	return nil
}
