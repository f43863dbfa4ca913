// Package kafka publishes readings to a Kafka topic as a third transport
// alongside MQTT and the HTTP ingest API.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/sweeney/envnode/internal/config"
	"github.com/sweeney/envnode/internal/logging"
)

// ErrMissingKeys is returned by New when kafka_config lacks brokers or topic.
var ErrMissingKeys = errors.New("kafka: missing config keys")

const writeTimeout = 5 * time.Second

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes one message per payload, keyed by device id.
type Publisher struct {
	deviceID string
	topic    string
	writer   messageWriter
	logger   logging.Logger
}

// New builds a synchronous writer for cfg. No connection is made until the
// first publish.
func New(deviceID string, cfg *config.Kafka, logger logging.Logger) (*Publisher, error) {
	if cfg == nil || len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("%w: brokers, topic", ErrMissingKeys)
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		Async:        false,
		WriteTimeout: writeTimeout,
	}
	logger.Printf("kafka: publisher for %s to %v topic %s", deviceID, cfg.Brokers, cfg.Topic)
	return newWithWriter(deviceID, cfg.Topic, w, logger), nil
}

func newWithWriter(deviceID, topic string, w messageWriter, logger logging.Logger) *Publisher {
	return &Publisher{deviceID: deviceID, topic: topic, writer: w, logger: logger}
}

// Publish writes payload and reports whether the broker acknowledged it.
func (p *Publisher) Publish(payload []byte) bool {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(p.deviceID),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		p.logger.Printf("kafka: publish to %s failed: %v", p.topic, err)
		return false
	}
	return true
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("kafka: close: %w", err)
	}
	return nil
}
