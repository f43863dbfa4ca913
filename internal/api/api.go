// Package api posts readings to the HTTP ingest endpoint.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/envnode/internal/config"
	"github.com/sweeney/envnode/internal/logging"
)

// ErrMissingKeys is returned by New when api_config lacks a required key.
var ErrMissingKeys = errors.New("api: missing config keys")

const (
	maxRequestTimeout = 5 * time.Second
	defaultRetryDelay = 5 * time.Second
	maxAttempts       = 2
)

// Publisher posts one payload. It returns false on failure.
type Publisher interface {
	Publish(payload []byte) bool
	Close() error
}

// Client posts JSON payloads with an API key, retrying once.
type Client struct {
	deviceID   string
	url        string
	apiKey     string
	timeout    time.Duration
	retryDelay time.Duration
	http       *http.Client
	logger     logging.Logger
	sleep      func(time.Duration)
}

// New validates cfg and builds a client.
func New(deviceID string, cfg *config.API, logger logging.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: url, api_key, timeout_ms", ErrMissingKeys)
	}
	var missing []string
	if cfg.URL == nil {
		missing = append(missing, "url")
	}
	if cfg.APIKey == nil {
		missing = append(missing, "api_key")
	}
	if cfg.TimeoutMS == nil {
		missing = append(missing, "timeout_ms")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingKeys, strings.Join(missing, ", "))
	}

	timeout := min(time.Duration(*cfg.TimeoutMS)*time.Millisecond, maxRequestTimeout)
	retry := defaultRetryDelay
	if cfg.RetryDelayMS != nil {
		retry = time.Duration(*cfg.RetryDelayMS) * time.Millisecond
	}
	c := &Client{
		deviceID:   deviceID,
		url:        *cfg.URL,
		apiKey:     *cfg.APIKey,
		timeout:    timeout,
		retryDelay: retry,
		http:       &http.Client{},
		logger:     logger,
		sleep:      time.Sleep,
	}
	logger.Printf("api: publisher for %s to %s", deviceID, c.url)
	return c, nil
}

// Publish posts payload, retrying once after the retry delay. Only HTTP
// 202 Accepted counts as success.
func (c *Client) Publish(payload []byte) bool {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.logger.Printf("api: publish attempt %d to %s", attempt, c.url)
		err := c.post(payload)
		if err == nil {
			c.logger.Printf("api: publish successful")
			return true
		}
		c.logger.Printf("api: publish error (attempt %d): %v", attempt, err)
		if attempt < maxAttempts {
			c.sleep(c.retryDelay)
		}
	}
	return false
}

func (c *Client) post(payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// Close releases nothing; the API transport holds no connection.
func (c *Client) Close() error {
	c.logger.Printf("api: publisher closed")
	return nil
}

// FakePublisher records payloads for test assertions.
type FakePublisher struct {
	Payloads [][]byte
	Fail     bool
	Closed   bool
}

// Publish records payload.
func (f *FakePublisher) Publish(payload []byte) bool {
	f.Payloads = append(f.Payloads, payload)
	return !f.Fail
}

// Close marks the publisher closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}
