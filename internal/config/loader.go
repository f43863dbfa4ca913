package config

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/envnode/internal/logging"
)

const (
	defaultLoadAttempts = 3
	defaultRetryDelay   = 2 * time.Second
	loadTimeout         = 5 * time.Second
	checkTimeout        = 10 * time.Second
)

// Loader fetches the configuration document for one device and tracks
// whether it has changed since the last successful parse.
type Loader struct {
	// URL is an http(s) URL or a local file path, optionally file:// prefixed.
	URL      string
	DeviceID string
	Client   *http.Client
	Logger   logging.Logger

	// Attempts and RetryDelay govern Load. Zero values use 3 attempts 2s apart.
	Attempts   int
	RetryDelay time.Duration

	last uint64
	seen bool
}

// Load fetches and parses the document, retrying on failure. A missing
// device entry is returned immediately without retrying.
func (l *Loader) Load(ctx context.Context) (*Device, error) {
	attempts := l.Attempts
	if attempts <= 0 {
		attempts = defaultLoadAttempts
	}
	delay := l.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	l.logf("config: fetching %s", l.URL)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		dev, err := l.loadOnce(ctx)
		if err == nil {
			return dev, nil
		}
		lastErr = err
		l.logf("config: attempt %d failed: %v", attempt, err)
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, err
		}
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("config: load failed after %d attempts: %w", attempts, lastErr)
}

func (l *Loader) loadOnce(ctx context.Context) (*Device, error) {
	body, err := l.fetch(ctx, loadTimeout)
	if err != nil {
		return nil, err
	}
	dev, err := Parse(body, l.DeviceID)
	if err != nil {
		return nil, err
	}
	l.remember(dev.Fingerprint)
	l.logf("config: loaded device %s (%s), enabled=%t", dev.DeviceID, dev.DisplayName(), dev.Enabled == nil || *dev.Enabled)
	return dev, nil
}

// Check fetches the document once. It returns (nil, nil) when the body is
// unchanged. Fetch errors are transient; parse and validation errors wrap
// ErrInvalid or ErrDeviceNotFound. The fingerprint is only remembered after
// a successful parse, so a bad document is reported again on the next check.
func (l *Loader) Check(ctx context.Context) (*Device, error) {
	body, err := l.fetch(ctx, checkTimeout)
	if err != nil {
		return nil, fmt.Errorf("config: check: %w", err)
	}
	fp := Fingerprint(body)
	if l.seen && fp == l.last {
		l.logf("config: unchanged")
		return nil, nil
	}
	l.logf("config: changed, reloading")
	dev, err := Parse(body, l.DeviceID)
	if err != nil {
		return nil, err
	}
	l.remember(fp)
	return dev, nil
}

func (l *Loader) remember(fp uint64) {
	l.last = fp
	l.seen = true
}

func (l *Loader) fetch(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if !isHTTP(l.URL) {
		body, err := os.ReadFile(strings.TrimPrefix(l.URL, "file://"))
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if len(body) == 0 {
			return nil, errors.New("empty config file")
		}
		return body, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("Accept", "application/json")

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server responded with %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}
	return body, nil
}

func (l *Loader) logf(format string, v ...any) {
	if l.Logger != nil {
		l.Logger.Printf(format, v...)
	}
}

// Fingerprint is a non-cryptographic FNV-1a hash of the document body.
func Fingerprint(body []byte) uint64 {
	h := fnv.New64a()
	h.Write(body)
	return h.Sum64()
}

func isHTTP(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
