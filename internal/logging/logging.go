// Package logging provides the logger handle passed to every component and
// the device log sink that fans lines out to the console, the display and
// remote collectors.
package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"
)

// Logger is the logging handle components receive. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return log.New(io.Discard, "", 0)
}

// DisplayWidth is the number of characters mirrored to the display.
const DisplayWidth = 28

// DefaultMQTTTopic is used when remote MQTT logging has no base topic.
const DefaultMQTTTopic = "az_iots3/ulog"

const httpTimeout = 2 * time.Second

// forwardQueueSize bounds the lines waiting on an in-flight forward.
const forwardQueueSize = 16

// Display receives a truncated copy of each line.
type Display interface {
	Log(line string)
}

// Publisher forwards raw log lines to the broker. Implementations must not
// log through the sink.
type Publisher interface {
	PublishRaw(topic string, payload []byte) bool
}

// RemoteConfig selects the remote collectors.
type RemoteConfig struct {
	MQTTEnabled   bool
	MQTTBaseTopic string
	HTTPEnabled   bool
	HTTPURL       string
}

// Sink is the device logger. It is safe for concurrent use and never panics
// or reports errors to callers; remote failures go to the console only.
type Sink struct {
	mu         sync.Mutex
	out        *log.Logger
	display    Display
	publisher  Publisher
	deviceID   string
	deviceName string
	remote     RemoteConfig
	client     *http.Client
	forwarding bool
	queued     []string
}

// NewSink creates a sink writing to out. display may be nil.
func NewSink(out *log.Logger, display Display) *Sink {
	return &Sink{
		out:     out,
		display: display,
		client:  &http.Client{Timeout: httpTimeout},
		remote:  RemoteConfig{MQTTBaseTopic: DefaultMQTTTopic},
	}
}

// SetDeviceInfo sets the identity prefixed to every line.
func (s *Sink) SetDeviceInfo(id, name string) {
	s.mu.Lock()
	s.deviceID, s.deviceName = id, name
	s.mu.Unlock()
	s.out.Printf("logger: device info set to %s (%s)", id, name)
}

// SetPublisher re-points remote MQTT logging at p. p may be nil.
func (s *Sink) SetPublisher(p Publisher) {
	s.mu.Lock()
	s.publisher = p
	s.mu.Unlock()
}

// SetDisplay replaces the display mirror. d may be nil.
func (s *Sink) SetDisplay(d Display) {
	s.mu.Lock()
	s.display = d
	s.mu.Unlock()
}

// ConfigureRemote replaces the remote collector settings.
func (s *Sink) ConfigureRemote(rc RemoteConfig) {
	if rc.MQTTBaseTopic == "" {
		rc.MQTTBaseTopic = DefaultMQTTTopic
	}
	s.mu.Lock()
	s.remote = rc
	s.mu.Unlock()
	s.out.Printf("logger: remote mqtt=%t http=%t %s", rc.MQTTEnabled, rc.HTTPEnabled, rc.HTTPURL)
}

// Printf formats and writes a line.
//
// One caller at a time forwards to the remote collectors. Lines logged while
// a forward is in flight, from another goroutine or from the publisher
// itself, are queued and forwarded by that caller before it returns.
func (s *Sink) Printf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)

	s.mu.Lock()
	line := msg
	if s.deviceID != "" {
		line = fmt.Sprintf("%s(%s): %s", s.deviceID, s.deviceName, msg)
	}
	display := s.display
	busy := s.forwarding
	if busy {
		if len(s.queued) == forwardQueueSize {
			s.queued = s.queued[1:]
		}
		s.queued = append(s.queued, line)
	}
	s.forwarding = true
	s.mu.Unlock()

	s.out.Print(line)
	if display != nil {
		s.mirror(display, msg)
	}
	if busy {
		return
	}

	next := line
	for sent := 0; ; sent++ {
		s.forward(next)

		s.mu.Lock()
		if len(s.queued) == 0 || sent == forwardQueueSize {
			s.queued = nil
			s.forwarding = false
			s.mu.Unlock()
			return
		}
		next = s.queued[0]
		s.queued = s.queued[1:]
		s.mu.Unlock()
	}
}

// forward sends line to the enabled remote collectors.
func (s *Sink) forward(line string) {
	defer func() {
		if r := recover(); r != nil {
			s.out.Printf("logger: forward error: %v", r)
		}
	}()
	s.mu.Lock()
	publisher := s.publisher
	remote := s.remote
	s.mu.Unlock()

	if remote.MQTTEnabled && publisher != nil {
		if !publisher.PublishRaw(remote.MQTTBaseTopic, []byte(line)) {
			s.out.Printf("logger: mqtt forward to %s failed", remote.MQTTBaseTopic)
		}
	}
	if remote.HTTPEnabled && remote.HTTPURL != "" {
		if err := s.post(remote.HTTPURL, line); err != nil {
			s.out.Printf("logger: http forward failed: %v", err)
		}
	}
}

func (s *Sink) mirror(d Display, msg string) {
	defer func() {
		if r := recover(); r != nil {
			s.out.Printf("logger: display error: %v", r)
		}
	}()
	d.Log(truncate(msg, DisplayWidth))
}

func (s *Sink) post(url, line string) error {
	body, err := json.Marshal(map[string]string{"message": line})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
