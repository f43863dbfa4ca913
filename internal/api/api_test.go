package api

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/envnode/internal/config"
	"github.com/sweeney/envnode/internal/logging"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

type ingest struct {
	mu       sync.Mutex
	statuses []int
	bodies   []string
	keys     []string
}

func (s *ingest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, _ := io.ReadAll(r.Body)
	s.bodies = append(s.bodies, string(body))
	s.keys = append(s.keys, r.Header.Get("X-API-Key"))
	status := http.StatusAccepted
	if len(s.statuses) > 0 {
		status = s.statuses[0]
		s.statuses = s.statuses[1:]
	}
	w.WriteHeader(status)
}

func newClient(t *testing.T, url string) (*Client, *[]time.Duration) {
	t.Helper()
	c, err := New("Office00", &config.API{
		URL:          strPtr(url),
		APIKey:       strPtr("secret"),
		TimeoutMS:    intPtr(3000),
		RetryDelayMS: intPtr(250),
	}, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var sleeps []time.Duration
	c.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return c, &sleeps
}

func TestNewMissingKeys(t *testing.T) {
	_, err := New("d", &config.API{URL: strPtr("http://x")}, logging.Discard())
	if !errors.Is(err, ErrMissingKeys) {
		t.Fatalf("got %v, want ErrMissingKeys", err)
	}
	if !strings.Contains(err.Error(), "api_key, timeout_ms") {
		t.Errorf("error should list missing keys: %v", err)
	}
	if _, err := New("d", nil, logging.Discard()); !errors.Is(err, ErrMissingKeys) {
		t.Errorf("nil config: got %v", err)
	}
}

func TestNewTimeouts(t *testing.T) {
	c, err := New("d", &config.API{URL: strPtr("http://x"), APIKey: strPtr("k"), TimeoutMS: intPtr(20000)}, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.timeout != 5*time.Second {
		t.Errorf("timeout: got %v, want capped 5s", c.timeout)
	}
	if c.retryDelay != 5*time.Second {
		t.Errorf("retry delay: got %v, want default 5s", c.retryDelay)
	}
}

func TestPublishAccepted(t *testing.T) {
	srv := &ingest{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	c, sleeps := newClient(t, ts.URL)
	if !c.Publish([]byte(`{"event_type":"heartbeat"}`)) {
		t.Fatal("expected success on 202")
	}
	if len(srv.bodies) != 1 || srv.keys[0] != "secret" {
		t.Errorf("requests: %v keys: %v", srv.bodies, srv.keys)
	}
	if len(*sleeps) != 0 {
		t.Errorf("no retry expected, slept %v", *sleeps)
	}
}

func TestPublishRetriesOnce(t *testing.T) {
	srv := &ingest{statuses: []int{http.StatusOK, http.StatusAccepted}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	c, sleeps := newClient(t, ts.URL)
	if !c.Publish([]byte(`{}`)) {
		t.Fatal("expected success on retry")
	}
	if len(srv.bodies) != 2 {
		t.Errorf("requests: got %d, want 2", len(srv.bodies))
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != 250*time.Millisecond {
		t.Errorf("sleeps: got %v, want [250ms]", *sleeps)
	}
}

func TestPublishGivesUp(t *testing.T) {
	srv := &ingest{statuses: []int{500, 500, 500}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	c, _ := newClient(t, ts.URL)
	if c.Publish([]byte(`{}`)) {
		t.Fatal("expected failure")
	}
	if len(srv.bodies) != 2 {
		t.Errorf("requests: got %d, want 2", len(srv.bodies))
	}
}
