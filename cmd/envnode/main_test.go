package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/envnode/internal/sensors"
)

var quiet = log.New(io.Discard, "", 0)

func TestLocationID(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "Office00"},
		{2, "Garage02"},
		{9, "GuestRoom09"},
		{15, "Spare15"},
		{16, "Unknown16"},
	}
	for _, tt := range tests {
		if got := locationID(tt.n); got != tt.want {
			t.Errorf("locationID(%d): got %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestResolveDeviceIDOrder(t *testing.T) {
	dir := t.TempDir()
	idFile := filepath.Join(dir, "device-id")
	if err := os.WriteFile(idFile, []byte("Attic06\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pins := func() (int, error) { return 4, nil }
	host := func() (string, error) { return "envnode-a1", nil }
	noPins := func() (int, error) { return 0, errors.New("busy") }

	tests := []struct {
		name string
		src  deviceIDSource
		want string
	}{
		{"flag wins", deviceIDSource{flag: "Patio11", file: idFile, readPins: pins, hostname: host}, "Patio11"},
		{"file", deviceIDSource{file: idFile, readPins: pins, hostname: host}, "Attic06"},
		{"missing file falls to pins", deviceIDSource{file: filepath.Join(dir, "nope"), readPins: pins, hostname: host}, "LivingRoom04"},
		{"pins", deviceIDSource{readPins: pins, hostname: host}, "LivingRoom04"},
		{"pin error falls to hostname", deviceIDSource{readPins: noPins, hostname: host}, "envnode-a1"},
		{"hostname", deviceIDSource{hostname: host}, "envnode-a1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.src.resolve(quiet)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveDeviceIDNoSource(t *testing.T) {
	src := deviceIDSource{hostname: func() (string, error) { return "", errors.New("no name") }}
	if _, err := src.resolve(quiet); err == nil {
		t.Error("expected error")
	}
}

func TestParsePins(t *testing.T) {
	got, err := parsePins(" 0, 1,2 ,3")
	if err != nil {
		t.Fatalf("parsePins: %v", err)
	}
	if len(got) != 4 || got[0] != 0 || got[3] != 3 {
		t.Errorf("got %v", got)
	}
	if got, err := parsePins(""); err != nil || got != nil {
		t.Errorf("empty: got %v, %v", got, err)
	}
	for _, bad := range []string{"a", "1,,2", "-1"} {
		if _, err := parsePins(bad); err == nil {
			t.Errorf("parsePins(%q): expected error", bad)
		}
	}
}

type fakeReader struct {
	tempErr error
}

func (fakeReader) ReadMotion() (sensors.MotionResult, error) {
	return sensors.MotionResult{State: "HIGH", Detected: true}, nil
}

func (fakeReader) ReadSwitch() (sensors.SwitchResult, error) {
	return sensors.SwitchResult{State: "LOW"}, nil
}

func (f fakeReader) ReadTemperature() (sensors.TemperatureResult, error) {
	if f.tempErr != nil {
		return sensors.TemperatureResult{}, f.tempErr
	}
	h := 41.5
	return sensors.TemperatureResult{
		Reading:    sensors.Reading{TemperatureF: 72.5, Humidity: &h},
		SensorType: sensors.TypeSHT31D,
	}, nil
}

func TestPrintReadings(t *testing.T) {
	var buf bytes.Buffer
	if err := printReadings(&buf, fakeReader{}); err != nil {
		t.Fatalf("printReadings: %v", err)
	}
	want := "Motion: HIGH, Switch: LOW\nTemperature: 72.5F (22.5C) from SHT31D\nHumidity: 41.5%\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := printReadings(&buf, fakeReader{tempErr: sensors.ErrNoSensor}); err != nil {
		t.Fatalf("printReadings: %v", err)
	}
	if !strings.Contains(buf.String(), "Temperature: unavailable") {
		t.Errorf("got %q", buf.String())
	}
}

func TestSuperviseRestartsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs int
	var delays []time.Duration
	run := func(context.Context) error {
		runs++
		return errors.New("config unreachable")
	}
	sleep := func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	supervise(ctx, 30*time.Second, quiet, run, sleep)

	if runs != 3 {
		t.Errorf("runs: got %d, want 3", runs)
	}
	for _, d := range delays {
		if d != 30*time.Second {
			t.Errorf("restart delay: got %v", d)
		}
	}
}

func TestSuperviseStopsOnCleanShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	run := func(context.Context) error {
		cancel()
		return nil
	}
	sleep := func(context.Context, time.Duration) error {
		t.Fatal("slept after shutdown")
		return nil
	}
	supervise(ctx, time.Second, quiet, run, sleep)
}

func TestProvidersWithoutBus(t *testing.T) {
	got := providers(nil, options{w1Dir: "/x", thermalZone: "/y"})
	if len(got) != 2 || got[0].Name != sensors.TypeDS18B20 || got[1].Name != sensors.TypeInternal {
		t.Errorf("providers: %+v", got)
	}
}
