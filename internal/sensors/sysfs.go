package sensors

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Default sysfs locations.
const (
	DefaultW1Dir       = "/sys/bus/w1/devices"
	DefaultThermalZone = "/sys/class/thermal/thermal_zone0/temp"
)

// ds18b20 reads a 1-Wire DS18B20 through the w1-therm kernel driver.
type ds18b20 struct {
	path string
}

// OpenDS18B20 finds the first DS18B20 (family 28) under dir and reads it once.
func OpenDS18B20(dir string) (TemperatureSensor, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "28-*", "w1_slave"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("ds18b20: no devices under %s", dir)
	}
	s := &ds18b20{path: matches[0]}
	if _, err := s.Read(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ds18b20) Type() string { return TypeDS18B20 }

// Read parses the two-line w1_slave format: the first line ends in YES
// when the CRC matched, the second carries t=<millidegrees C>.
func (s *ds18b20) Read() (Reading, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Reading{}, fmt.Errorf("ds18b20: %w", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		return Reading{}, errors.New("ds18b20: short read")
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return Reading{}, errors.New("ds18b20: crc check failed")
	}
	idx := strings.Index(lines[1], "t=")
	if idx < 0 {
		return Reading{}, errors.New("ds18b20: no temperature field")
	}
	milli, err := strconv.Atoi(strings.TrimSpace(lines[1][idx+2:]))
	if err != nil {
		return Reading{}, fmt.Errorf("ds18b20: %w", err)
	}
	return Reading{TemperatureF: celsiusToF(float64(milli) / 1000)}, nil
}

func (s *ds18b20) Close() error { return nil }

// internalTemp reads the SoC thermal zone, always present on a Pi.
type internalTemp struct {
	path string
}

// OpenInternal opens the thermal zone file at path.
func OpenInternal(path string) (TemperatureSensor, error) {
	s := &internalTemp{path: path}
	if _, err := s.Read(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *internalTemp) Type() string { return TypeInternal }

func (s *internalTemp) Read() (Reading, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Reading{}, fmt.Errorf("internal: %w", err)
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return Reading{}, fmt.Errorf("internal: %w", err)
	}
	return Reading{TemperatureF: celsiusToF(float64(milli) / 1000)}, nil
}

func (s *internalTemp) Close() error { return nil }
