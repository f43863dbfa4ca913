// Package sensors reads the motion and switch inputs and whichever
// temperature sensor is fitted, normalizing the results.
package sensors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sweeney/envnode/internal/logging"
)

// Sensor types reported in payloads.
const (
	TypeBME280   = "BME280"
	TypeSHT31D   = "SHT31D"
	TypeTMP117   = "TMP117"
	TypeDS18B20  = "DS18B20"
	TypeInternal = "INTERNAL"
)

// ErrNoSensor is returned when no temperature provider could be opened.
var ErrNoSensor = errors.New("sensors: no temperature sensor available")

// Reading is one temperature sample. Humidity and pressure are nil for
// sensors that do not measure them.
type Reading struct {
	TemperatureF float64
	Humidity     *float64
	PressureInHg *float64
}

// TemperatureC converts the reading to Celsius.
func (r Reading) TemperatureC() float64 {
	return (r.TemperatureF - 32) * 5 / 9
}

// TemperatureSensor is a fitted temperature sensor.
type TemperatureSensor interface {
	Type() string
	Read() (Reading, error)
	Close() error
}

// Provider opens one kind of temperature sensor.
type Provider struct {
	Name string
	Open func() (TemperatureSensor, error)
}

// Select opens providers in order and returns the first that succeeds.
func Select(providers []Provider, logger logging.Logger) (TemperatureSensor, error) {
	var failed []string
	for _, p := range providers {
		s, err := p.Open()
		if err != nil {
			logger.Printf("sensors: %s not found: %v", p.Name, err)
			failed = append(failed, p.Name)
			continue
		}
		logger.Printf("sensors: using %s", s.Type())
		return s, nil
	}
	return nil, fmt.Errorf("%w (tried %s)", ErrNoSensor, strings.Join(failed, ", "))
}

func celsiusToF(c float64) float64 {
	return c*9/5 + 32
}
