package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sweeney/envnode/internal/gpio"
	"github.com/sweeney/envnode/internal/logging"
)

// locations names the positions selectable with the four id pins.
var locations = [16]string{
	"Office", "Exterior", "Garage", "MasterBed",
	"LivingRoom", "Basement", "Attic", "FrontDoor",
	"BackDoor", "GuestRoom", "Bathroom", "Patio",
	"Hallway", "DiningRoom", "Laundry", "Spare",
}

// locationID formats a pin-encoded id as e.g. "Garage02".
func locationID(n int) string {
	name := "Unknown"
	if n >= 0 && n < len(locations) {
		name = locations[n]
	}
	return fmt.Sprintf("%s%02d", name, n)
}

// deviceIDSource resolves the device id from, in order: the flag, the id
// file, the id pins, the hostname.
type deviceIDSource struct {
	flag     string
	file     string
	readPins func() (int, error)
	hostname func() (string, error)
}

func (s deviceIDSource) resolve(logger logging.Logger) (string, error) {
	if id := strings.TrimSpace(s.flag); id != "" {
		return id, nil
	}
	if s.file != "" {
		b, err := os.ReadFile(s.file)
		if err != nil {
			logger.Printf("device id: %v", err)
		} else if id := strings.TrimSpace(string(b)); id != "" {
			return id, nil
		}
	}
	if s.readPins != nil {
		n, err := s.readPins()
		if err != nil {
			logger.Printf("device id: pins: %v", err)
		} else {
			id := locationID(n)
			logger.Printf("device id: pins read %04b, using %s", n, id)
			return id, nil
		}
	}
	if s.hostname != nil {
		if h, err := s.hostname(); err == nil && h != "" {
			return h, nil
		}
	}
	return "", errors.New("device id: no source available")
}

// chipIDReader reads the id pins from chip. It returns nil when no pins
// are configured.
func chipIDReader(chip *gpio.Chip, pins []int) func() (int, error) {
	if chip == nil || len(pins) == 0 {
		return nil
	}
	return func() (int, error) {
		inputs := make([]gpio.Input, 0, len(pins))
		defer func() {
			for _, in := range inputs {
				in.Close()
			}
		}()
		for _, p := range pins {
			in, err := chip.RequestInput(p)
			if err != nil {
				return 0, fmt.Errorf("pin %d: %w", p, err)
			}
			inputs = append(inputs, in)
		}
		return gpio.ReadID(inputs), nil
	}
}

// parsePins parses a comma separated list of BCM pin numbers.
func parsePins(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var pins []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid pin %q", f)
		}
		pins = append(pins, n)
	}
	return pins, nil
}
