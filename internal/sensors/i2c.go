package sensors

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// Default I2C addresses.
const (
	AddrBME280    uint16 = 0x76
	AddrBME280Alt uint16 = 0x77
	AddrSHT31D    uint16 = 0x44
	AddrTMP117    uint16 = 0x48
)

const inHgPerPascal = 1 / 3386.389

var errNoBus = errors.New("i2c bus not available")

// bme280 wraps the periph bmxx80 driver.
type bme280 struct {
	dev *bmxx80.Dev
}

// OpenBME280 probes both BME280 addresses on bus.
func OpenBME280(bus i2c.Bus) (TemperatureSensor, error) {
	if bus == nil {
		return nil, errNoBus
	}
	var lastErr error
	for _, addr := range []uint16{AddrBME280, AddrBME280Alt} {
		dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
		if err == nil {
			return &bme280{dev: dev}, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("bme280: %w", lastErr)
}

func (s *bme280) Type() string { return TypeBME280 }

func (s *bme280) Read() (Reading, error) {
	var env physic.Env
	if err := s.dev.Sense(&env); err != nil {
		return Reading{}, err
	}
	c := float64(env.Temperature-physic.ZeroCelsius) / float64(physic.Kelvin)
	hum := float64(env.Humidity) / float64(physic.PercentRH)
	pres := float64(env.Pressure) / float64(physic.Pascal) * inHgPerPascal
	return Reading{TemperatureF: celsiusToF(c), Humidity: &hum, PressureInHg: &pres}, nil
}

func (s *bme280) Close() error { return s.dev.Halt() }

// sht31d speaks the Sensirion single-shot protocol directly.
type sht31d struct {
	dev   *i2c.Dev
	sleep func(time.Duration)
}

var cmdSHT31Measure = []byte{0x24, 0x00}

const sht31MeasureDelay = 15 * time.Millisecond

// OpenSHT31D probes for an SHT31D by taking one measurement.
func OpenSHT31D(bus i2c.Bus) (TemperatureSensor, error) {
	if bus == nil {
		return nil, errNoBus
	}
	s := &sht31d{dev: &i2c.Dev{Bus: bus, Addr: AddrSHT31D}, sleep: time.Sleep}
	if _, err := s.Read(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sht31d) Type() string { return TypeSHT31D }

func (s *sht31d) Read() (Reading, error) {
	if err := s.dev.Tx(cmdSHT31Measure, nil); err != nil {
		return Reading{}, fmt.Errorf("sht31d: error transmitting %w", err)
	}
	s.sleep(sht31MeasureDelay)
	buf := make([]byte, 6)
	if err := s.dev.Tx(nil, buf); err != nil {
		return Reading{}, fmt.Errorf("sht31d: error reading %w", err)
	}
	if crc8(buf[:2]) != buf[2] {
		return Reading{}, errors.New("sht31d: temperature crc error")
	}
	if crc8(buf[3:5]) != buf[5] {
		return Reading{}, errors.New("sht31d: humidity crc error")
	}
	rawT := float64(uint16(buf[0])<<8 | uint16(buf[1]))
	rawH := float64(uint16(buf[3])<<8 | uint16(buf[4]))
	c := -45 + 175*rawT/65535
	hum := 100 * rawH / 65535
	return Reading{TemperatureF: celsiusToF(c), Humidity: &hum}, nil
}

func (s *sht31d) Close() error { return nil }

// crc8 is the Sensirion checksum: polynomial 0x31, init 0xff.
func crc8(data []byte) byte {
	crc := byte(0xff)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// tmp117 reads the TI TMP117 in continuous conversion mode.
type tmp117 struct {
	dev *i2c.Dev
}

const (
	tmp117RegTemp   = 0x00
	tmp117RegConfig = 0x01
	tmp117LSB       = 0.0078125
)

// OpenTMP117 configures continuous conversion and takes one reading.
func OpenTMP117(bus i2c.Bus) (TemperatureSensor, error) {
	if bus == nil {
		return nil, errNoBus
	}
	s := &tmp117{dev: &i2c.Dev{Bus: bus, Addr: AddrTMP117}}
	if err := s.dev.Tx([]byte{tmp117RegConfig, 0x02, 0x00}, nil); err != nil {
		return nil, fmt.Errorf("tmp117: configure: %w", err)
	}
	if _, err := s.Read(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *tmp117) Type() string { return TypeTMP117 }

func (s *tmp117) Read() (Reading, error) {
	buf := make([]byte, 2)
	if err := s.dev.Tx([]byte{tmp117RegTemp}, buf); err != nil {
		return Reading{}, fmt.Errorf("tmp117: read: %w", err)
	}
	raw := int16(uint16(buf[0])<<8 | uint16(buf[1]))
	return Reading{TemperatureF: celsiusToF(float64(raw) * tmp117LSB)}, nil
}

func (s *tmp117) Close() error { return nil }
