package sensors

import "periph.io/x/conn/v3/i2c"

// DefaultProviders returns the fitted-sensor search order: BME280, SHT31D,
// TMP117, DS18B20, then the SoC thermal zone. bus may be nil when no I2C
// bus could be opened.
func DefaultProviders(bus i2c.Bus, w1Dir, thermalZone string) []Provider {
	return []Provider{
		{Name: TypeBME280, Open: func() (TemperatureSensor, error) { return OpenBME280(bus) }},
		{Name: TypeSHT31D, Open: func() (TemperatureSensor, error) { return OpenSHT31D(bus) }},
		{Name: TypeTMP117, Open: func() (TemperatureSensor, error) { return OpenTMP117(bus) }},
		{Name: TypeDS18B20, Open: func() (TemperatureSensor, error) { return OpenDS18B20(w1Dir) }},
		{Name: TypeInternal, Open: func() (TemperatureSensor, error) { return OpenInternal(thermalZone) }},
	}
}
