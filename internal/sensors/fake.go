package sensors

// FakeSensor is a TemperatureSensor returning scripted readings.
type FakeSensor struct {
	Kind     string
	Readings []Reading
	Err      error
	Closed   bool

	index int
}

// Type returns Kind.
func (f *FakeSensor) Type() string { return f.Kind }

// Read returns the next scripted reading, repeating the last one.
func (f *FakeSensor) Read() (Reading, error) {
	if f.Err != nil {
		return Reading{}, f.Err
	}
	if len(f.Readings) == 0 {
		return Reading{}, ErrNoSensor
	}
	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return r, nil
}

// Close marks the sensor closed.
func (f *FakeSensor) Close() error {
	f.Closed = true
	return nil
}
