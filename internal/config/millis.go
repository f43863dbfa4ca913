package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Millis is a duration written in the document as integer milliseconds or
// as one of the array forms [ms], [min, sec, ms] or [day, hr, min, sec, ms].
type Millis int64

// Duration converts m to a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var parts []int64
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("time array elements must be integers: %w", err)
		}
		switch len(parts) {
		case 1:
			*m = Millis(parts[0])
		case 3:
			*m = Millis(parts[0]*60_000 + parts[1]*1000 + parts[2])
		case 5:
			*m = Millis(parts[0]*86_400_000 + parts[1]*3_600_000 + parts[2]*60_000 + parts[3]*1000 + parts[4])
		default:
			return fmt.Errorf("time array must have 1, 3, or 5 elements, got %d", len(parts))
		}
		return nil
	}

	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("time value must be an integer or a list: %s", data)
	}
	*m = Millis(v)
	return nil
}

// MarshalJSON writes m as integer milliseconds.
func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(m))
}
