// Package wifi reports the wireless signal level from /proc/net/wireless.
package wifi

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultPath is the kernel's wireless statistics table.
const DefaultPath = "/proc/net/wireless"

// ErrNoInterface is returned when the table lists no wireless interface.
var ErrNoInterface = errors.New("wifi: no wireless interface")

// RSSI returns the signal level in dBm of the first interface listed in
// the table at path, or of iface when non-empty.
func RSSI(path, iface string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("wifi: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for line := 0; sc.Scan(); line++ {
		if line < 2 {
			continue
		}
		name, rest, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if iface != "" && name != iface {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			return 0, fmt.Errorf("wifi: short line for %s", name)
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			return 0, fmt.Errorf("wifi: level for %s: %w", name, err)
		}
		return int(v), nil
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("wifi: %w", err)
	}
	return 0, ErrNoInterface
}
