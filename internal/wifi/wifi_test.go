package wifi

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const table = `Inter-| sta-|   Quality        |   Discarded packets               | Missed | WE
 face | tus | link level noise |  nwid  crypt   frag  retry   misc | beacon | 22
 wlan0: 0000   70.  -40.  -256        0      0      0      0      0        0
 wlan1: 0000   31.  -79.  -256        0      0      0      0      0        0
`

func writeTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wireless")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRSSI(t *testing.T) {
	path := writeTable(t, table)

	tests := []struct {
		iface string
		want  int
	}{
		{"", -40},
		{"wlan0", -40},
		{"wlan1", -79},
	}
	for _, tt := range tests {
		got, err := RSSI(path, tt.iface)
		if err != nil {
			t.Errorf("RSSI(%q): %v", tt.iface, err)
			continue
		}
		if got != tt.want {
			t.Errorf("RSSI(%q): got %d, want %d", tt.iface, got, tt.want)
		}
	}
}

func TestRSSINoInterface(t *testing.T) {
	path := writeTable(t, table)
	if _, err := RSSI(writeTable(t, "h1\nh2\n"), ""); !errors.Is(err, ErrNoInterface) {
		t.Errorf("got %v, want ErrNoInterface", err)
	}
	if _, err := RSSI(path, "wlan9"); !errors.Is(err, ErrNoInterface) {
		t.Errorf("unknown iface: got %v, want ErrNoInterface", err)
	}
	if _, err := RSSI(filepath.Join(t.TempDir(), "missing"), ""); err == nil {
		t.Error("expected error for missing table")
	}
}
