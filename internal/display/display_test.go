package display

import (
	"errors"
	"image"
	"testing"

	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/sweeney/envnode/internal/logging"
)

type fakePanel struct {
	draws  int
	last   *image1bit.VerticalLSB
	err    error
	halted bool
}

func (f *fakePanel) Draw(_ image.Rectangle, src image.Image, _ image.Point) error {
	f.draws++
	if img, ok := src.(*image1bit.VerticalLSB); ok {
		f.last = img
	}
	return f.err
}

func (f *fakePanel) Halt() error {
	f.halted = true
	return nil
}

func intPtr(i int) *int { return &i }

func TestHeadline(t *testing.T) {
	tests := []struct {
		name      string
		pwm, step *int
		wantLine1 string
	}{
		{"pwm", intPtr(60), intPtr(2), "T:72.3F Fan:60%"},
		{"step", nil, intPtr(2), "T:72.3F Fans:2"},
		{"none", nil, nil, "T:72.3F"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l1, l2 := Headline(72.3, tt.pwm, tt.step)
			if l1 != tt.wantLine1 {
				t.Errorf("line1: got %q, want %q", l1, tt.wantLine1)
			}
			if l2 != "T:22.4C" {
				t.Errorf("line2: got %q, want T:22.4C", l2)
			}
		})
	}
}

func TestScreenLogScrolls(t *testing.T) {
	p := &fakePanel{}
	s := newScreen(p, logging.Discard())
	s.Log("one")
	s.Log("two")
	s.Log("three")

	rows := s.Rows()
	if len(rows) != 2 || rows[0] != "two" || rows[1] != "three" {
		t.Errorf("rows: got %v", rows)
	}
	if p.draws != 3 {
		t.Errorf("draws: got %d, want 3", p.draws)
	}
}

func TestScreenHeadlineDrawsPixels(t *testing.T) {
	p := &fakePanel{}
	s := newScreen(p, logging.Discard())
	s.ShowHeadline("T:72.3F", "T:22.4C")
	if p.last == nil {
		t.Fatal("no frame drawn")
	}
	lit := 0
	for y := 0; y < divider; y++ {
		for x := 0; x < width; x++ {
			if p.last.BitAt(x, y) {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("headline area is blank")
	}

	s.ShowHeadline("T:72.3F", "T:22.4C")
	if p.draws != 1 {
		t.Errorf("unchanged headline redrew: %d draws", p.draws)
	}
}

func TestScreenDrawErrorAndClose(t *testing.T) {
	p := &fakePanel{err: errors.New("nack")}
	s := newScreen(p, logging.Discard())
	s.Log("still fine")

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !p.halted {
		t.Error("panel not halted")
	}
	s.Log("after close")
	if p.draws != 1 {
		t.Errorf("draw after close: %d draws", p.draws)
	}
}

func TestNop(t *testing.T) {
	var d Display = Nop{}
	d.ShowHeadline("a", "b")
	d.Log("x")
	if err := d.Close(); err != nil {
		t.Error(err)
	}
}
