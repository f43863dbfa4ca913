// Package display renders the headline and a short log tail on the
// 128x64 SSD1306 OLED.
package display

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/sweeney/envnode/internal/logging"
)

const (
	width    = 128
	height   = 64
	logRows  = 2
	divider  = 32
	rowPitch = 15
)

// Display is what the loop and the log sink talk to.
type Display interface {
	ShowHeadline(line1, line2 string)
	Log(line string)
	Close() error
}

// Headline formats the two large lines. fanPWM is shown when the PWM
// controller is active, otherwise fansActive when the step controller is.
func Headline(tempF float64, fanPWM, fansActive *int) (string, string) {
	info := ""
	switch {
	case fanPWM != nil:
		info = fmt.Sprintf(" Fan:%d%%", *fanPWM)
	case fansActive != nil:
		info = fmt.Sprintf(" Fans:%d", *fansActive)
	}
	return fmt.Sprintf("T:%.1fF%s", tempF, info), fmt.Sprintf("T:%.1fC", (tempF-32)*5/9)
}

// drawer is the part of *ssd1306.Dev the screen needs.
type drawer interface {
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Halt() error
}

// Screen keeps the current headline and log rows and redraws the whole
// frame on every change.
type Screen struct {
	mu       sync.Mutex
	dev      drawer
	img      *image1bit.VerticalLSB
	headline [2]string
	rows     [logRows]string
	logger   logging.Logger
	closed   bool
}

// OpenOLED probes an SSD1306 on bus and returns a Screen drawing to it.
func OpenOLED(bus i2c.Bus, logger logging.Logger) (*Screen, error) {
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("display: ssd1306: %w", err)
	}
	s := newScreen(dev, logger)
	s.mu.Lock()
	s.flush()
	s.mu.Unlock()
	logger.Printf("display: OLED %dx%d ready", width, height)
	return s, nil
}

func newScreen(dev drawer, logger logging.Logger) *Screen {
	return &Screen{
		dev:    dev,
		img:    image1bit.NewVerticalLSB(image.Rect(0, 0, width, height)),
		logger: logger,
	}
}

// ShowHeadline replaces the two large lines.
func (s *Screen) ShowHeadline(line1, line2 string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || (s.headline[0] == line1 && s.headline[1] == line2) {
		return
	}
	s.headline = [2]string{line1, line2}
	s.flush()
}

// Log scrolls line into the bottom rows.
func (s *Screen) Log(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	copy(s.rows[:], s.rows[1:])
	s.rows[logRows-1] = line
	s.flush()
}

// Rows returns the log rows currently shown, oldest first.
func (s *Screen) Rows() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rows[:]...)
}

// Close blanks and halts the panel.
func (s *Screen) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.dev.Halt()
}

// flush redraws the frame. Errors go to the console logger only, since the
// log sink itself writes here.
func (s *Screen) flush() {
	draw.Draw(s.img, s.img.Bounds(), &image.Uniform{C: image1bit.Off}, image.Point{}, draw.Src)
	d := font.Drawer{
		Dst:  s.img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range s.headline {
		d.Dot = fixed.P(0, 12+i*14)
		d.DrawString(line)
	}
	for x := 0; x < width; x++ {
		s.img.SetBit(x, divider, image1bit.On)
	}
	for i, line := range s.rows {
		d.Dot = fixed.P(0, divider+rowPitch*(i+1)-2)
		d.DrawString(line)
	}
	if err := s.dev.Draw(s.img.Bounds(), s.img, image.Point{}); err != nil {
		s.logger.Printf("display: draw failed: %v", err)
	}
}

// Nop is used when no panel is attached.
type Nop struct{}

func (Nop) ShowHeadline(string, string) {}
func (Nop) Log(string) {}
func (Nop) Close() error { return nil }
