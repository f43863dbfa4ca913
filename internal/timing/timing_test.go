package timing

import (
	"math"
	"testing"
	"time"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name string
		a, b Ticks
		want time.Duration
	}{
		{"forward", 1500, 500, time.Second},
		{"backward", 500, 1500, -time.Second},
		{"equal", 42, 42, 0},
		{"across wrap", 99, math.MaxUint32 - 100, 200 * time.Millisecond},
		{"behind wrap", math.MaxUint32 - 100, 99, -200 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Diff(tt.a, tt.b); got != tt.want {
				t.Errorf("Diff(%d, %d) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAddWraps(t *testing.T) {
	start := Ticks(math.MaxUint32 - 10)
	got := Add(start, 20*time.Millisecond)
	if got != 9 {
		t.Errorf("Add across wrap: got %d, want 9", got)
	}
	if Diff(got, start) != 20*time.Millisecond {
		t.Errorf("Diff after Add: got %v, want 20ms", Diff(got, start))
	}
}

func TestElapsed(t *testing.T) {
	now := Ticks(60001)
	if !Elapsed(now, 1, 60*time.Second) {
		t.Error("expected 60000ms to satisfy a 60s period")
	}
	if Elapsed(now, 2, 60*time.Second) {
		t.Error("expected 59999ms not to satisfy a 60s period")
	}
}

func TestFakeClockAdvance(t *testing.T) {
	wall := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(100, wall)
	c.Advance(250 * time.Millisecond)
	if c.Ticks() != 350 {
		t.Errorf("Ticks: got %d, want 350", c.Ticks())
	}
	if !c.Now().Equal(wall.Add(250 * time.Millisecond)) {
		t.Errorf("Now: got %v", c.Now())
	}
}
