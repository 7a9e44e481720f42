package ui

import (
	"testing"
	"time"
)

func TestKeyAction(t *testing.T) {
	tests := []struct {
		key  int
		want Action
	}{
		{-1, ActionNone},
		{' ', ActionToggle},
		{'t', ActionToggle},
		{'q', ActionQuit},
		{27, ActionQuit},
		{'x', ActionNone},
		// some backends report modifier bits above the low byte
		{0x100000 | 'q', ActionQuit},
	}
	for _, tt := range tests {
		if got := KeyAction(tt.key); got != tt.want {
			t.Errorf("KeyAction(%d) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestFPSTick(t *testing.T) {
	start := time.Unix(100, 0)
	w := &Window{lastFrame: start}

	for i := 1; i <= 30; i++ {
		w.tick(start.Add(time.Duration(i) * 33 * time.Millisecond))
	}
	if w.FPS() != 0 {
		t.Errorf("FPS() before a full second = %v", w.FPS())
	}

	w.tick(start.Add(1250 * time.Millisecond))
	if w.FPS() < 24 || w.FPS() > 25 {
		t.Errorf("FPS() = %v, want about 24.8", w.FPS())
	}
}
