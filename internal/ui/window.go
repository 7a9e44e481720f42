package ui

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"
)

// Action is what a key press asks for
type Action int

const (
	ActionNone Action = iota
	ActionToggle
	ActionQuit
)

const keyEscape = 27

// KeyAction maps a WaitKey result to an action
func KeyAction(key int) Action {
	if key < 0 {
		return ActionNone
	}
	switch key & 0xff {
	case ' ', 't', 'T':
		return ActionToggle
	case 'q', 'Q', keyEscape:
		return ActionQuit
	}
	return ActionNone
}

var (
	fpsColor   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	labelColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Window manages the preview display
type Window struct {
	window     *gocv.Window
	name       string
	lastFrame  time.Time
	frameCount int
	fps        float64
}

// NewWindow creates a new preview window
func NewWindow(name string, width, height int) *Window {
	window := gocv.NewWindow(name)
	// Force window to appear on macOS
	window.ResizeWindow(width, height)
	window.MoveWindow(100, 100)
	return &Window{
		window:    window,
		name:      name,
		lastFrame: time.Now(),
	}
}

// Show displays a frame with the FPS counter, the mode label and any
// status lines below them
func (w *Window) Show(frame *gocv.Mat, label string, status ...string) {
	w.tick(time.Now())

	// Draw FPS on frame
	fpsText := fmt.Sprintf("FPS: %.1f", w.fps)
	gocv.PutText(frame, fpsText, image.Pt(10, 30),
		gocv.FontHersheyPlain, 2, fpsColor, 2)

	if label != "" {
		size := gocv.GetTextSize(label, gocv.FontHersheySimplex, 1.2, 2)
		at := image.Pt(frame.Cols()-size.X-20, 40)
		gocv.PutText(frame, label, at, gocv.FontHersheySimplex, 1.2, labelColor, 2)
	}

	for i, line := range status {
		gocv.PutText(frame, line, image.Pt(10, 60+i*25),
			gocv.FontHersheyPlain, 1.4, fpsColor, 1)
	}

	w.window.IMShow(*frame)
}

// tick counts a frame and recomputes FPS once per second
func (w *Window) tick(now time.Time) {
	w.frameCount++
	elapsed := now.Sub(w.lastFrame)
	if elapsed >= time.Second {
		w.fps = float64(w.frameCount) / elapsed.Seconds()
		w.frameCount = 0
		w.lastFrame = now
	}
}

// WaitKey waits for key press, returns key code or -1
func (w *Window) WaitKey(delayMs int) int {
	return w.window.WaitKey(delayMs)
}

// IsOpen reports whether the user has not closed the window
func (w *Window) IsOpen() bool {
	return w.window != nil && w.window.IsOpen()
}

// FPS returns current frames per second
func (w *Window) FPS() float64 {
	return w.fps
}

// Close closes the window
func (w *Window) Close() error {
	if w.window != nil {
		err := w.window.Close()
		w.window = nil
		return err
	}
	return nil
}
