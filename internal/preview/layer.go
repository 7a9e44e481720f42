package preview

import (
	"fmt"
	"sync"

	"github.com/dudu/facelasers/internal/geometry"
)

// Gravity controls how the captured frame is fitted into the view
type Gravity string

const (
	GravityAspectFill Gravity = "aspect-fill"
	GravityAspectFit  Gravity = "aspect-fit"
	GravityStretch    Gravity = "stretch"
)

// ParseGravity validates a gravity name
func ParseGravity(s string) (Gravity, error) {
	switch g := Gravity(s); g {
	case GravityAspectFill, GravityAspectFit, GravityStretch:
		return g, nil
	}
	return "", fmt.Errorf("invalid gravity: %s (use aspect-fill, aspect-fit or stretch)", s)
}

// Layer maps normalized capture coordinates onto the preview surface.
// It plays the role of the platform preview layer: scaling, cropping,
// mirroring and the switch from a bottom-left to a top-left origin.
type Layer struct {
	mu sync.RWMutex

	gravity  Gravity
	mirrored bool

	viewWidth, viewHeight   float64
	frameWidth, frameHeight float64

	// derived
	scaledWidth, scaledHeight float64
	offsetX, offsetY          float64
}

// NewLayer creates a preview layer for a view of the given size
func NewLayer(viewWidth, viewHeight int, gravity Gravity, mirrored bool) *Layer {
	l := &Layer{
		gravity:     gravity,
		mirrored:    mirrored,
		viewWidth:   float64(viewWidth),
		viewHeight:  float64(viewHeight),
		frameWidth:  float64(viewWidth),
		frameHeight: float64(viewHeight),
	}
	l.update()
	return l
}

// Resize changes the view size
func (l *Layer) Resize(viewWidth, viewHeight int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.viewWidth = float64(viewWidth)
	l.viewHeight = float64(viewHeight)
	l.update()
}

// SetFrameSize changes the captured frame size
func (l *Layer) SetFrameSize(width, height int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.frameWidth = float64(width)
	l.frameHeight = float64(height)
	l.update()
}

// Bounds returns the view size
func (l *Layer) Bounds() (width, height float64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viewWidth, l.viewHeight
}

// Mirrored reports whether x is mirrored
func (l *Layer) Mirrored() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mirrored
}

// update recomputes the scaled frame extent; caller holds mu
func (l *Layer) update() {
	if l.viewWidth <= 0 || l.viewHeight <= 0 || l.frameWidth <= 0 || l.frameHeight <= 0 {
		l.scaledWidth, l.scaledHeight = 0, 0
		l.offsetX, l.offsetY = 0, 0
		return
	}

	sx := l.viewWidth / l.frameWidth
	sy := l.viewHeight / l.frameHeight

	switch l.gravity {
	case GravityStretch:
		l.scaledWidth = l.viewWidth
		l.scaledHeight = l.viewHeight
	case GravityAspectFit:
		s := min(sx, sy)
		l.scaledWidth = l.frameWidth * s
		l.scaledHeight = l.frameHeight * s
	default:
		s := max(sx, sy)
		l.scaledWidth = l.frameWidth * s
		l.scaledHeight = l.frameHeight * s
	}

	// Negative when cropping (fill), positive when letterboxing (fit)
	l.offsetX = (l.viewWidth - l.scaledWidth) / 2
	l.offsetY = (l.viewHeight - l.scaledHeight) / 2
}

// Convert maps a frame-relative normalized point (bottom-left origin) to a
// view point (top-left origin).
func (l *Layer) Convert(p geometry.NormalizedPoint) geometry.ViewPoint {
	l.mu.RLock()
	defer l.mu.RUnlock()

	x := p.X
	if l.mirrored {
		x = 1 - x
	}
	y := 1 - p.Y

	return geometry.ViewPoint{
		X: x*l.scaledWidth + l.offsetX,
		Y: y*l.scaledHeight + l.offsetY,
	}
}

// Converter returns Convert as a geometry.Converter
func (l *Layer) Converter() geometry.Converter {
	return l.Convert
}

// Placement returns where the scaled frame lands in the view. Offsets are
// negative when the frame is cropped.
func (l *Layer) Placement() (x, y, width, height float64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.offsetX, l.offsetY, l.scaledWidth, l.scaledHeight
}
