package overlay

import (
	"fmt"
	"strings"

	"github.com/dudu/facelasers/internal/geometry"
)

// Mode selects what the overlay draws
type Mode int

const (
	ModeFace Mode = iota
	ModeLasers
	ModeTilt
	modeCount
)

// String returns the label shown on screen
func (m Mode) String() string {
	switch m {
	case ModeFace:
		return "Face"
	case ModeLasers:
		return "Lasers"
	case ModeTilt:
		return "Tilt"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Next returns the mode after m, wrapping around
func (m Mode) Next() Mode {
	return (m + 1) % modeCount
}

// ParseMode accepts a mode label, case-insensitively
func ParseMode(s string) (Mode, error) {
	for m := ModeFace; m < modeCount; m++ {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return ModeFace, fmt.Errorf("unknown overlay mode: %q", s)
}

// Options configures a Renderer
type Options struct {
	Mode Mode
	// LaserEyes lists the eyes lasers start from
	LaserEyes []geometry.Group
	// Mirrored flips the sense of yaw when the preview is a mirror image
	Mirrored bool
}

// Renderer holds the retained overlay state. It is owned by the rendering
// goroutine; updates from elsewhere go through a Mailbox.
type Renderer struct {
	mode      Mode
	laserEyes []geometry.Group
	mirrored  bool
	bounds    Bounds

	geometry *geometry.DrawableFaceGeometry
	face     FaceView
	lasers   []Laser
	tilt     Tilt
	hasTilt  bool
	frame    uint64
}

// NewRenderer creates a renderer with nothing to draw
func NewRenderer(opts Options) *Renderer {
	eyes := opts.LaserEyes
	if len(eyes) == 0 {
		eyes = []geometry.Group{geometry.LeftEye}
	}
	return &Renderer{
		mode:      opts.Mode,
		laserEyes: eyes,
		mirrored:  opts.Mirrored,
	}
}

// Mode returns the current mode
func (r *Renderer) Mode() Mode {
	return r.mode
}

// Label returns the current mode's label
func (r *Renderer) Label() string {
	return r.mode.String()
}

// Toggle switches to the next mode and returns it
func (r *Renderer) Toggle() Mode {
	r.mode = r.mode.Next()
	r.replan()
	return r.mode
}

// SetBounds sets the drawing surface size used to aim lasers
func (r *Renderer) SetBounds(width, height int) {
	b := Bounds{Width: float64(width), Height: float64(height)}
	if b == r.bounds {
		return
	}
	r.bounds = b
	r.replan()
}

// Apply replaces the overlay with the update's geometry, or clears it
func (r *Renderer) Apply(u Update) {
	r.frame = u.Frame
	r.geometry = u.Geometry
	if u.Geometry == nil {
		r.face.clear()
	} else {
		r.face.set(u.Geometry)
	}
	r.replan()
}

// Clear removes everything from the overlay
func (r *Renderer) Clear() {
	r.Apply(Update{Frame: r.frame})
}

// Frame returns the frame number of the last applied update
func (r *Renderer) Frame() uint64 {
	return r.frame
}

// Visible reports whether the overlay currently shows a face
func (r *Renderer) Visible() bool {
	return r.geometry != nil
}

// Face returns the face mode state
func (r *Renderer) Face() FaceView {
	return r.face
}

// Lasers returns the planned lasers
func (r *Renderer) Lasers() []Laser {
	return r.lasers
}

// Tilt returns the planned tilt line
func (r *Renderer) Tilt() (Tilt, bool) {
	return r.tilt, r.hasTilt
}

func (r *Renderer) replan() {
	r.lasers = nil
	r.tilt, r.hasTilt = Tilt{}, false
	if r.geometry == nil {
		return
	}
	switch r.mode {
	case ModeLasers:
		r.lasers = PlanLasers(r.geometry, r.laserEyes, r.bounds, r.mirrored)
	case ModeTilt:
		r.tilt, r.hasTilt = PlanTilt(r.geometry)
	}
}
