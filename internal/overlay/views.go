package overlay

import (
	"math"

	"github.com/dudu/facelasers/internal/geometry"
)

// FaceView is the retained state of the face mode: a box and polylines.
// BoundingBox keeps the size-as-point conversion of the geometry package.
// With a converter that mirrors, flips or offsets, the box lands away from
// the face while the landmarks stay exact; the transform is not to be
// changed to compensate.
type FaceView struct {
	BoundingBox geometry.ViewRect
	Landmarks   map[geometry.Group][]geometry.ViewPoint
	visible     bool
}

func (v *FaceView) set(g *geometry.DrawableFaceGeometry) {
	v.BoundingBox = g.BoundingBox
	v.Landmarks = g.Landmarks
	v.visible = true
}

func (v *FaceView) clear() {
	*v = FaceView{}
}

// Visible reports whether there is anything to draw
func (v *FaceView) Visible() bool {
	return v.visible
}

// Laser is a line from an eye to the point it looks at
type Laser struct {
	Origin geometry.ViewPoint
	Focus  geometry.ViewPoint
}

// Tilt is the face's vertical axis, from between the eyes past the chin
type Tilt struct {
	Origin geometry.ViewPoint
	Focus  geometry.ViewPoint
}

// Bounds is the size of the drawing surface
type Bounds struct {
	Width, Height float64
}

func (b Bounds) maxX() float64 { return b.Width }
func (b Bounds) midY() float64 { return b.Height / 2 }
func (b Bounds) maxY() float64 { return b.Height }

// laserOffscreen is how far past the view edge lasers aim
const laserOffscreen = 100.0

// eyeSources lists, per eye, the groups a laser may start from, best first
var eyeSources = map[geometry.Group][]geometry.Group{
	geometry.LeftEye:  {geometry.LeftPupil, geometry.LeftEye},
	geometry.RightEye: {geometry.RightPupil, geometry.RightEye},
}

// eyeOrigin returns the first point of the first present, non-empty source
func eyeOrigin(g *geometry.DrawableFaceGeometry, eye geometry.Group) (geometry.ViewPoint, bool) {
	sources, ok := eyeSources[eye]
	if !ok {
		sources = []geometry.Group{eye}
	}
	for _, src := range sources {
		if points, ok := g.Group(src); ok && len(points) > 0 {
			return points[0], true
		}
	}
	return geometry.ViewPoint{}, false
}

// PlanLasers aims one laser per eye. All lasers share a focus: off the
// side of the view the face is turned to, in the vertical half opposite
// the eyes. A face looking straight ahead (or with unknown yaw) gets none.
func PlanLasers(g *geometry.DrawableFaceGeometry, eyes []geometry.Group, bounds Bounds, mirrored bool) []Laser {
	if g == nil || g.Yaw == nil || *g.Yaw == 0 {
		return nil
	}
	yaw := *g.Yaw
	if mirrored {
		yaw = -yaw
	}

	var origins []geometry.ViewPoint
	for _, eye := range eyes {
		if p, ok := eyeOrigin(g, eye); ok {
			origins = append(origins, p)
		}
	}
	if len(origins) == 0 {
		return nil
	}

	var sumY float64
	for _, o := range origins {
		sumY += o.Y
	}
	avgY := sumY / float64(len(origins))

	focus := geometry.ViewPoint{X: bounds.maxX() + laserOffscreen, Y: 0.25 * bounds.maxY()}
	if avgY < bounds.midY() {
		focus.Y = 0.75 * bounds.maxY()
	}
	if yaw < 0 {
		focus.X = -laserOffscreen
	}

	lasers := make([]Laser, len(origins))
	for i, o := range origins {
		lasers[i] = Laser{Origin: o, Focus: focus}
	}
	return lasers
}

// tiltReach is how far the tilt line extends, in eye-to-nose lengths
const tiltReach = 3.0

// PlanTilt draws the face axis from the midpoint of the eyes through the
// nose (or mouth when there is no nose), extended toward the neck.
func PlanTilt(g *geometry.DrawableFaceGeometry) (Tilt, bool) {
	if g == nil {
		return Tilt{}, false
	}
	left, okL := eyeOrigin(g, geometry.LeftEye)
	right, okR := eyeOrigin(g, geometry.RightEye)
	if !okL || !okR {
		return Tilt{}, false
	}
	mid := geometry.ViewPoint{X: (left.X + right.X) / 2, Y: (left.Y + right.Y) / 2}

	var anchor geometry.ViewPoint
	found := false
	for _, grp := range []geometry.Group{geometry.Nose, geometry.OuterLips} {
		if points, ok := g.Group(grp); ok && len(points) > 0 {
			anchor = mean(points)
			found = true
			break
		}
	}
	if !found {
		return Tilt{}, false
	}

	dx, dy := anchor.X-mid.X, anchor.Y-mid.Y
	if math.Hypot(dx, dy) == 0 {
		return Tilt{}, false
	}

	return Tilt{
		Origin: mid,
		Focus:  geometry.ViewPoint{X: mid.X + tiltReach*dx, Y: mid.Y + tiltReach*dy},
	}, true
}

func mean(points []geometry.ViewPoint) geometry.ViewPoint {
	var c geometry.ViewPoint
	for _, p := range points {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(points))
	return geometry.ViewPoint{X: c.X / n, Y: c.Y / n}
}
