package geometry

// NormalizedPoint is a 2D point in [0,1]. Whether it is relative to the
// whole frame or to a bounding box is up to the caller.
type NormalizedPoint struct {
	X, Y float64
}

// NormalizedSize is the extent of a NormalizedRect
type NormalizedSize struct {
	Width, Height float64
}

// NormalizedRect is a frame-relative rectangle with a bottom-left origin
type NormalizedRect struct {
	Origin NormalizedPoint
	Size   NormalizedSize
}

// SizeAsPoint reinterprets the rect size as a point
func (r NormalizedRect) SizeAsPoint() NormalizedPoint {
	return NormalizedPoint{X: r.Size.Width, Y: r.Size.Height}
}

// ViewPoint is a point on the drawing surface (top-left origin)
type ViewPoint struct {
	X, Y float64
}

// ViewSize is the extent of a ViewRect
type ViewSize struct {
	Width, Height float64
}

// ViewRect is a rectangle on the drawing surface
type ViewRect struct {
	Origin ViewPoint
	Size   ViewSize
}

// Max returns the corner opposite to Origin
func (r ViewRect) Max() ViewPoint {
	return ViewPoint{X: r.Origin.X + r.Size.Width, Y: r.Origin.Y + r.Size.Height}
}

// Center returns the rect center
func (r ViewRect) Center() ViewPoint {
	return ViewPoint{X: r.Origin.X + r.Size.Width/2, Y: r.Origin.Y + r.Size.Height/2}
}

// Group names one facial landmark group
type Group string

const (
	LeftEye      Group = "leftEye"
	RightEye     Group = "rightEye"
	LeftEyebrow  Group = "leftEyebrow"
	RightEyebrow Group = "rightEyebrow"
	Nose         Group = "nose"
	OuterLips    Group = "outerLips"
	InnerLips    Group = "innerLips"
	FaceContour  Group = "faceContour"
	LeftPupil    Group = "leftPupil"
	RightPupil   Group = "rightPupil"
)

// Groups lists every known landmark group in drawing order.
var Groups = []Group{
	FaceContour,
	LeftEyebrow, RightEyebrow,
	LeftEye, RightEye,
	LeftPupil, RightPupil,
	Nose,
	OuterLips, InnerLips,
}

// Closed reports whether the group outlines a closed shape
func (g Group) Closed() bool {
	switch g {
	case LeftEye, RightEye, OuterLips, InnerLips:
		return true
	}
	return false
}

// Landmarks maps a group to its ordered points, relative to the face
// bounding box. A missing key means the group was not detected; a key with an
// empty slice means it was detected with no points.
type Landmarks map[Group][]NormalizedPoint

// DetectionResult is one detected face. A nil *DetectionResult means no face.
type DetectionResult struct {
	BoundingBox NormalizedRect
	Landmarks   Landmarks
	Confidence  float64
	Yaw         *float64 // horizontal head turn, negative toward the image left
}

// Only returns a copy of r restricted to the given groups. With no groups
// every landmark group is kept.
func (r *DetectionResult) Only(groups ...Group) *DetectionResult {
	if r == nil {
		return nil
	}
	out := *r
	if len(groups) == 0 || r.Landmarks == nil {
		return &out
	}
	out.Landmarks = make(Landmarks, len(groups))
	for _, g := range groups {
		if points, ok := r.Landmarks[g]; ok {
			out.Landmarks[g] = points
		}
	}
	return &out
}

// DrawableFaceGeometry is the view-space geometry of one frame
type DrawableFaceGeometry struct {
	BoundingBox ViewRect
	Landmarks   map[Group][]ViewPoint
	Yaw         *float64
}

// Group returns the points of g and whether g is present
func (d *DrawableFaceGeometry) Group(g Group) ([]ViewPoint, bool) {
	if d == nil {
		return nil, false
	}
	points, ok := d.Landmarks[g]
	return points, ok
}
