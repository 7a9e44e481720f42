package detector

import (
	"gocv.io/x/gocv"

	"github.com/dudu/facelasers/internal/geometry"
)

// Detector finds faces in a BGR frame. Faces are returned in the
// detector's own order; callers that only want one face take the first.
type Detector interface {
	Detect(img gocv.Mat) ([]Face, error)
	Close() error
}

// Point represents a 2D point in frame pixels
type Point struct {
	X, Y float32
}

// BoundingBox represents a face bounding box in frame pixels
type BoundingBox struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// Width returns box width
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Center returns box center point
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Area returns box area
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// Landmarks represents 5 facial landmark points
type Landmarks struct {
	LeftEye    Point
	RightEye   Point
	Nose       Point
	LeftMouth  Point
	RightMouth Point
}

// Groups maps the five points onto landmark groups
func (l Landmarks) Groups() map[geometry.Group][]Point {
	return map[geometry.Group][]Point{
		geometry.LeftPupil:  {l.LeftEye},
		geometry.RightPupil: {l.RightEye},
		geometry.Nose:       {l.Nose},
		geometry.OuterLips:  {l.LeftMouth, l.RightMouth},
	}
}

// Face represents a detected face in frame pixels
type Face struct {
	BoundingBox  BoundingBox
	Landmarks    *Landmarks    // 5-point, SCRFD only
	Landmarks106 *Landmarks106 // 2d106det, optional
	Groups       map[geometry.Group][]Point
	Score        float32
	Yaw          *float64
}
