package overlay

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/dudu/facelasers/internal/geometry"
)

var (
	red   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	green = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// stroke is one pass of a glowing line
type stroke struct {
	color color.RGBA
	alpha float64
	width int
}

var (
	// OpenCV thickness is integral; 4.5 and 7.5 round up
	laserStrokes = []stroke{{white, 0.5, 5}, {red, 0.8, 3}}
	tiltStrokes  = []stroke{{white, 0.5, 8}, {green, 0.8, 6}}
)

// Draw paints the current mode's overlay onto img
func (r *Renderer) Draw(img *gocv.Mat) {
	if r.geometry == nil || img == nil || img.Empty() {
		return
	}

	switch r.mode {
	case ModeFace:
		drawFace(img, r.face)
	case ModeLasers:
		for _, l := range r.lasers {
			drawGlowLine(img, l.Origin, l.Focus, laserStrokes)
		}
	case ModeTilt:
		if r.hasTilt {
			drawGlowLine(img, r.tilt.Origin, r.tilt.Focus, tiltStrokes)
		}
	}
}

// drawFace draws the box as converted, canonicalized so a negative size
// never inverts it. See FaceView for why it can sit off the face.
func drawFace(img *gocv.Mat, v FaceView) {
	if !v.Visible() {
		return
	}

	box := image.Rectangle{
		Min: toImage(v.BoundingBox.Origin),
		Max: toImage(v.BoundingBox.Max()),
	}.Canon()
	gocv.Rectangle(img, box, red, 2)

	for _, g := range geometry.Groups {
		points, ok := v.Landmarks[g]
		if !ok || len(points) == 0 {
			continue
		}
		if g == geometry.LeftPupil || g == geometry.RightPupil {
			for _, p := range points {
				gocv.Circle(img, toImage(p), 3, white, -1)
			}
			continue
		}
		if len(points) == 1 {
			gocv.Circle(img, toImage(points[0]), 2, red, -1)
			continue
		}

		pts := make([]image.Point, len(points))
		for i, p := range points {
			pts[i] = toImage(p)
		}
		vec := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
		gocv.Polylines(img, vec, g.Closed(), red, 1)
		vec.Close()
	}
}

// drawGlowLine draws the strokes in order, each blended at its own alpha
func drawGlowLine(img *gocv.Mat, from, to geometry.ViewPoint, strokes []stroke) {
	a, b := toImage(from), toImage(to)
	for _, s := range strokes {
		layer := img.Clone()
		gocv.Line(&layer, a, b, s.color, s.width)
		gocv.AddWeighted(layer, s.alpha, *img, 1-s.alpha, 0, img)
		layer.Close()
	}
}

func toImage(p geometry.ViewPoint) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}
