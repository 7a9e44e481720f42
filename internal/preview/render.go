package preview

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Render draws frame into view the way Convert maps points: scaled by the
// gravity, centred, and mirrored when the layer is. view is reallocated
// when its size does not match the layer.
func (l *Layer) Render(frame gocv.Mat, view *gocv.Mat) {
	vw, vh := l.Bounds()
	ox, oy, sw, sh := l.Placement()
	viewW, viewH := int(vw), int(vh)

	if view.Cols() != viewW || view.Rows() != viewH || view.Type() != frame.Type() {
		view.Close()
		*view = gocv.NewMatWithSize(viewH, viewW, frame.Type())
	}
	view.SetTo(gocv.NewScalar(0, 0, 0, 0))

	scaledW, scaledH := int(math.Round(sw)), int(math.Round(sh))
	if frame.Empty() || scaledW <= 0 || scaledH <= 0 {
		return
	}

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Resize(frame, &scaled, image.Pt(scaledW, scaledH), 0, 0, gocv.InterpolationLinear)
	if l.Mirrored() {
		gocv.Flip(scaled, &scaled, 1)
	}

	at := image.Pt(int(math.Round(ox)), int(math.Round(oy)))
	dst := image.Rect(at.X, at.Y, at.X+scaledW, at.Y+scaledH).Intersect(image.Rect(0, 0, viewW, viewH))
	if dst.Empty() {
		return
	}
	src := dst.Sub(at)

	from := scaled.Region(src)
	defer from.Close()
	to := view.Region(dst)
	defer to.Close()
	from.CopyTo(&to)
}
