package preview

import (
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"

	"github.com/dudu/facelasers/internal/geometry"
)

func near(a, b geometry.ViewPoint) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9
}

func TestLayerConvert(t *testing.T) {
	tests := []struct {
		name    string
		view    [2]int
		frame   [2]int
		gravity Gravity
		mirror  bool
		in      geometry.NormalizedPoint
		want    geometry.ViewPoint
	}{
		{
			name: "stretch bottom-left becomes top-left",
			view: [2]int{640, 480}, frame: [2]int{1280, 720}, gravity: GravityStretch,
			in: geometry.NormalizedPoint{X: 0, Y: 1}, want: geometry.ViewPoint{X: 0, Y: 0},
		},
		{
			name: "stretch center",
			view: [2]int{640, 480}, frame: [2]int{1280, 720}, gravity: GravityStretch,
			in: geometry.NormalizedPoint{X: 0.5, Y: 0.5}, want: geometry.ViewPoint{X: 320, Y: 240},
		},
		{
			// frame 1280x720 into 720x720: scale 1, width cropped by 280 each side
			name: "aspect fill crops",
			view: [2]int{720, 720}, frame: [2]int{1280, 720}, gravity: GravityAspectFill,
			in: geometry.NormalizedPoint{X: 0, Y: 0}, want: geometry.ViewPoint{X: -280, Y: 720},
		},
		{
			// frame 1280x720 into 640x640: scale 0.5, 640x360 letterboxed by 140
			name: "aspect fit letterboxes",
			view: [2]int{640, 640}, frame: [2]int{1280, 720}, gravity: GravityAspectFit,
			in: geometry.NormalizedPoint{X: 1, Y: 1}, want: geometry.ViewPoint{X: 640, Y: 140},
		},
		{
			name: "mirrored",
			view: [2]int{100, 100}, frame: [2]int{100, 100}, gravity: GravityAspectFill, mirror: true,
			in: geometry.NormalizedPoint{X: 0.25, Y: 0.75}, want: geometry.ViewPoint{X: 75, Y: 25},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLayer(tt.view[0], tt.view[1], tt.gravity, tt.mirror)
			l.SetFrameSize(tt.frame[0], tt.frame[1])

			got := l.Converter()(tt.in)
			if !near(got, tt.want) {
				t.Errorf("Convert(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLayerDegenerateSizes(t *testing.T) {
	l := NewLayer(640, 480, GravityAspectFill, false)
	l.SetFrameSize(0, 0)

	got := l.Convert(geometry.NormalizedPoint{X: 0.3, Y: 0.6})
	if got != (geometry.ViewPoint{}) {
		t.Errorf("Convert() with empty frame = %+v, want origin", got)
	}
	if math.IsNaN(got.X) || math.IsNaN(got.Y) {
		t.Error("Convert() returned NaN")
	}
}

func TestLayerResize(t *testing.T) {
	l := NewLayer(100, 100, GravityStretch, false)
	l.Resize(200, 50)

	if w, h := l.Bounds(); w != 200 || h != 50 {
		t.Errorf("Bounds() = %v, %v", w, h)
	}
	got := l.Convert(geometry.NormalizedPoint{X: 1, Y: 0})
	if !near(got, geometry.ViewPoint{X: 200, Y: 50}) {
		t.Errorf("Convert() = %+v", got)
	}
}

func TestParseGravity(t *testing.T) {
	for _, s := range []string{"aspect-fill", "aspect-fit", "stretch"} {
		if _, err := ParseGravity(s); err != nil {
			t.Errorf("ParseGravity(%q) error: %v", s, err)
		}
	}
	if _, err := ParseGravity("fill"); err == nil {
		t.Error("ParseGravity(\"fill\") should fail")
	}
}

func TestRenderLetterboxAndMirror(t *testing.T) {
	// 100x100 frame, left half white, into a 200x100 view with aspect-fit
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 100, 100, gocv.MatTypeCV8UC3)
	defer frame.Close()
	left := frame.Region(image.Rect(0, 0, 50, 100))
	left.SetTo(gocv.NewScalar(255, 255, 255, 0))
	left.Close()

	l := NewLayer(200, 100, GravityAspectFit, true)
	l.SetFrameSize(100, 100)

	view := gocv.NewMat()
	defer view.Close()
	l.Render(frame, &view)

	if view.Cols() != 200 || view.Rows() != 100 {
		t.Fatalf("view is %dx%d, want 200x100", view.Cols(), view.Rows())
	}
	pixel := func(x, y int) uint8 { return view.GetVecbAt(y, x)[0] }

	if pixel(10, 50) != 0 || pixel(190, 50) != 0 {
		t.Error("letterbox bars should be black")
	}
	// mirrored: the white half now sits on the right of the frame
	if pixel(60, 50) != 0 || pixel(140, 50) != 255 {
		t.Errorf("pixels at 60 and 140 = %d, %d; want 0, 255", pixel(60, 50), pixel(140, 50))
	}

	// Convert agrees with where the pixels went
	if p := l.Convert(geometry.NormalizedPoint{X: 0.25, Y: 0.5}); !near(p, geometry.ViewPoint{X: 125, Y: 50}) {
		t.Errorf("Convert() = %+v, want (125, 50)", p)
	}
}

func TestBoxThroughMirroredLayer(t *testing.T) {
	l := NewLayer(1280, 720, GravityAspectFill, true)
	l.SetFrameSize(1280, 720)

	result := &geometry.DetectionResult{
		BoundingBox: geometry.NormalizedRect{
			Origin: geometry.NormalizedPoint{X: 0.4, Y: 0.3},
			Size:   geometry.NormalizedSize{Width: 0.2, Height: 0.3},
		},
		Landmarks: geometry.Landmarks{
			geometry.Nose: {{X: 0.5, Y: 0.5}},
		},
	}
	g := geometry.BuildDrawableGeometry(result, l.Converter())

	// origin and size each go through the converter as points
	if !near(g.BoundingBox.Origin, geometry.ViewPoint{X: 768, Y: 504}) {
		t.Errorf("box origin = %+v, want (768, 504)", g.BoundingBox.Origin)
	}
	size := geometry.ViewPoint{X: g.BoundingBox.Size.Width, Y: g.BoundingBox.Size.Height}
	if !near(size, geometry.ViewPoint{X: 1024, Y: 504}) {
		t.Errorf("box size = %+v, want 1024x504", g.BoundingBox.Size)
	}

	// landmarks are placed point by point and land on the face
	nose := g.Landmarks[geometry.Nose][0]
	if !near(nose, geometry.ViewPoint{X: 640, Y: 396}) {
		t.Errorf("nose = %+v, want (640, 396)", nose)
	}
}
