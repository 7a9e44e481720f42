package geometry

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func identity(p NormalizedPoint) ViewPoint {
	return ViewPoint{X: p.X, Y: p.Y}
}

// scaleFlip mimics a preview layer: 400x300 view, vertical flip, offset.
func scaleFlip(p NormalizedPoint) ViewPoint {
	return ViewPoint{X: p.X*400 - 20, Y: (1-p.Y)*300 + 5}
}

func nearly(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func samePoint(a, b ViewPoint) bool {
	return nearly(a.X, b.X) && nearly(a.Y, b.Y)
}

func rect(x, y, w, h float64) NormalizedRect {
	return NormalizedRect{
		Origin: NormalizedPoint{X: x, Y: y},
		Size:   NormalizedSize{Width: w, Height: h},
	}
}

func TestTransformBoundingBox(t *testing.T) {
	tests := []struct {
		name   string
		rect   NormalizedRect
		toView Converter
		want   ViewRect
	}{
		{
			name:   "identity",
			rect:   rect(0.25, 0.25, 0.5, 0.5),
			toView: identity,
			want:   ViewRect{Origin: ViewPoint{0.25, 0.25}, Size: ViewSize{0.5, 0.5}},
		},
		{
			name:   "size goes through the converter as a point",
			rect:   rect(0.1, 0.2, 0.5, 0.25),
			toView: scaleFlip,
			want:   ViewRect{Origin: ViewPoint{20, 245}, Size: ViewSize{180, 230}},
		},
		{
			name:   "degenerate",
			rect:   rect(0.5, 0.5, 0, 0),
			toView: identity,
			want:   ViewRect{Origin: ViewPoint{0.5, 0.5}},
		},
		{
			name:   "out of range values pass through",
			rect:   rect(-0.2, 1.3, 1.5, -0.1),
			toView: identity,
			want:   ViewRect{Origin: ViewPoint{-0.2, 1.3}, Size: ViewSize{1.5, -0.1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TransformBoundingBox(tt.rect, tt.toView)
			if !samePoint(got.Origin, tt.want.Origin) {
				t.Errorf("origin = %+v, want %+v", got.Origin, tt.want.Origin)
			}
			if !nearly(got.Size.Width, tt.want.Size.Width) || !nearly(got.Size.Height, tt.want.Size.Height) {
				t.Errorf("size = %+v, want %+v", got.Size, tt.want.Size)
			}

			origin := tt.toView(tt.rect.Origin)
			size := tt.toView(tt.rect.SizeAsPoint())
			if !samePoint(got.Origin, origin) || !nearly(got.Size.Width, size.X) || !nearly(got.Size.Height, size.Y) {
				t.Errorf("result %+v does not match converter applied to origin and size", got)
			}
		})
	}
}

func TestTransformPoint(t *testing.T) {
	tests := []struct {
		name   string
		point  NormalizedPoint
		parent NormalizedRect
		toView Converter
		want   ViewPoint
	}{
		{
			name:   "full frame parent",
			point:  NormalizedPoint{0.5, 0.5},
			parent: rect(0, 0, 1, 1),
			toView: identity,
			want:   ViewPoint{0.5, 0.5},
		},
		{
			name:   "de-relativized into parent",
			point:  NormalizedPoint{0.5, 0.5},
			parent: rect(0.2, 0.3, 0.4, 0.4),
			toView: identity,
			want:   ViewPoint{0.4, 0.5},
		},
		{
			name:   "projection after de-relativization",
			point:  NormalizedPoint{0.25, 1},
			parent: rect(0.2, 0.3, 0.4, 0.4),
			toView: scaleFlip,
			// absolute = (0.3, 0.7)
			want: ViewPoint{100, 95},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TransformPoint(tt.point, tt.parent, tt.toView)
			if !samePoint(got, tt.want) {
				t.Errorf("TransformPoint() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTransformPointOrderMatters(t *testing.T) {
	parent := rect(0.2, 0.3, 0.4, 0.4)
	p := NormalizedPoint{0.5, 0.5}

	got := TransformPoint(p, parent, scaleFlip)

	// Projecting first and de-relativizing in view space gives a different
	// answer for a converter with a translation.
	o := scaleFlip(parent.Origin)
	s := scaleFlip(parent.SizeAsPoint())
	swapped := ViewPoint{X: o.X + p.X*s.X, Y: o.Y + p.Y*s.Y}

	if samePoint(got, swapped) {
		t.Fatalf("TransformPoint() = %+v matches the swapped order", got)
	}
	want := scaleFlip(NormalizedPoint{0.4, 0.5})
	if !samePoint(got, want) {
		t.Errorf("TransformPoint() = %+v, want %+v", got, want)
	}
}

func TestTransformPointGroup(t *testing.T) {
	parent := rect(0.2, 0.3, 0.4, 0.4)

	t.Run("absent stays absent", func(t *testing.T) {
		if got := TransformPointGroup(nil, parent, identity); got != nil {
			t.Errorf("TransformPointGroup(nil) = %v, want nil", got)
		}
	})

	t.Run("empty stays empty", func(t *testing.T) {
		got := TransformPointGroup([]NormalizedPoint{}, parent, identity)
		if got == nil || len(got) != 0 {
			t.Errorf("TransformPointGroup([]) = %#v, want empty non-nil", got)
		}
	})

	t.Run("order preserved", func(t *testing.T) {
		points := []NormalizedPoint{{0, 0}, {1, 1}, {0.5, 0.5}, {0.5, 0.5}, {1, 0}}
		got := TransformPointGroup(points, parent, scaleFlip)
		if len(got) != len(points) {
			t.Fatalf("len = %d, want %d", len(got), len(points))
		}
		for i, p := range points {
			want := TransformPoint(p, parent, scaleFlip)
			if !samePoint(got[i], want) {
				t.Errorf("point %d = %+v, want %+v", i, got[i], want)
			}
		}
	})
}

func TestBuildDrawableGeometry(t *testing.T) {
	t.Run("no face", func(t *testing.T) {
		if got := BuildDrawableGeometry(nil, identity); got != nil {
			t.Errorf("BuildDrawableGeometry(nil) = %+v, want nil", got)
		}
	})

	t.Run("bounding box only", func(t *testing.T) {
		result := &DetectionResult{BoundingBox: rect(0.25, 0.25, 0.5, 0.5)}
		got := BuildDrawableGeometry(result, identity)
		if got == nil {
			t.Fatal("BuildDrawableGeometry() = nil")
		}
		want := ViewRect{Origin: ViewPoint{0.25, 0.25}, Size: ViewSize{0.5, 0.5}}
		if got.BoundingBox != want {
			t.Errorf("bounding box = %+v, want %+v", got.BoundingBox, want)
		}
		if len(got.Landmarks) != 0 {
			t.Errorf("landmarks = %v, want none", got.Landmarks)
		}
	})

	t.Run("groups use the normalized box as parent", func(t *testing.T) {
		yaw := -0.4
		result := &DetectionResult{
			BoundingBox: rect(0.2, 0.3, 0.4, 0.4),
			Landmarks: Landmarks{
				LeftEye:   {{0.5, 0.5}, {0, 1}},
				OuterLips: {},
			},
			Yaw: &yaw,
		}
		got := BuildDrawableGeometry(result, scaleFlip)

		eye, ok := got.Group(LeftEye)
		if !ok {
			t.Fatal("leftEye missing")
		}
		if !samePoint(eye[0], scaleFlip(NormalizedPoint{0.4, 0.5})) {
			t.Errorf("leftEye[0] = %+v", eye[0])
		}
		if !samePoint(eye[1], scaleFlip(NormalizedPoint{0.2, 0.7})) {
			t.Errorf("leftEye[1] = %+v", eye[1])
		}

		lips, ok := got.Group(OuterLips)
		if !ok || lips == nil || len(lips) != 0 {
			t.Errorf("outerLips = %#v, %v; want present and empty", lips, ok)
		}
		if _, ok := got.Group(RightEye); ok {
			t.Error("rightEye present but was not detected")
		}
		if got.Yaw == nil || *got.Yaw != yaw {
			t.Errorf("yaw = %v, want %v", got.Yaw, yaw)
		}
	})

	t.Run("leftEye key iff present in input", func(t *testing.T) {
		with := &DetectionResult{Landmarks: Landmarks{LeftEye: {{0.1, 0.1}}}}
		without := &DetectionResult{Landmarks: Landmarks{RightEye: {{0.1, 0.1}}}}

		if _, ok := BuildDrawableGeometry(with, identity).Group(LeftEye); !ok {
			t.Error("leftEye missing from output")
		}
		if _, ok := BuildDrawableGeometry(without, identity).Group(LeftEye); ok {
			t.Error("leftEye present in output")
		}
	})

	t.Run("absent frame after present frame", func(t *testing.T) {
		frames := []*DetectionResult{
			{BoundingBox: rect(0.1, 0.1, 0.3, 0.3)},
			nil,
		}
		var last *DrawableFaceGeometry
		for _, f := range frames {
			last = BuildDrawableGeometry(f, identity)
		}
		if last != nil {
			t.Errorf("second frame = %+v, want nil", last)
		}
	})
}

func TestDetectionResultOnly(t *testing.T) {
	result := &DetectionResult{
		BoundingBox: rect(0, 0, 1, 1),
		Landmarks: Landmarks{
			LeftEye:  {{0.1, 0.1}},
			RightEye: {{0.9, 0.1}},
			Nose:     {},
		},
	}

	only := result.Only(LeftEye, Nose, InnerLips)
	if len(only.Landmarks) != 2 {
		t.Fatalf("landmarks = %v, want leftEye and nose", only.Landmarks)
	}
	if _, ok := only.Landmarks[InnerLips]; ok {
		t.Error("innerLips invented by Only")
	}
	if len(result.Landmarks) != 3 {
		t.Error("Only modified the receiver")
	}

	if all := result.Only(); len(all.Landmarks) != 3 {
		t.Errorf("Only() kept %d groups, want 3", len(all.Landmarks))
	}

	var none *DetectionResult
	if none.Only(LeftEye) != nil {
		t.Error("nil result became non-nil")
	}
}

func TestGroupClosed(t *testing.T) {
	if !LeftEye.Closed() || !InnerLips.Closed() {
		t.Error("eyes and lips should be closed")
	}
	if FaceContour.Closed() || Nose.Closed() || LeftEyebrow.Closed() {
		t.Error("contour, nose and eyebrows should be open")
	}
}
