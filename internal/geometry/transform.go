package geometry

// Converter maps a frame-relative normalized point to view space. It is
// owned by the preview layer and treated as opaque here.
type Converter func(NormalizedPoint) ViewPoint

// TransformBoundingBox converts a frame-relative normalized rect to view
// space. Origin and size go through the converter separately, the size being
// treated as a point. Values are passed through unvalidated.
func TransformBoundingBox(r NormalizedRect, toView Converter) ViewRect {
	origin := toView(r.Origin)
	size := toView(r.SizeAsPoint())
	return ViewRect{
		Origin: origin,
		Size:   ViewSize{Width: size.X, Height: size.Y},
	}
}

// TransformPoint converts a point relative to parent into view space.
// parent is the frame-relative normalized rect, not its view-space version.
// The point is placed into the frame first and projected second.
func TransformPoint(p NormalizedPoint, parent NormalizedRect, toView Converter) ViewPoint {
	absolute := NormalizedPoint{
		X: parent.Origin.X + p.X*parent.Size.Width,
		Y: parent.Origin.Y + p.Y*parent.Size.Height,
	}
	return toView(absolute)
}

// TransformPointGroup converts every point of a landmark group, keeping
// order. A nil group stays nil; an empty group becomes an empty, non-nil
// slice.
func TransformPointGroup(points []NormalizedPoint, parent NormalizedRect, toView Converter) []ViewPoint {
	if points == nil {
		return nil
	}
	out := make([]ViewPoint, len(points))
	for i, p := range points {
		out[i] = TransformPoint(p, parent, toView)
	}
	return out
}

// BuildDrawableGeometry converts one frame's detection into view space.
// A nil result yields nil, which renderers must treat as "clear".
func BuildDrawableGeometry(result *DetectionResult, toView Converter) *DrawableFaceGeometry {
	if result == nil {
		return nil
	}

	geom := &DrawableFaceGeometry{
		BoundingBox: TransformBoundingBox(result.BoundingBox, toView),
		Landmarks:   make(map[Group][]ViewPoint, len(result.Landmarks)),
	}
	if result.Yaw != nil {
		yaw := *result.Yaw
		geom.Yaw = &yaw
	}

	for group, points := range result.Landmarks {
		if points == nil {
			// nil inside the map is still "present": keep the key, empty.
			points = []NormalizedPoint{}
		}
		geom.Landmarks[group] = TransformPointGroup(points, result.BoundingBox, toView)
	}

	return geom
}
