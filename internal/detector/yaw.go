package detector

import "github.com/dudu/facelasers/internal/geometry"

// EstimateYaw gives a rough, signed horizontal head turn in [-1, 1] from the
// face geometry. Negative means the face turned toward the image left.
// It uses the nose position between the eyes when available and the eyes
// against the box center otherwise. Without both eyes there is no estimate.
func EstimateYaw(face Face) *float64 {
	left, okL := centroid(face.Groups[geometry.LeftPupil], face.Groups[geometry.LeftEye])
	right, okR := centroid(face.Groups[geometry.RightPupil], face.Groups[geometry.RightEye])
	if !okL || !okR {
		return nil
	}

	midX := (left.X + right.X) / 2
	half := absf(right.X-left.X) / 2

	var yaw float64
	if nose, ok := centroid(face.Groups[geometry.Nose]); ok && half > 0 {
		yaw = float64(nose.X-midX) / float64(half)
	} else if w := face.BoundingBox.Width(); w > 0 {
		yaw = float64(face.BoundingBox.Center().X-midX) / float64(w/2)
	}

	yaw = max(-1, min(1, yaw))
	return &yaw
}

// centroid averages the first non-empty group
func centroid(groups ...[]Point) (Point, bool) {
	for _, points := range groups {
		if len(points) == 0 {
			continue
		}
		var c Point
		for _, p := range points {
			c.X += p.X
			c.Y += p.Y
		}
		n := float32(len(points))
		return Point{X: c.X / n, Y: c.Y / n}, true
	}
	return Point{}, false
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
