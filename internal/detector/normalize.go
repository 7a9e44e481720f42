package detector

import "github.com/dudu/facelasers/internal/geometry"

// Normalize converts a pixel-space face into a detection result: the box
// becomes frame-relative with a bottom-left origin and landmark points become
// relative to the box. A box with no area keeps its rect but loses its
// landmarks, since nothing can be relative to it.
func Normalize(face Face, frameWidth, frameHeight int) *geometry.DetectionResult {
	if frameWidth <= 0 || frameHeight <= 0 {
		return nil
	}
	fw, fh := float64(frameWidth), float64(frameHeight)
	box := face.BoundingBox

	result := &geometry.DetectionResult{
		BoundingBox: geometry.NormalizedRect{
			Origin: geometry.NormalizedPoint{
				X: float64(box.X1) / fw,
				Y: 1 - float64(box.Y2)/fh,
			},
			Size: geometry.NormalizedSize{
				Width:  float64(box.Width()) / fw,
				Height: float64(box.Height()) / fh,
			},
		},
		Landmarks:  geometry.Landmarks{},
		Confidence: float64(face.Score),
	}
	if face.Yaw != nil {
		yaw := *face.Yaw
		result.Yaw = &yaw
	}

	bw, bh := float64(box.Width()), float64(box.Height())
	if bw <= 0 || bh <= 0 {
		return result
	}

	for group, points := range face.Groups {
		normalized := make([]geometry.NormalizedPoint, len(points))
		for i, p := range points {
			normalized[i] = geometry.NormalizedPoint{
				X: (float64(p.X) - float64(box.X1)) / bw,
				Y: (float64(box.Y2) - float64(p.Y)) / bh,
			}
		}
		result.Landmarks[group] = normalized
	}

	return result
}

// FirstFace normalizes the first face the detector reported and discards
// the rest. No faces yields nil.
func FirstFace(faces []Face, frameWidth, frameHeight int) *geometry.DetectionResult {
	if len(faces) == 0 {
		return nil
	}
	return Normalize(faces[0], frameWidth, frameHeight)
}
