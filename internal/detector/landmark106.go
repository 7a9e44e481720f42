package detector

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/facelasers/internal/geometry"
	"github.com/dudu/facelasers/internal/inference"
)

// Landmarks106 represents 106 facial landmark points from insightface
type Landmarks106 [106]Point

// landmark106Groups maps insightface's 106-point layout onto landmark
// groups. Index order is drawing order.
var landmark106Groups = map[geometry.Group][]int{
	geometry.FaceContour:  seq(0, 32),
	geometry.RightEye:     {35, 36, 33, 37, 39, 42, 40, 41},
	geometry.LeftEye:      {89, 90, 87, 91, 93, 96, 94, 95},
	geometry.RightPupil:   {38},
	geometry.LeftPupil:    {88},
	geometry.RightEyebrow: {43, 48, 49, 51, 50},
	geometry.LeftEyebrow:  {102, 103, 104, 105, 101},
	geometry.Nose:         {72, 73, 74, 86, 78, 79, 80, 85, 84, 77},
	geometry.OuterLips:    {52, 64, 63, 71, 67, 68, 61, 58, 59, 53, 56, 55},
	geometry.InnerLips:    {65, 66, 62, 70, 69, 57, 60, 54},
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// Groups returns the points of every landmark group
func (l *Landmarks106) Groups() map[geometry.Group][]Point {
	groups := make(map[geometry.Group][]Point, len(landmark106Groups))
	for group, indices := range landmark106Groups {
		groups[group] = l.GetPoints(indices)
	}
	return groups
}

// GetPoints returns the points at the given indices
func (l *Landmarks106) GetPoints(indices []int) []Point {
	points := make([]Point, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(l) {
			points = append(points, l[idx])
		}
	}
	return points
}

// Landmark106 detects 106 facial landmarks using insightface's 2d106det model
type Landmark106 struct {
	session   *inference.Session
	inputSize int
}

// NewLandmark106 creates a new 106-point landmark detector
func NewLandmark106(modelPath string) (*Landmark106, error) {
	session, err := inference.NewSession(modelPath, []string{"data"}, []string{"fc1"})
	if err != nil {
		return nil, fmt.Errorf("failed to create landmark session: %w", err)
	}

	return &Landmark106{
		session:   session,
		inputSize: 192,
	}, nil
}

// Detect fills face.Landmarks106 and face.Groups from a crop around the box
func (l *Landmark106) Detect(img gocv.Mat, face *Face) error {
	box := face.BoundingBox
	center := box.Center()
	side := max(box.Width(), box.Height())
	if side <= 0 {
		return fmt.Errorf("empty face box")
	}
	// 1.5x expansion like insightface
	scale := float32(l.inputSize) / (side * 1.5)

	m := l.cropTransform(center, scale)
	defer m.Close()

	aligned := gocv.NewMat()
	defer aligned.Close()
	gocv.WarpAffine(img, &aligned, m, image.Pt(l.inputSize, l.inputSize))

	// 2d106det expects raw RGB pixels, no mean or std
	blob := gocv.BlobFromImage(aligned, 1.0, image.Pt(l.inputSize, l.inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	input, err := inference.NewTensor([]int64{1, 3, int64(l.inputSize), int64(l.inputSize)}, bytesToFloat32(blob.ToBytes()))
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	// (1, 212) = 106 landmarks * 2 coords
	output, err := inference.NewEmptyTensor[float32]([]int64{1, 212})
	if err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	if err := l.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return fmt.Errorf("landmark inference failed: %w", err)
	}

	landmarks := l.postprocess(output.GetData(), center, scale)
	face.Landmarks106 = &landmarks
	face.Groups = landmarks.Groups()
	face.Yaw = EstimateYaw(*face)
	return nil
}

// cropTransform scales around the box center into the model input
func (l *Landmark106) cropTransform(center Point, scale float32) gocv.Mat {
	half := float64(l.inputSize) / 2

	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	m.SetDoubleAt(0, 0, float64(scale))
	m.SetDoubleAt(0, 1, 0)
	m.SetDoubleAt(0, 2, half-float64(center.X*scale))
	m.SetDoubleAt(1, 0, 0)
	m.SetDoubleAt(1, 1, float64(scale))
	m.SetDoubleAt(1, 2, half-float64(center.Y*scale))
	return m
}

// postprocess maps model output in [-1, 1] back to frame pixels
func (l *Landmark106) postprocess(output []float32, center Point, scale float32) Landmarks106 {
	var landmarks Landmarks106
	half := float32(l.inputSize) / 2

	for i := range landmarks {
		landmarks[i] = Point{
			X: output[i*2]*half/scale + center.X,
			Y: output[i*2+1]*half/scale + center.Y,
		}
	}
	return landmarks
}

// Close releases detector resources
func (l *Landmark106) Close() error {
	return l.session.Destroy()
}
