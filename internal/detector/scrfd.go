package detector

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/facelasers/internal/inference"
)

// SCRFD implements the SCRFD face detector on ONNX Runtime
type SCRFD struct {
	session        *inference.Session
	inputSize      int
	confThreshold  float32
	nmsThreshold   float32
	featureStrides []int
	numAnchors     int
}

// NewSCRFD creates a new SCRFD detector
func NewSCRFD(modelPath string, inputSize int, confThreshold, nmsThreshold float32) (*SCRFD, error) {
	if inputSize <= 0 || inputSize%32 != 0 {
		return nil, fmt.Errorf("invalid SCRFD input size %d: must be a positive multiple of 32", inputSize)
	}

	// 1 input, 9 outputs (3 strides x score, bbox, kps)
	inputNames := []string{"input.1"}
	outputNames := []string{
		"score_8", "score_16", "score_32",
		"bbox_8", "bbox_16", "bbox_32",
		"kps_8", "kps_16", "kps_32",
	}

	session, err := inference.NewSession(modelPath, inputNames, outputNames)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCRFD session: %w", err)
	}

	return &SCRFD{
		session:        session,
		inputSize:      inputSize,
		confThreshold:  confThreshold,
		nmsThreshold:   nmsThreshold,
		featureStrides: []int{8, 16, 32},
		numAnchors:     2,
	}, nil
}

// Detect finds faces in a BGR image, most confident first
func (s *SCRFD) Detect(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, nil
	}

	blob, scale := s.preprocess(img)
	defer blob.Close()

	inputTensor, err := inference.NewTensor(
		[]int64{1, 3, int64(s.inputSize), int64(s.inputSize)},
		bytesToFloat32(blob.ToBytes()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	levels := len(s.featureStrides)
	outputs := make([]ort.Value, 3*levels)
	tensors := make([]*ort.Tensor[float32], 3*levels)
	defer func() {
		for _, t := range tensors {
			if t != nil {
				t.Destroy()
			}
		}
	}()

	for i, stride := range s.featureStrides {
		side := s.inputSize / stride
		anchors := int64(side * side * s.numAnchors)

		for j, width := range []int64{1, 4, 10} { // score, bbox, kps
			t, err := inference.NewEmptyTensor[float32]([]int64{anchors, width})
			if err != nil {
				return nil, fmt.Errorf("failed to create output tensor: %w", err)
			}
			outputs[i+j*levels] = t
			tensors[i+j*levels] = t
		}
	}

	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	var faces []Face
	for i, stride := range s.featureStrides {
		faces = append(faces, s.decodeLevel(
			stride,
			tensors[i].GetData(),
			tensors[i+levels].GetData(),
			tensors[i+2*levels].GetData(),
			scale, img.Cols(), img.Rows(),
		)...)
	}

	return nms(faces, s.nmsThreshold), nil
}

// preprocess letterboxes the image into the model input and normalizes it
// to (x - 127.5) / 128 in RGB NCHW order
func (s *SCRFD) preprocess(img gocv.Mat) (gocv.Mat, float32) {
	scale := float32(s.inputSize) / float32(max(img.Rows(), img.Cols()))
	newWidth := int(float32(img.Cols()) * scale)
	newHeight := int(float32(img.Rows()) * scale)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), s.inputSize, s.inputSize, gocv.MatTypeCV8UC3)
	defer padded.Close()

	roi := padded.Region(image.Rect(0, 0, newWidth, newHeight))
	resized.CopyTo(&roi)
	roi.Close()

	blob := gocv.BlobFromImage(padded, 1.0/128.0, image.Pt(s.inputSize, s.inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)

	return blob, scale
}

// decodeLevel turns one stride's anchors into pixel-space faces
func (s *SCRFD) decodeLevel(stride int, scores, boxes, kps []float32, scale float32, width, height int) []Face {
	var faces []Face
	side := s.inputSize / stride
	st := float32(stride)

	anchor := 0
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			for a := 0; a < s.numAnchors; a, anchor = a+1, anchor+1 {
				score := scores[anchor]
				if score < 0 || score > 1 {
					score = sigmoid(score)
				}
				if score <= s.confThreshold {
					continue
				}

				cx := float32(x) * st
				cy := float32(y) * st

				b := boxes[anchor*4 : anchor*4+4]
				box := BoundingBox{
					X1: clamp((cx-b[0]*st)/scale, 0, float32(width)),
					Y1: clamp((cy-b[1]*st)/scale, 0, float32(height)),
					X2: clamp((cx+b[2]*st)/scale, 0, float32(width)),
					Y2: clamp((cy+b[3]*st)/scale, 0, float32(height)),
				}

				k := kps[anchor*10 : anchor*10+10]
				pt := func(i int) Point {
					return Point{X: (cx + k[2*i]*st) / scale, Y: (cy + k[2*i+1]*st) / scale}
				}
				landmarks := &Landmarks{
					LeftEye:    pt(0),
					RightEye:   pt(1),
					Nose:       pt(2),
					LeftMouth:  pt(3),
					RightMouth: pt(4),
				}

				face := Face{
					BoundingBox: box,
					Landmarks:   landmarks,
					Groups:      landmarks.Groups(),
					Score:       score,
				}
				face.Yaw = EstimateYaw(face)
				faces = append(faces, face)
			}
		}
	}

	return faces
}

// Close releases detector resources
func (s *SCRFD) Close() error {
	return s.session.Destroy()
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}

func clamp(x, lo, hi float32) float32 {
	return max(lo, min(hi, x))
}

func bytesToFloat32(data []byte) []float32 {
	result := make([]float32, len(data)/4)
	for i := range result {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		result[i] = math.Float32frombits(bits)
	}
	return result
}
