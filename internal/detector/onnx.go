package detector

import (
	"fmt"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/dudu/facelasers/internal/log"
)

// ONNXConfig configures the ONNX detector backend
type ONNXConfig struct {
	ModelDir      string
	DetectionSize int
	ConfThreshold float32
	NMSThreshold  float32
	// Landmarks enables the 106-point model; without it only the
	// five SCRFD points are available.
	Landmarks bool
}

// ONNX chains SCRFD face detection with optional 106-point landmarks
type ONNX struct {
	scrfd     *SCRFD
	landmarks *Landmark106
}

// NewONNX loads the SCRFD and (optionally) 2d106det models from ModelDir
func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	scrfd, err := NewSCRFD(
		filepath.Join(cfg.ModelDir, "scrfd_10g.onnx"),
		cfg.DetectionSize,
		cfg.ConfThreshold,
		cfg.NMSThreshold,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}

	d := &ONNX{scrfd: scrfd}
	if cfg.Landmarks {
		lm, err := NewLandmark106(filepath.Join(cfg.ModelDir, "2d106det.onnx"))
		if err != nil {
			scrfd.Close()
			return nil, fmt.Errorf("failed to create landmark detector: %w", err)
		}
		d.landmarks = lm
	}

	return d, nil
}

// Detect finds faces, most confident first. Only the first face gets the
// 106-point landmarks since that is the one drawn.
func (d *ONNX) Detect(img gocv.Mat) ([]Face, error) {
	faces, err := d.scrfd.Detect(img)
	if err != nil {
		return nil, err
	}

	if d.landmarks != nil && len(faces) > 0 {
		if err := d.landmarks.Detect(img, &faces[0]); err != nil {
			// Keep the 5-point groups for this frame
			log.Debug(log.Fields{"error": err}, "106-point landmarks failed")
		}
	}

	return faces, nil
}

// Close releases both models
func (d *ONNX) Close() error {
	var errs []error
	if err := d.scrfd.Close(); err != nil {
		errs = append(errs, err)
	}
	if d.landmarks != nil {
		if err := d.landmarks.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
