package pipeline

import (
	"gocv.io/x/gocv"

	"github.com/dudu/facelasers/internal/detector"
	"github.com/dudu/facelasers/internal/overlay"
)

// FaceDetector interface for face detection
type FaceDetector interface {
	Detect(img gocv.Mat) ([]detector.Face, error)
	Close() error
}

// Sink receives overlay updates, typically an overlay.Mailbox
type Sink interface {
	Post(u overlay.Update)
}

// Recorder keeps a copy of every posted update
type Recorder interface {
	Record(u overlay.Update) error
}
