package camera

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Source delivers captured frames in capture order
type Source interface {
	// Read captures the next frame into frame, false if none was available
	Read(frame *gocv.Mat) bool
	Width() int
	Height() int
	Close() error
}

// Driver selects the capture backend
type Driver string

const (
	DriverGoCV         Driver = "gocv"
	DriverMediaDevices Driver = "mediadevices"
)

// Options holds the requested capture settings; cameras may pick others
type Options struct {
	Device    int
	Width     int
	Height    int
	TargetFPS int
}

// Open opens a camera with the given driver
func Open(driver Driver, opts Options) (Source, error) {
	switch driver {
	case DriverGoCV, "":
		return NewCapture(opts)
	case DriverMediaDevices:
		return NewMediaDevicesCapture(opts)
	}
	return nil, fmt.Errorf("unknown camera driver: %s", driver)
}

// Capture manages webcam capture through OpenCV
type Capture struct {
	webcam    *gocv.VideoCapture
	deviceID  int
	targetFPS int
	width     int
	height    int
	mu        sync.Mutex
}

// NewCapture opens a camera device with the requested resolution
func NewCapture(opts Options) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(opts.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", opts.Device, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("no video camera available at index %d", opts.Device)
	}

	if opts.Width > 0 && opts.Height > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	}
	if opts.TargetFPS > 0 {
		webcam.Set(gocv.VideoCaptureFPS, float64(opts.TargetFPS))
	}

	// Get actual dimensions (camera may not support requested resolution)
	return &Capture{
		webcam:    webcam,
		deviceID:  opts.Device,
		targetFPS: opts.TargetFPS,
		width:     int(webcam.Get(gocv.VideoCaptureFrameWidth)),
		height:    int(webcam.Get(gocv.VideoCaptureFrameHeight)),
	}, nil
}

// Read captures a frame into the provided Mat
func (c *Capture) Read(frame *gocv.Mat) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return false
	}

	return c.webcam.Read(frame) && !frame.Empty()
}

// Width returns frame width
func (c *Capture) Width() int {
	return c.width
}

// Height returns frame height
func (c *Capture) Height() int {
	return c.height
}

// Close releases the camera
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam != nil {
		err := c.webcam.Close()
		c.webcam = nil
		return err
	}
	return nil
}
