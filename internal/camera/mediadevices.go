package camera

import (
	"fmt"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"gocv.io/x/gocv"

	// registers the camera adapter
	_ "github.com/pion/mediadevices/pkg/driver/camera"
)

// MediaDevicesCapture reads frames through pion/mediadevices. The frames
// arrive as image.Image and are converted to BGR Mats.
type MediaDevicesCapture struct {
	track  *mediadevices.VideoTrack
	reader video.Reader
	width  int
	height int
	mu     sync.Mutex
}

// videoDeviceID returns the id of the index-th video input, counting only
// video inputs in enumeration order
func videoDeviceID(devices []mediadevices.MediaDeviceInfo, index int) (string, error) {
	n := 0
	for _, d := range devices {
		if d.Kind != mediadevices.VideoInput {
			continue
		}
		if n == index {
			return d.DeviceID, nil
		}
		n++
	}
	return "", fmt.Errorf("no video camera available at index %d (%d found)", index, n)
}

// NewMediaDevicesCapture opens the opts.Device-th camera mediadevices reports
func NewMediaDevicesCapture(opts Options) (*MediaDevicesCapture, error) {
	deviceID, err := videoDeviceID(mediadevices.EnumerateDevices(), opts.Device)
	if err != nil {
		return nil, err
	}

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.DeviceID = prop.String(deviceID)
			if opts.Width > 0 && opts.Height > 0 {
				c.Width = prop.Int(opts.Width)
				c.Height = prop.Int(opts.Height)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open camera: %w", err)
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no video camera available")
	}
	track, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		tracks[0].Close()
		return nil, fmt.Errorf("unexpected track type %T", tracks[0])
	}

	c := &MediaDevicesCapture{
		track:  track,
		reader: track.NewReader(false),
		width:  opts.Width,
		height: opts.Height,
	}
	return c, nil
}

// Read captures a frame into the provided Mat
func (c *MediaDevicesCapture) Read(frame *gocv.Mat) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reader == nil {
		return false
	}

	img, release, err := c.reader.Read()
	if err != nil {
		return false
	}
	defer release()

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return false
	}
	defer mat.Close()

	mat.CopyTo(frame)
	c.width, c.height = mat.Cols(), mat.Rows()
	return true
}

// Width returns the last frame width
func (c *MediaDevicesCapture) Width() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width
}

// Height returns the last frame height
func (c *MediaDevicesCapture) Height() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// Close stops the track
func (c *MediaDevicesCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.track != nil {
		err := c.track.Close()
		c.track = nil
		c.reader = nil
		return err
	}
	return nil
}
