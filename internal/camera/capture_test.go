package camera

import (
	"testing"

	"github.com/pion/mediadevices"
)

func TestOpenUnknownDriver(t *testing.T) {
	src, err := Open("v4l9", Options{})
	if err == nil {
		src.Close()
		t.Fatal("Open() with an unknown driver should fail")
	}
}

func TestCaptureClosedRead(t *testing.T) {
	c := &Capture{}
	if c.Read(nil) {
		t.Error("Read() on a closed capture should be false")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() twice: %v", err)
	}
}

func TestVideoDeviceID(t *testing.T) {
	devices := []mediadevices.MediaDeviceInfo{
		{DeviceID: "mic", Kind: mediadevices.AudioInput},
		{DeviceID: "front", Kind: mediadevices.VideoInput},
		{DeviceID: "speaker", Kind: mediadevices.AudioInput},
		{DeviceID: "usb", Kind: mediadevices.VideoInput},
	}

	tests := []struct {
		index   int
		want    string
		wantErr bool
	}{
		{0, "front", false},
		{1, "usb", false},
		{2, "", true},
	}
	for _, tt := range tests {
		got, err := videoDeviceID(devices, tt.index)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("videoDeviceID(%d) = %q, %v; want %q, error %v", tt.index, got, err, tt.want, tt.wantErr)
		}
	}

	if _, err := videoDeviceID(nil, 0); err == nil {
		t.Error("videoDeviceID() with no devices should fail")
	}
}
