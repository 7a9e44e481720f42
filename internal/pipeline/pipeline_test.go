package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/facelasers/internal/detector"
	"github.com/dudu/facelasers/internal/geometry"
	"github.com/dudu/facelasers/internal/overlay"
)

type fakeDetector struct {
	mu     sync.Mutex
	faces  []detector.Face
	err    error
	calls  int
	closed bool
}

func (d *fakeDetector) Detect(img gocv.Mat) ([]detector.Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.faces, d.err
}

func (d *fakeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDetector) set(faces []detector.Face, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faces, d.err = faces, err
}

// chanSink forwards every update so tests can observe them in order
type chanSink chan overlay.Update

func (s chanSink) Post(u overlay.Update) { s <- u }

type memRecorder struct {
	mu      sync.Mutex
	updates []overlay.Update
}

func (r *memRecorder) Record(u overlay.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return nil
}

func (r *memRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func pixels(p geometry.NormalizedPoint) geometry.ViewPoint {
	return geometry.ViewPoint{X: p.X * 64, Y: (1 - p.Y) * 48}
}

func oneFace() []detector.Face {
	return []detector.Face{{
		BoundingBox: detector.BoundingBox{X1: 16, Y1: 12, X2: 48, Y2: 36},
		Groups: map[geometry.Group][]detector.Point{
			geometry.LeftEye:   {{X: 24, Y: 20}},
			geometry.RightEye:  {{X: 40, Y: 20}},
			geometry.OuterLips: {{X: 32, Y: 30}},
		},
		Score: 0.9,
	}}
}

func newTestPipeline(t *testing.T, det *fakeDetector, stale time.Duration) (*Pipeline, chanSink, *memRecorder) {
	t.Helper()
	sink := make(chanSink, 16)
	rec := &memRecorder{}
	p, err := New(Config{
		Detector:   det,
		Converter:  pixels,
		Sink:       sink,
		Recorder:   rec,
		StaleAfter: stale,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return p, sink, rec
}

func start(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		p.Close()
	})
}

func testFrame(t *testing.T) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return m
}

func receive(t *testing.T, sink chanSink) overlay.Update {
	t.Helper()
	select {
	case u := <-sink:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an update")
	}
	return overlay.Update{}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without a detector should fail")
	}
	if _, err := New(Config{Detector: &fakeDetector{}, Converter: pixels}); err == nil {
		t.Error("New() without a sink should fail")
	}
	if _, err := New(Config{Detector: &fakeDetector{}, Converter: pixels, Sink: make(chanSink), DetectFPS: -1}); err == nil {
		t.Error("New() with negative fps should fail")
	}
}

func TestPostsInCaptureOrder(t *testing.T) {
	det := &fakeDetector{faces: oneFace()}
	p, sink, rec := newTestPipeline(t, det, 0)
	start(t, p)
	img := testFrame(t)

	var last uint64
	for i := 0; i < 5; i++ {
		for !p.Submit(img) {
			time.Sleep(time.Millisecond)
		}
		u := receive(t, sink)
		if u.Frame <= last {
			t.Fatalf("frame %d posted after %d", u.Frame, last)
		}
		last = u.Frame
		if u.Geometry == nil {
			t.Fatal("face frame posted no geometry")
		}
	}

	if rec.len() != 5 {
		t.Errorf("recorder saw %d updates, want 5", rec.len())
	}
}

func TestGeometryInViewSpace(t *testing.T) {
	det := &fakeDetector{faces: oneFace()}
	p, sink, _ := newTestPipeline(t, det, 0)
	start(t, p)

	p.Submit(testFrame(t))
	u := receive(t, sink)

	eye, ok := u.Geometry.Group(geometry.LeftEye)
	if !ok || len(eye) != 1 {
		t.Fatalf("leftEye = %v, %v", eye, ok)
	}
	// the converter maps back to pixels, so the landmark returns to where it was found
	if eye[0].X < 23.999 || eye[0].X > 24.001 || eye[0].Y < 19.999 || eye[0].Y > 20.001 {
		t.Errorf("leftEye[0] = %+v, want (24, 20)", eye[0])
	}
}

func TestNoFaceClears(t *testing.T) {
	det := &fakeDetector{}
	p, sink, _ := newTestPipeline(t, det, 0)
	start(t, p)

	p.Submit(testFrame(t))
	if u := receive(t, sink); u.Geometry != nil {
		t.Errorf("no-face frame posted geometry %+v", u.Geometry)
	}
}

func TestDetectorErrorSkipsFrame(t *testing.T) {
	det := &fakeDetector{err: errors.New("model exploded")}
	p, sink, _ := newTestPipeline(t, det, 0)
	start(t, p)
	img := testFrame(t)

	for !p.Submit(img) {
		time.Sleep(time.Millisecond)
	}
	deadline := time.Now().Add(2 * time.Second)
	for p.Stats().Failed == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	select {
	case u := <-sink:
		t.Errorf("failed frame posted %+v", u)
	case <-time.After(50 * time.Millisecond):
	}

	det.set(oneFace(), nil)
	for !p.Submit(img) {
		time.Sleep(time.Millisecond)
	}
	if u := receive(t, sink); u.Geometry == nil {
		t.Error("recovered detector posted no geometry")
	}
}

func TestStaleOverlayClearsOnce(t *testing.T) {
	det := &fakeDetector{faces: oneFace()}
	p, sink, _ := newTestPipeline(t, det, 40*time.Millisecond)
	start(t, p)

	p.Submit(testFrame(t))
	if u := receive(t, sink); u.Geometry == nil {
		t.Fatal("first update should carry geometry")
	}

	if u := receive(t, sink); u.Geometry != nil {
		t.Fatalf("stale update carried geometry %+v", u.Geometry)
	}

	select {
	case u := <-sink:
		t.Errorf("second stale clear %+v", u)
	case <-time.After(150 * time.Millisecond):
	}
	if got := p.Stats().Cleared; got != 1 {
		t.Errorf("Cleared = %d, want 1", got)
	}
}

func TestSubmitBusy(t *testing.T) {
	det := &fakeDetector{faces: oneFace()}
	p, _, _ := newTestPipeline(t, det, 0)
	img := testFrame(t)

	// no worker running: the first frame waits, the second is refused
	if !p.Submit(img) {
		t.Fatal("first Submit() refused")
	}
	if p.Submit(img) {
		t.Error("second Submit() accepted while a frame is waiting")
	}
	if s := p.Stats(); s.Submitted != 2 || s.Busy != 1 {
		t.Errorf("stats = %+v", s)
	}

	p.Close()
	if !det.closed {
		t.Error("Close() did not close the detector")
	}
}

func TestRateLimit(t *testing.T) {
	det := &fakeDetector{faces: oneFace()}
	sink := make(chanSink, 16)
	p, err := New(Config{Detector: det, Converter: pixels, Sink: sink, DetectFPS: 0.001})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	start(t, p)
	img := testFrame(t)

	for !p.Submit(img) {
		time.Sleep(time.Millisecond)
	}
	receive(t, sink)

	for !p.Submit(img) {
		time.Sleep(time.Millisecond)
	}
	deadline := time.Now().Add(2 * time.Second)
	for p.Stats().Limited == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if p.Stats().Limited != 1 {
		t.Errorf("Limited = %d, want 1", p.Stats().Limited)
	}
}

func TestGroupsFilter(t *testing.T) {
	sink := make(chanSink, 4)
	p, err := New(Config{
		Detector:  &fakeDetector{faces: oneFace()},
		Converter: pixels,
		Sink:      sink,
		Groups:    []geometry.Group{geometry.LeftEye, geometry.RightEye},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	start(t, p)

	p.Submit(testFrame(t))
	u := receive(t, sink)
	if u.Geometry == nil {
		t.Fatal("face frame posted no geometry")
	}
	for _, g := range []geometry.Group{geometry.LeftEye, geometry.RightEye} {
		if _, ok := u.Geometry.Group(g); !ok {
			t.Errorf("%s missing after filtering", g)
		}
	}
	if _, ok := u.Geometry.Group(geometry.OuterLips); ok {
		t.Error("outerLips passed a filter that excludes it")
	}
}
