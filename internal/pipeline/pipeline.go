package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/time/rate"

	"github.com/dudu/facelasers/internal/detector"
	"github.com/dudu/facelasers/internal/geometry"
	"github.com/dudu/facelasers/internal/log"
	"github.com/dudu/facelasers/internal/overlay"
)

// DefaultStaleAfter is how long an overlay survives without a new result
const DefaultStaleAfter = 500 * time.Millisecond

// Config holds pipeline configuration
type Config struct {
	Detector  FaceDetector
	Converter geometry.Converter
	Sink      Sink
	// Recorder is optional
	Recorder Recorder
	// Groups limits the landmark groups passed on; empty keeps all
	Groups []geometry.Group
	// DetectFPS caps detections per second; 0 means no cap
	DetectFPS float64
	// StaleAfter clears the overlay when no result arrives in time; 0 disables
	StaleAfter time.Duration
}

// Timing holds performance timing information
type Timing struct {
	Detection time.Duration
	Transform time.Duration
	Total     time.Duration
}

// Stats counts frames through the pipeline
type Stats struct {
	Submitted uint64
	Busy      uint64
	Limited   uint64
	Failed    uint64
	Posted    uint64
	Cleared   uint64
}

type frame struct {
	mat gocv.Mat
	seq uint64
}

// Pipeline runs detection on one worker goroutine and posts drawable
// geometry for each processed frame, in capture order.
type Pipeline struct {
	config  Config
	frames  chan frame
	limiter *rate.Limiter
	now     func() time.Time

	mu         sync.Mutex
	seq        uint64
	lastTiming Timing
	stats      Stats

	// owned by Run
	lastPost time.Time
	cleared  bool
}

// New creates a new detection pipeline
func New(config Config) (*Pipeline, error) {
	if config.Detector == nil {
		return nil, errors.New("pipeline requires a detector")
	}
	if config.Converter == nil {
		return nil, errors.New("pipeline requires a converter")
	}
	if config.Sink == nil {
		return nil, errors.New("pipeline requires a sink")
	}
	if config.DetectFPS < 0 || config.StaleAfter < 0 {
		return nil, fmt.Errorf("invalid pipeline limits: fps %v, stale %v", config.DetectFPS, config.StaleAfter)
	}

	limit := rate.Inf
	if config.DetectFPS > 0 {
		limit = rate.Limit(config.DetectFPS)
	}

	return &Pipeline{
		config:  config,
		frames:  make(chan frame, 1),
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		cleared: true,
	}, nil
}

// Submit offers a frame for detection without blocking. The frame is
// cloned; it returns false when a frame is already waiting.
func (p *Pipeline) Submit(img gocv.Mat) bool {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.stats.Submitted++
	p.mu.Unlock()

	if img.Empty() {
		return false
	}

	f := frame{mat: img.Clone(), seq: seq}
	select {
	case p.frames <- f:
		return true
	default:
		f.mat.Close()
		p.mu.Lock()
		p.stats.Busy++
		p.mu.Unlock()
		return false
	}
}

// Run processes submitted frames until ctx is done
func (p *Pipeline) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if p.config.StaleAfter > 0 {
		interval := p.config.StaleAfter / 4
		if interval < time.Millisecond {
			interval = time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			p.drain()
			return ctx.Err()
		case f := <-p.frames:
			p.process(f)
			f.mat.Close()
		case <-tick:
			p.checkStale()
		}
	}
}

func (p *Pipeline) process(f frame) {
	if !p.limiter.Allow() {
		p.count(func(s *Stats) { s.Limited++ })
		return
	}

	totalStart := time.Now()
	var timing Timing

	detectStart := time.Now()
	faces, err := p.config.Detector.Detect(f.mat)
	timing.Detection = time.Since(detectStart)
	if err != nil {
		p.count(func(s *Stats) { s.Failed++ })
		log.Warn(log.Fields{"frame": f.seq, "error": err.Error()}, "detection failed")
		return
	}

	transformStart := time.Now()
	result := detector.FirstFace(faces, f.mat.Cols(), f.mat.Rows())
	if result != nil && len(p.config.Groups) > 0 {
		result = result.Only(p.config.Groups...)
	}
	drawable := geometry.BuildDrawableGeometry(result, p.config.Converter)
	timing.Transform = time.Since(transformStart)

	p.post(overlay.Update{Frame: f.seq, Geometry: drawable})

	timing.Total = time.Since(totalStart)
	p.mu.Lock()
	p.lastTiming = timing
	p.mu.Unlock()
}

func (p *Pipeline) checkStale() {
	if p.cleared || p.now().Sub(p.lastPost) < p.config.StaleAfter {
		return
	}
	p.mu.Lock()
	seq := p.seq
	p.mu.Unlock()

	log.Debug(log.Fields{"frame": seq}, "overlay stale, clearing")
	p.post(overlay.Update{Frame: seq})
}

func (p *Pipeline) post(u overlay.Update) {
	if p.config.Recorder != nil {
		if err := p.config.Recorder.Record(u); err != nil {
			log.Warn(log.Fields{"frame": u.Frame, "error": err.Error()}, "recording failed")
		}
	}

	p.lastPost = p.now()
	p.cleared = u.Geometry == nil
	p.count(func(s *Stats) {
		s.Posted++
		if u.Geometry == nil {
			s.Cleared++
		}
	})

	p.config.Sink.Post(u)
}

func (p *Pipeline) count(fn func(*Stats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}

func (p *Pipeline) drain() {
	for {
		select {
		case f := <-p.frames:
			f.mat.Close()
		default:
			return
		}
	}
}

// LastTiming returns timing from the last processed frame
func (p *Pipeline) LastTiming() Timing {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTiming
}

// Stats returns a snapshot of the frame counters
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Close releases pipeline resources. Call it after Run has returned.
func (p *Pipeline) Close() error {
	p.drain()

	var errs []error
	if p.config.Detector != nil {
		if err := p.config.Detector.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
