// Package record writes overlay updates as JSON lines for offline review.
package record

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/dudu/facelasers/internal/geometry"
	"github.com/dudu/facelasers/internal/overlay"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Point is a view-space point
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a view-space rectangle
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Face is the recorded form of a DrawableFaceGeometry
type Face struct {
	BoundingBox Rect                       `json:"boundingBox"`
	Landmarks   map[geometry.Group][]Point `json:"landmarks"`
	Yaw         *float64                   `json:"yaw,omitempty"`
}

// Entry is one line of a recording. A nil Face means the overlay was cleared.
type Entry struct {
	Session string `json:"session"`
	Frame   uint64 `json:"frame"`
	Time    int64  `json:"time"`
	Face    *Face  `json:"face"`
}

// Writer appends entries to a stream, one JSON object per line
type Writer struct {
	mu      sync.Mutex
	session string
	buf     *bufio.Writer
	enc     *jsoniter.Encoder
	closer  io.Closer
	now     func() time.Time
}

// NewWriter records to w under a fresh session id
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	rw := &Writer{
		session: uuid.NewString(),
		buf:     buf,
		enc:     json.NewEncoder(buf),
		now:     time.Now,
	}
	if c, ok := w.(io.Closer); ok {
		rw.closer = c
	}
	return rw
}

// Create records to the file at path, truncating it
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}
	return NewWriter(f), nil
}

// Session returns the id stamped on every entry
func (w *Writer) Session() string {
	return w.session
}

// Record writes one update
func (w *Writer) Record(u overlay.Update) error {
	entry := Entry{
		Session: w.session,
		Frame:   u.Frame,
		Face:    fromGeometry(u.Geometry),
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	entry.Time = w.now().UnixNano()
	if err := w.enc.Encode(&entry); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", u.Frame, err)
	}
	return nil
}

// Flush writes buffered entries through
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Flush()
}

// Close flushes and closes the underlying stream if it is closable
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.buf.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
		w.closer = nil
	}
	return err
}

func fromGeometry(g *geometry.DrawableFaceGeometry) *Face {
	if g == nil {
		return nil
	}

	f := &Face{
		BoundingBox: Rect{
			X:      g.BoundingBox.Origin.X,
			Y:      g.BoundingBox.Origin.Y,
			Width:  g.BoundingBox.Size.Width,
			Height: g.BoundingBox.Size.Height,
		},
		Landmarks: make(map[geometry.Group][]Point, len(g.Landmarks)),
		Yaw:       g.Yaw,
	}
	for group, points := range g.Landmarks {
		out := make([]Point, len(points))
		for i, p := range points {
			out[i] = Point{X: p.X, Y: p.Y}
		}
		f.Landmarks[group] = out
	}
	return f
}

// ReadAll decodes every entry from r, skipping blank lines
func ReadAll(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return entries, fmt.Errorf("failed to decode entry %d: %w", len(entries), err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("failed to read recording: %w", err)
	}
	return entries, nil
}
