package detector

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	pigo "github.com/esimov/pigo/core"
	"gocv.io/x/gocv"

	"github.com/dudu/facelasers/internal/geometry"
)

var (
	eyeCascades     = []string{"lp46", "lp44", "lp42"}
	eyebrowCascades = []string{"lp38", "lp312"}
	mouthCascades   = []string{"lp93", "lp84", "lp82", "lp81"}
)

// PigoGroups lists the landmark groups the pigo backend can produce
var PigoGroups = []geometry.Group{
	geometry.LeftPupil, geometry.RightPupil,
	geometry.LeftEye, geometry.RightEye,
	geometry.LeftEyebrow, geometry.RightEyebrow,
	geometry.OuterLips,
}

const puplocPerturbs = 63

// PigoConfig configures the pigo backend
type PigoConfig struct {
	CascadeDir  string // holds facefinder, puploc and lps/
	MinSize     int
	MaxSize     int
	ShiftFactor float64
	ScaleFactor float64
	IoU         float64
	MinQuality  float32
	Landmarks   bool
}

// DefaultPigoConfig returns parameters that work for a webcam at arm's length
func DefaultPigoConfig(cascadeDir string) PigoConfig {
	return PigoConfig{
		CascadeDir:  cascadeDir,
		MinSize:     80,
		MaxSize:     1000,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		IoU:         0.2,
		MinQuality:  5.0,
		Landmarks:   true,
	}
}

// Pigo detects faces, pupils and a few landmark points with the pigo
// cascades. It runs in pure Go.
type Pigo struct {
	cfg        PigoConfig
	classifier *pigo.Pigo
	puploc     *pigo.PuplocCascade
	flpcs      map[string][]*pigo.FlpCascade
}

// NewPigo loads the cascades from cfg.CascadeDir
func NewPigo(cfg PigoConfig) (*Pigo, error) {
	data, err := os.ReadFile(filepath.Join(cfg.CascadeDir, "facefinder"))
	if err != nil {
		return nil, fmt.Errorf("failed to read facefinder cascade: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack facefinder cascade: %w", err)
	}

	d := &Pigo{cfg: cfg, classifier: classifier}
	if !cfg.Landmarks {
		return d, nil
	}

	data, err = os.ReadFile(filepath.Join(cfg.CascadeDir, "puploc"))
	if err != nil {
		return nil, fmt.Errorf("failed to read puploc cascade: %w", err)
	}
	d.puploc, err = pigo.NewPuplocCascade().UnpackCascade(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack puploc cascade: %w", err)
	}

	d.flpcs, err = d.puploc.ReadCascadeDir(filepath.Join(cfg.CascadeDir, "lps"))
	if err != nil {
		return nil, fmt.Errorf("failed to read landmark cascades: %w", err)
	}

	return d, nil
}

// Detect finds faces in a BGR image in cascade order
func (d *Pigo) Detect(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	params := pigo.ImageParams{
		Pixels: gray.ToBytes(),
		Rows:   gray.Rows(),
		Cols:   gray.Cols(),
		Dim:    gray.Cols(),
	}

	dets := d.classifier.RunCascade(pigo.CascadeParams{
		MinSize:     d.cfg.MinSize,
		MaxSize:     d.cfg.MaxSize,
		ShiftFactor: d.cfg.ShiftFactor,
		ScaleFactor: d.cfg.ScaleFactor,
		ImageParams: params,
	}, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.cfg.IoU)

	var faces []Face
	for _, det := range dets {
		if det.Q < d.cfg.MinQuality {
			continue
		}
		half := float32(det.Scale) / 2
		face := Face{
			BoundingBox: BoundingBox{
				X1: float32(det.Col) - half,
				Y1: float32(det.Row) - half,
				X2: float32(det.Col) + half,
				Y2: float32(det.Row) + half,
			},
			Score: det.Q,
		}
		if d.puploc != nil {
			face.Groups = d.landmarks(det, params)
			face.Yaw = EstimateYaw(face)
		}
		faces = append(faces, face)
	}

	return faces, nil
}

// landmarks runs the pupil and landmark point cascades for one face
func (d *Pigo) landmarks(det pigo.Detection, params pigo.ImageParams) map[geometry.Group][]Point {
	groups := map[geometry.Group][]Point{}

	pupil := func(side float64) *pigo.Puploc {
		pl := d.puploc.RunDetector(pigo.Puploc{
			Row:      det.Row - int(0.085*float64(det.Scale)),
			Col:      det.Col + int(side*0.185*float64(det.Scale)),
			Scale:    float32(det.Scale) * 0.4,
			Perturbs: puplocPerturbs,
		}, params, 0.0, false)
		if pl == nil || pl.Row <= 0 || pl.Col <= 0 {
			return nil
		}
		return pl
	}

	left, right := pupil(-1), pupil(1)
	if left != nil {
		groups[geometry.LeftPupil] = []Point{puplocPoint(left)}
	}
	if right != nil {
		groups[geometry.RightPupil] = []Point{puplocPoint(right)}
	}
	if left == nil || right == nil {
		return groups
	}

	find := func(names []string, flip bool) []Point {
		var points []Point
		for _, name := range names {
			for _, flpc := range d.flpcs[name] {
				flp := flpc.GetLandmarkPoint(left, right, params, puplocPerturbs, flip)
				if flp != nil && flp.Row > 0 && flp.Col > 0 {
					points = append(points, puplocPoint(flp))
				}
			}
		}
		return points
	}

	addCascadeGroups(groups, find)
	return groups
}

// addCascadeGroups fills the groups found by the landmark point cascades.
// find runs the named cascades; flip selects the right side of the face.
func addCascadeGroups(groups map[geometry.Group][]Point, find func(names []string, flip bool) []Point) {
	set := func(g geometry.Group, points []Point) {
		if len(points) > 0 {
			groups[g] = outline(points)
		}
	}
	set(geometry.LeftEye, find(eyeCascades, false))
	set(geometry.RightEye, find(eyeCascades, true))
	set(geometry.LeftEyebrow, find(eyebrowCascades, false))
	set(geometry.RightEyebrow, find(eyebrowCascades, true))
	set(geometry.OuterLips, append(find(mouthCascades, false), find(mouthCascades[1:2], true)...))
}

func puplocPoint(p *pigo.Puploc) Point {
	return Point{X: float32(p.Col), Y: float32(p.Row)}
}

// outline orders scattered points around their centroid so they draw as a
// closed shape
func outline(points []Point) []Point {
	c, ok := centroid(points)
	if !ok {
		return points
	}
	sort.SliceStable(points, func(i, j int) bool {
		ai := math.Atan2(float64(points[i].Y-c.Y), float64(points[i].X-c.X))
		aj := math.Atan2(float64(points[j].Y-c.Y), float64(points[j].X-c.X))
		return ai < aj
	})
	return points
}

// Close releases the cascades
func (d *Pigo) Close() error {
	d.classifier = nil
	d.puploc = nil
	d.flpcs = nil
	return nil
}
