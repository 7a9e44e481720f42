package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/dudu/facelasers/internal/geometry"
)

const envPrefix = "FACELASERS_"

// Config holds everything the command line and environment can set
type Config struct {
	CameraIndex int    `validate:"gte=0"`
	Driver      string `validate:"oneof=gocv mediadevices"`
	Width       int    `validate:"gt=0"`
	Height      int    `validate:"gt=0"`
	TargetFPS   int    `validate:"gt=0,lte=240"`
	ViewWidth   int    `validate:"gte=0"`
	ViewHeight  int    `validate:"gte=0"`

	Detector  string `validate:"oneof=pigo onnx"`
	Cascades  string `validate:"required_if=Detector pigo"`
	Models    string `validate:"required_if=Detector onnx"`
	ORTLib    string `validate:"required_if=Detector onnx"`
	CoreML    bool
	Landmarks bool

	DetectFPS  float64       `validate:"gte=0"`
	StaleAfter time.Duration `validate:"gte=0s"`
	Gravity    string        `validate:"oneof=aspect-fill aspect-fit stretch"`
	Mirror     bool
	Mode       string `validate:"oneof=face lasers tilt"`
	Eyes       string `validate:"oneof=left right both"`
	Groups     string

	Record   string
	LogLevel string `validate:"oneof=trace debug info warn warning error"`
	LogFile  string
}

// LaserEyes returns the eye groups lasers start from
func (c Config) LaserEyes() []geometry.Group {
	switch c.Eyes {
	case "right":
		return []geometry.Group{geometry.RightEye}
	case "both":
		return []geometry.Group{geometry.LeftEye, geometry.RightEye}
	}
	return []geometry.Group{geometry.LeftEye}
}

// LandmarkGroups parses the comma separated --groups list. Empty keeps
// every group.
func (c Config) LandmarkGroups() ([]geometry.Group, error) {
	if strings.TrimSpace(c.Groups) == "" {
		return nil, nil
	}
	known := make(map[geometry.Group]bool, len(geometry.Groups))
	for _, g := range geometry.Groups {
		known[g] = true
	}
	var groups []geometry.Group
	for _, name := range strings.Split(c.Groups, ",") {
		g := geometry.Group(strings.TrimSpace(name))
		if g == "" {
			continue
		}
		if !known[g] {
			return nil, fmt.Errorf("unknown landmark group %q", g)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// loadDotEnv reads .env into the environment when the file exists
func loadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// env reads FACELASERS_* variables as flag defaults
type env func(key string) (string, bool)

// envReader turns env values into flag defaults and keeps every value it
// could not parse
type envReader struct {
	lookup env
	errs   []error
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(envPrefix + key); ok && v != "" {
		return v
	}
	return def
}

func (e *envReader) fail(key, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s%s=%q: %w", envPrefix, key, v, err))
}

func (e *envReader) int(key string, def int) int {
	s := e.str(key, "")
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		e.fail(key, s, err)
		return def
	}
	return v
}

func (e *envReader) float(key string, def float64) float64 {
	s := e.str(key, "")
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		e.fail(key, s, err)
		return def
	}
	return v
}

func (e *envReader) bool(key string, def bool) bool {
	s := e.str(key, "")
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		e.fail(key, s, err)
		return def
	}
	return v
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	s := e.str(key, "")
	if s == "" {
		return def
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		e.fail(key, s, err)
		return def
	}
	return v
}

// parseFlags registers every option with its environment default and parses
// args. Malformed environment values are returned as one joined error.
func parseFlags(flags *flag.FlagSet, args []string, lookup env) (Config, error) {
	config := Config{}
	e := &envReader{lookup: lookup}

	camera := e.int("CAMERA", 0)
	flags.IntVar(&config.CameraIndex, "camera", camera, "Camera device index")
	flags.IntVar(&config.CameraIndex, "c", camera, "Camera device index (shorthand)")
	flags.StringVar(&config.Driver, "driver", e.str("DRIVER", "gocv"), "Camera driver: gocv or mediadevices")
	flags.IntVar(&config.Width, "width", e.int("WIDTH", 1280), "Requested capture width")
	flags.IntVar(&config.Height, "height", e.int("HEIGHT", 720), "Requested capture height")
	flags.IntVar(&config.TargetFPS, "fps", e.int("FPS", 30), "Target capture frames per second")
	flags.IntVar(&config.ViewWidth, "view-width", e.int("VIEW_WIDTH", 0), "Preview width (0 = capture width)")
	flags.IntVar(&config.ViewHeight, "view-height", e.int("VIEW_HEIGHT", 0), "Preview height (0 = capture height)")

	det := e.str("DETECTOR", "pigo")
	flags.StringVar(&config.Detector, "detector", det, "Face detector: pigo or onnx")
	flags.StringVar(&config.Detector, "d", det, "Face detector (shorthand)")
	flags.StringVar(&config.Cascades, "cascades", e.str("CASCADES", "cascade"), "Pigo cascade directory")
	flags.StringVar(&config.Models, "models", e.str("MODELS", "models"), "ONNX model directory")
	flags.StringVar(&config.ORTLib, "ort-lib", e.str("ORT_LIB", "lib/libonnxruntime.dylib"), "ONNX Runtime shared library")
	flags.BoolVar(&config.CoreML, "coreml", e.bool("COREML", false), "Use the CoreML execution provider")
	flags.BoolVar(&config.Landmarks, "landmarks", e.bool("LANDMARKS", true), "Run the landmark stage")

	flags.Float64Var(&config.DetectFPS, "detect-fps", e.float("DETECT_FPS", 15), "Maximum detections per second (0 = unlimited)")
	flags.DurationVar(&config.StaleAfter, "stale", e.duration("STALE", 500*time.Millisecond), "Clear the overlay after this long without a result (0 = never)")
	flags.StringVar(&config.Gravity, "gravity", e.str("GRAVITY", "aspect-fill"), "Preview gravity: aspect-fill, aspect-fit or stretch")
	flags.BoolVar(&config.Mirror, "mirror", e.bool("MIRROR", true), "Mirror the preview")
	mode := e.str("MODE", "face")
	flags.StringVar(&config.Mode, "mode", mode, "Overlay mode: face, lasers or tilt")
	flags.StringVar(&config.Mode, "m", mode, "Overlay mode (shorthand)")
	flags.StringVar(&config.Eyes, "eyes", e.str("EYES", "left"), "Laser eyes: left, right or both")
	flags.StringVar(&config.Groups, "groups", e.str("GROUPS", ""), "Comma separated landmark groups to keep (empty = all)")

	flags.StringVar(&config.Record, "record", e.str("RECORD", ""), "Write overlay geometry as JSON lines to this file")
	flags.StringVar(&config.LogLevel, "log-level", e.str("LOG_LEVEL", "info"), "Log level")
	flags.StringVar(&config.LogFile, "log-file", e.str("LOG_FILE", ""), "Also log to this rotated file")

	if err := errors.Join(e.errs...); err != nil {
		return config, fmt.Errorf("invalid environment: %w", err)
	}
	if err := flags.Parse(args); err != nil {
		return config, err
	}
	config.LogLevel = strings.ToLower(config.LogLevel)
	config.Mode = strings.ToLower(config.Mode)
	return config, nil
}

// validate checks the config before any device is opened
func validate(config Config) error {
	if err := validator.New().Struct(config); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := config.LandmarkGroups(); err != nil {
		return fmt.Errorf("invalid configuration: Groups %w", err)
	}
	return nil
}

func osEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}
