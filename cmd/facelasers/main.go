package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"gocv.io/x/gocv"

	"github.com/dudu/facelasers/internal/camera"
	"github.com/dudu/facelasers/internal/detector"
	"github.com/dudu/facelasers/internal/inference"
	"github.com/dudu/facelasers/internal/log"
	"github.com/dudu/facelasers/internal/overlay"
	"github.com/dudu/facelasers/internal/pipeline"
	"github.com/dudu/facelasers/internal/preview"
	"github.com/dudu/facelasers/internal/record"
	"github.com/dudu/facelasers/internal/ui"
)

func init() {
	// Lock the main goroutine to the main OS thread.
	// This is required on macOS for OpenCV's highgui (window creation).
	runtime.LockOSThread()
}

func main() {
	if err := loadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	flag.CommandLine.Usage = usage
	config, err := parseFlags(flag.CommandLine, os.Args[1:], osEnv)
	if err != nil {
		// CommandLine exits on bad flags itself, so this is the environment
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(2)
	}
	if err := validate(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	if err := run(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "FaceLasers - live face landmarks, lasers and tilt over the camera preview\n\n")
	fmt.Fprintf(os.Stderr, "Usage: facelasers [options]\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEvery option can also be set as FACELASERS_<NAME> in the environment or .env\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  facelasers --mode lasers --eyes both\n")
	fmt.Fprintf(os.Stderr, "  facelasers --detector onnx --models models --ort-lib lib/libonnxruntime.dylib\n")
	fmt.Fprintf(os.Stderr, "  facelasers --gravity aspect-fit --view-width 1280 --view-height 1280 --record faces.jsonl\n")
	fmt.Fprintf(os.Stderr, "\nKeys: space or t switches mode, q or ESC quits\n")
}

func newDetector(config Config) (pipeline.FaceDetector, func(), error) {
	switch config.Detector {
	case "onnx":
		if err := inference.Initialize(inference.Options{
			SharedLibraryPath: config.ORTLib,
			CoreML:            config.CoreML,
		}); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize inference: %w", err)
		}
		shutdown := func() {
			if err := inference.Shutdown(); err != nil {
				log.Warn(log.Fields{"error": err.Error()}, "onnx runtime shutdown failed")
			}
		}

		det, err := detector.NewONNX(detector.ONNXConfig{
			ModelDir:      config.Models,
			DetectionSize: 640,
			ConfThreshold: 0.5,
			NMSThreshold:  0.4,
			Landmarks:     config.Landmarks,
		})
		if err != nil {
			shutdown()
			return nil, nil, err
		}
		return det, shutdown, nil
	default:
		cfg := detector.DefaultPigoConfig(config.Cascades)
		cfg.Landmarks = config.Landmarks
		det, err := detector.NewPigo(cfg)
		if err != nil {
			return nil, nil, err
		}
		return det, func() {}, nil
	}
}

func run(config Config) error {
	logger := log.NewLogger(log.Options{Level: config.LogLevel, File: config.LogFile})
	logger.Info("FaceLasers starting...")

	mode, err := overlay.ParseMode(config.Mode)
	if err != nil {
		return err
	}
	gravity, err := preview.ParseGravity(config.Gravity)
	if err != nil {
		return err
	}
	groups, err := config.LandmarkGroups()
	if err != nil {
		return err
	}

	// Initialize camera
	log.Info(log.Fields{"camera": config.CameraIndex, "driver": config.Driver}, "opening camera")
	cam, err := camera.Open(camera.Driver(config.Driver), camera.Options{
		Device:    config.CameraIndex,
		Width:     config.Width,
		Height:    config.Height,
		TargetFPS: config.TargetFPS,
	})
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	defer cam.Close()
	log.Info(log.Fields{"width": cam.Width(), "height": cam.Height()}, "camera opened")

	viewW, viewH := config.ViewWidth, config.ViewHeight
	if viewW == 0 {
		viewW = cam.Width()
	}
	if viewH == 0 {
		viewH = cam.Height()
	}
	layer := preview.NewLayer(viewW, viewH, gravity, config.Mirror)
	layer.SetFrameSize(cam.Width(), cam.Height())

	// Load detector
	log.Info(log.Fields{"detector": config.Detector}, "loading detector")
	det, shutdown, err := newDetector(config)
	if err != nil {
		return fmt.Errorf("failed to create detector: %w", err)
	}
	defer shutdown()

	var recorder pipeline.Recorder
	if config.Record != "" {
		w, err := record.Create(config.Record)
		if err != nil {
			det.Close()
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.Warn(log.Fields{"error": err.Error()}, "failed to close recording")
			}
		}()
		recorder = w
		log.Info(log.Fields{"file": config.Record, "session": w.Session()}, "recording geometry")
	}

	mailbox := overlay.NewMailbox()
	renderer := overlay.NewRenderer(overlay.Options{
		Mode:      mode,
		LaserEyes: config.LaserEyes(),
		Mirrored:  config.Mirror,
	})
	renderer.SetBounds(viewW, viewH)

	p, err := pipeline.New(pipeline.Config{
		Detector:   det,
		Converter:  layer.Converter(),
		Sink:       mailbox,
		Recorder:   recorder,
		Groups:     groups,
		DetectFPS:  config.DetectFPS,
		StaleAfter: config.StaleAfter,
	})
	if err != nil {
		det.Close()
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer p.Close()

	// Handle signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	// the worker must stop before p.Close releases the detector
	defer func() {
		cancel()
		<-done
	}()

	window := ui.NewWindow("FaceLasers", viewW, viewH)
	defer window.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	view := gocv.NewMat()
	defer view.Close()

	frameW, frameH := cam.Width(), cam.Height()
	log.Info(log.Fields{"mode": renderer.Label()}, "running, press space to switch mode and q to quit")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down...")
			logStats(p, mailbox)
			return nil
		default:
		}

		// Capture frame
		if !cam.Read(&frame) {
			// keep the window responsive while the camera has nothing
			if ui.KeyAction(window.WaitKey(1)) == ui.ActionQuit {
				logger.Info("Quitting...")
				logStats(p, mailbox)
				return nil
			}
			continue
		}
		if frame.Cols() != frameW || frame.Rows() != frameH {
			frameW, frameH = frame.Cols(), frame.Rows()
			layer.SetFrameSize(frameW, frameH)
			log.Debug(log.Fields{"width": frameW, "height": frameH}, "frame size changed")
		}

		p.Submit(frame)
		if u, ok := mailbox.Take(); ok {
			renderer.Apply(u)
		}

		layer.Render(frame, &view)
		renderer.Draw(&view)

		timing := p.LastTiming()
		status := fmt.Sprintf("D:%.0fms T:%.2fms", float64(timing.Detection.Microseconds())/1000, float64(timing.Transform.Microseconds())/1000)
		window.Show(&view, renderer.Label(), status)

		// WaitKey must be called to process window events on macOS
		switch ui.KeyAction(window.WaitKey(1)) {
		case ui.ActionToggle:
			log.Info(log.Fields{"mode": renderer.Toggle().String()}, "mode switched")
		case ui.ActionQuit:
			logger.Info("Quitting...")
			logStats(p, mailbox)
			return nil
		}
		if !window.IsOpen() {
			logStats(p, mailbox)
			return nil
		}
	}
}

func logStats(p *pipeline.Pipeline, mailbox *overlay.Mailbox) {
	s := p.Stats()
	log.Info(log.Fields{
		"submitted": s.Submitted,
		"busy":      s.Busy,
		"limited":   s.Limited,
		"failed":    s.Failed,
		"posted":    s.Posted,
		"cleared":   s.Cleared,
		"overwrote": mailbox.Dropped(),
	}, "pipeline stats")
}
