package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tsawler/go-metal/checkpoints"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/facelasers/internal/detector"
	"github.com/dudu/facelasers/internal/inference"
)

// expectedOutputs lists the output counts the detector code indexes into
var expectedOutputs = map[string]int{
	"scrfd_10g.onnx": 9,
	"2d106det.onnx":  1,
}

type options struct {
	ortLib   string
	coreML   bool
	session  bool
	metal    bool
	cascades string
}

func main() {
	opts := options{}
	flag.StringVar(&opts.ortLib, "ort-lib", "lib/libonnxruntime.dylib", "ONNX Runtime shared library")
	flag.BoolVar(&opts.coreML, "coreml", false, "Create sessions with the CoreML execution provider")
	flag.BoolVar(&opts.session, "session", true, "Also open an inference session for each model")
	flag.BoolVar(&opts.metal, "metal", false, "Also try the go-metal ONNX importer")
	flag.StringVar(&opts.cascades, "cascades", "", "Check a pigo cascade directory instead of ONNX models")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: modelcheck [options] <model.onnx>...\n\n")
		fmt.Fprintf(os.Stderr, "Checks that the detector models load before running facelasers.\n\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  modelcheck models/scrfd_10g.onnx models/2d106det.onnx\n")
		fmt.Fprintf(os.Stderr, "  modelcheck --metal models/2d106det.onnx\n")
		fmt.Fprintf(os.Stderr, "  modelcheck --cascades cascade\n")
	}
	flag.Parse()

	if opts.cascades != "" {
		if err := checkCascades(opts.cascades); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	// Initialize ONNX Runtime
	fmt.Println("Initializing ONNX Runtime...")
	if err := inference.Initialize(inference.Options{SharedLibraryPath: opts.ortLib, CoreML: opts.coreML}); err != nil {
		fmt.Printf("❌ %v\n", err)
		fmt.Println("\nYou may need to install ONNX Runtime:")
		fmt.Println("  brew install onnxruntime")
		os.Exit(1)
	}
	defer inference.Shutdown()
	fmt.Println("✓ ONNX Runtime initialized")

	failed := 0
	for _, path := range flag.Args() {
		if err := checkModel(path, opts); err != nil {
			fmt.Printf("\n❌ %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("\n✅ %s OK\n", path)
	}

	if failed > 0 {
		inference.Shutdown()
		os.Exit(1)
	}
}

func checkModel(path string, opts options) error {
	fmt.Printf("\nChecking ONNX model: %s\n", path)

	// Check if file exists
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not found: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return fmt.Errorf("failed to get model info: %w", err)
	}

	fmt.Printf("Inputs (%d):\n", len(inputs))
	for _, info := range inputs {
		fmt.Printf("  %s: shape=%v, type=%v\n", info.Name, info.Dimensions, info.DataType)
	}
	fmt.Printf("Outputs (%d):\n", len(outputs))
	for _, info := range outputs {
		fmt.Printf("  %s: shape=%v, type=%v\n", info.Name, info.Dimensions, info.DataType)
	}

	if want, ok := expectedOutputs[filepath.Base(path)]; ok && len(outputs) != want {
		return fmt.Errorf("expected %d outputs, model has %d", want, len(outputs))
	}

	printMetadata(path)

	if opts.session {
		inNames := make([]string, len(inputs))
		for i, info := range inputs {
			inNames[i] = info.Name
		}
		outNames := make([]string, len(outputs))
		for i, info := range outputs {
			outNames[i] = info.Name
		}
		session, err := inference.NewSession(path, inNames, outNames)
		if err != nil {
			return err
		}
		session.Destroy()
		fmt.Println("✓ Session created")
	}

	if opts.metal {
		checkMetal(path)
	}
	return nil
}

func printMetadata(path string) {
	fmt.Println("Metadata:")
	metadata, err := ort.GetModelMetadata(path)
	if err != nil {
		fmt.Printf("  (Could not read metadata: %v)\n", err)
		return
	}
	defer metadata.Destroy()

	if producer, err := metadata.GetProducerName(); err == nil {
		fmt.Printf("  Producer: %s\n", producer)
	}
	if version, err := metadata.GetVersion(); err == nil {
		fmt.Printf("  Version: %d\n", version)
	}
	if domain, err := metadata.GetDomain(); err == nil {
		fmt.Printf("  Domain: %s\n", domain)
	}
	if custom, err := metadata.GetCustomMetadataMapKeys(); err == nil && len(custom) > 0 {
		sort.Strings(custom)
		fmt.Printf("  Custom keys: %v\n", custom)
	}
}

// checkMetal reports whether go-metal can import the graph. It is
// informational: many detector graphs use operators go-metal lacks.
func checkMetal(path string) {
	fmt.Println("Attempting to import with go-metal...")
	importer := checkpoints.NewONNXImporter()
	checkpoint, err := importer.ImportFromONNX(path)
	if err != nil {
		fmt.Printf("  go-metal cannot import this model: %v\n", err)
		fmt.Println("  go-metal only supports: Conv, MatMul, Add, Relu, LeakyRelu,")
		fmt.Println("  Sigmoid, Tanh, BatchNorm, Dropout, Softmax, Flatten")
		return
	}

	fmt.Printf("  Layers: %d\n", len(checkpoint.ModelSpec.Layers))
	fmt.Printf("  Weights: %d tensors\n", len(checkpoint.Weights))
	for i, layer := range checkpoint.ModelSpec.Layers {
		fmt.Printf("  %d: %s (%s)\n", i+1, layer.Name, layer.Type)
	}
}

func checkCascades(dir string) error {
	fmt.Printf("Checking pigo cascades in %s\n", dir)
	d, err := detector.NewPigo(detector.DefaultPigoConfig(dir))
	if err != nil {
		return err
	}
	defer d.Close()
	fmt.Println("✅ facefinder, puploc and landmark cascades loaded")
	return nil
}
