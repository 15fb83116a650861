package onnx

// package onnx runs exported YOLO detection models through ONNX Runtime (https://onnxruntime.ai)

import (
	"fmt"
	"os"
	"sync"

	"github.com/cyclopcam/detectd/pkg/nn"
	ort "github.com/yalue/onnxruntime_go"
)

var initLock sync.Mutex

// InitializeRuntime loads the ONNX Runtime shared library. It is safe to call more than once.
// If libraryPath is empty, then $ONNXRUNTIME_LIB is used, and failing that, the loader's default search path.
func InitializeRuntime(libraryPath string) error {
	initLock.Lock()
	defer initLock.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath == "" {
		libraryPath = os.Getenv("ONNXRUNTIME_LIB")
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("Error initializing ONNX Runtime: %w", err)
	}
	return nil
}

// Detector runs a YOLO model that was exported to ONNX.
// The input and output tensors are allocated once, so DetectObjects is serialized.
type Detector struct {
	lock        sync.Mutex
	session     *ort.AdvancedSession
	input       *ort.Tensor[float32]
	output      *ort.Tensor[float32]
	outputShape ort.Shape
	layout      OutputLayout
	device      nn.Device
	config      nn.ModelConfig
}

// NewDetector loads modelFile onto the given device (DeviceCPU or DeviceCUDA).
// config.Width and config.Height must match the model input, and config.Classes must be populated.
func NewDetector(config *nn.ModelConfig, modelFile string, device nn.Device, numThreads int) (*Detector, error) {
	if len(config.Classes) == 0 {
		return nil, fmt.Errorf("Model %v has no class names", modelFile)
	}
	inputs, outputs, err := ort.GetInputOutputInfo(modelFile)
	if err != nil {
		return nil, fmt.Errorf("Failed to read inputs and outputs of %v: %w", modelFile, err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("Expected 1 input and at least 1 output in %v, but found %v and %v", modelFile, len(inputs), len(outputs))
	}

	inputShape := ort.NewShape(1, 3, int64(config.Height), int64(config.Width))
	outputShape := outputs[0].Dimensions.Clone()
	for _, d := range outputShape {
		if d <= 0 {
			return nil, fmt.Errorf("Output of %v has a dynamic shape %v. Export the model with a fixed image size.", modelFile, outputShape)
		}
	}
	layout, err := DetectLayout(outputShape, len(config.Classes))
	if err != nil {
		return nil, err
	}
	if layout == LayoutRaw && int(outputShape[1])-4 != len(config.Classes) {
		return nil, fmt.Errorf("Model %v has %v classes, but the class table has %v", modelFile, outputShape[1]-4, len(config.Classes))
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()
	if numThreads > 0 {
		if err := options.SetIntraOpNumThreads(numThreads); err != nil {
			return nil, err
		}
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return nil, err
	}
	if device == nn.DeviceCUDA {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("CUDA is not available: %w", err)
		}
		defer cudaOptions.Destroy()
		if err := cudaOptions.Update(map[string]string{"device_id": "0"}); err != nil {
			return nil, err
		}
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			return nil, fmt.Errorf("CUDA is not available: %w", err)
		}
	}

	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, err
	}
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, err
	}
	session, err := ort.NewAdvancedSession(modelFile,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}, options)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("Failed to create ONNX session for %v: %w", modelFile, err)
	}

	return &Detector{
		session:     session,
		input:       input,
		output:      output,
		outputShape: outputShape,
		layout:      layout,
		device:      device,
		config:      *config,
	}, nil
}

func (d *Detector) Close() {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.session != nil {
		d.session.Destroy()
		d.input.Destroy()
		d.output.Destroy()
		d.session = nil
	}
}

// Device returns the device that the model is running on
func (d *Detector) Device() nn.Device {
	return d.device
}

// Layout returns the output layout of the model
func (d *Detector) Layout() OutputLayout {
	return d.layout
}

// DetectObjects implements nn.ObjectDetector.
// The input size is fixed when the model is exported, so params.ImageSize is not consulted here.
func (d *Detector) DetectObjects(img *nn.Image, params *nn.DetectionParams) ([]nn.RawBox, error) {
	if img.Width <= 0 || img.Height <= 0 {
		return nil, nn.ErrInvalidImage
	}
	p := params.WithDefaults()

	d.lock.Lock()
	defer d.lock.Unlock()
	if d.session == nil {
		return nil, fmt.Errorf("Detector is closed")
	}

	lb := NewLetterbox(img.Width, img.Height, d.config.Width, d.config.Height)
	if err := lb.FillTensor(img, d.input.GetData()); err != nil {
		return nil, err
	}
	if err := d.session.Run(); err != nil {
		return nil, err
	}

	out := d.output.GetData()
	var candidates []Candidate
	switch d.layout {
	case LayoutRaw:
		candidates = DecodeRaw(out, len(d.config.Classes), int(d.outputShape[2]), p.ProbabilityThreshold)
		candidates = NMS(candidates, p.NmsIouThreshold)
	case LayoutEndToEnd:
		candidates = DecodeEndToEnd(out, int(d.outputShape[1]), p.ProbabilityThreshold)
	}
	return ToRawBoxes(candidates, lb), nil
}

func (d *Detector) Config() *nn.ModelConfig {
	return &d.config
}
