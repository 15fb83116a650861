package nnload

// Package nnload wraps up our 'nn' interface layer, and has concrete references to our
// neural network implementation (ONNX Runtime), so that you can just call one function to
// load a model, and not need to know about the implementation details.
//
// This is also the place where we decide whether to run on CUDA, and fall back to the CPU
// when CUDA cannot be initialized.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/detectd/pkg/dataset"
	"github.com/cyclopcam/detectd/pkg/nn"
	"github.com/cyclopcam/detectd/pkg/onnx"
	"github.com/cyclopcam/detectd/pkg/ultralytics"
	"github.com/cyclopcam/logs"
)

// Exporter converts PyTorch weights to ONNX
type Exporter interface {
	ExportONNX(ctx context.Context, weights string, imgsz int) (string, error)
}

// ONNXPath returns the ONNX file that corresponds to weightsPath (eg best.pt -> best.onnx)
func ONNXPath(weightsPath string) string {
	return strings.TrimSuffix(weightsPath, filepath.Ext(weightsPath)) + ".onnx"
}

// EnsureONNX returns the path of the ONNX export of weightsPath, exporting it first if it
// is missing or older than the weights.
func EnsureONNX(ctx context.Context, log logs.Log, exporter Exporter, weightsPath string, imgsz int) (string, error) {
	if strings.EqualFold(filepath.Ext(weightsPath), ".onnx") {
		return weightsPath, nil
	}
	onnxPath := ONNXPath(weightsPath)
	stOnnx, errOnnx := os.Stat(onnxPath)
	stPt, errPt := os.Stat(weightsPath)
	if errPt != nil {
		if errOnnx == nil {
			return onnxPath, nil
		}
		return "", &dataset.ConfigurationError{Message: "Weights not found", Err: errPt}
	}
	if errOnnx == nil && !stOnnx.ModTime().Before(stPt.ModTime()) {
		return onnxPath, nil
	}
	log.Infof("Exporting %v to ONNX", weightsPath)
	exported, err := exporter.ExportONNX(ctx, weightsPath, imgsz)
	if err != nil {
		return "", fmt.Errorf("Export of %v failed: %w", weightsPath, err)
	}
	return exported, nil
}

// ResolveModelConfig builds the ModelConfig of an ONNX file.
// The class table comes from the first of:
//  1. setup.Classes
//  2. <stem>.json next to the model
//  3. the "names" metadata that the exporter embeds in the model
//  4. setup.Fallback
//  5. the COCO classes, if the model has 80 outputs
func ResolveModelConfig(log logs.Log, modelFile string, setup *nn.ModelSetup) (*nn.ModelConfig, error) {
	config := &nn.ModelConfig{Architecture: "yolov8"}
	jsonFile := strings.TrimSuffix(modelFile, filepath.Ext(modelFile)) + ".json"
	if c, err := nn.LoadModelConfig(jsonFile); err == nil {
		config = c
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("Error parsing model config %v: %w", jsonFile, err)
	}

	md, err := onnx.ReadMetadata(modelFile)
	if err != nil {
		log.Warnf("%v", err)
		md = &onnx.Metadata{}
	}
	inputShape, outputShape, err := onnx.Shapes(modelFile)
	if err != nil {
		return nil, err
	}

	if config.Width == 0 || config.Height == 0 {
		switch {
		case md.ImgSize[0] > 0 && md.ImgSize[1] > 0:
			config.Height, config.Width = md.ImgSize[0], md.ImgSize[1]
		case len(inputShape) == 4 && inputShape[2] > 0 && inputShape[3] > 0:
			config.Height, config.Width = int(inputShape[2]), int(inputShape[3])
		default:
			config.Height, config.Width = nn.DefaultImageSize, nn.DefaultImageSize
		}
	}

	switch {
	case len(setup.Classes) != 0:
		config.Classes = setup.Classes
	case len(config.Classes) != 0:
	case len(md.Names) != 0:
		config.Classes = md.Names
	case len(setup.Fallback) != 0:
		config.Classes = setup.Fallback
	case len(outputShape) == 3 && outputShape[1] == int64(4+len(nn.COCOClasses)):
		log.Infof("No class names found for %v. Assuming COCO classes", modelFile)
		config.Classes = nn.COCOClasses
	default:
		return nil, &dataset.ConfigurationError{Message: "No class names found for " + modelFile}
	}
	return config, nil
}

// LoadModel loads an exported detection model from disk.
// weightsPath may name the .onnx file, or the .pt file that it was exported from.
func LoadModel(log logs.Log, weightsPath string, setup *nn.ModelSetup) (nn.ObjectDetector, error) {
	if setup == nil {
		setup = nn.NewModelSetup()
	}
	if err := onnx.InitializeRuntime(setup.LibraryPath); err != nil {
		return nil, err
	}

	modelFile := weightsPath
	if !strings.EqualFold(filepath.Ext(modelFile), ".onnx") {
		modelFile = ONNXPath(weightsPath)
	}
	if _, err := os.Stat(modelFile); err != nil {
		return nil, &dataset.ConfigurationError{Message: "Unrecognized NN model " + weightsPath + " (export it to ONNX first)", Err: err}
	}

	config, err := ResolveModelConfig(log, modelFile, setup)
	if err != nil {
		return nil, err
	}

	if setup.Device == nn.DeviceAuto || setup.Device == nn.DeviceCUDA {
		model, err := onnx.NewDetector(config, modelFile, nn.DeviceCUDA, setup.NumThreads)
		if err == nil {
			log.Infof("Loaded %v on CUDA (%v classes, %vx%v, %v output)", modelFile, len(config.Classes), config.Width, config.Height, model.Layout())
			return model, nil
		}
		if setup.Device == nn.DeviceCUDA {
			return nil, err
		}
		log.Warnf("Failed to load NN model '%v' on CUDA: %v", modelFile, err)
		log.Infof("Falling back to CPU")
	}

	model, err := onnx.NewDetector(config, modelFile, nn.DeviceCPU, setup.NumThreads)
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded %v on CPU (%v classes, %vx%v, %v output)", modelFile, len(config.Classes), config.Width, config.Height, model.Layout())
	return model, nil
}

// LoadRunModel exports (if necessary) and loads the best weights of a training run
func LoadRunModel(ctx context.Context, log logs.Log, runner *ultralytics.Runner, weightsPath string, imgsz int, setup *nn.ModelSetup) (nn.ObjectDetector, error) {
	onnxPath, err := EnsureONNX(ctx, log, runner, weightsPath, imgsz)
	if err != nil {
		return nil, err
	}
	return LoadModel(log, onnxPath, setup)
}
