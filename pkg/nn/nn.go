package nn

import (
	"encoding/json"
	"os"
)

// Package nn is the detection interface layer.
// To load a model, use the nnload package.

const DefaultProbabilityThreshold = 0.25
const DefaultNmsIouThreshold = 0.45
const DefaultImageSize = 640

// NN object detection parameters
type DetectionParams struct {
	ProbabilityThreshold float32 `json:"probabilityThreshold"` // Value between 0 and 1. Lower values will find more objects. Zero value will use the default.
	NmsIouThreshold      float32 `json:"nmsIouThreshold"`      // Value between 0 and 1. Lower values will merge more objects together into one. Zero value will use the default.
	ImageSize            int     `json:"imageSize"`            // Square inference size, in pixels (eg 640). Zero value will use the default.
}

// Create a default DetectionParams object
func NewDetectionParams() *DetectionParams {
	return &DetectionParams{
		ProbabilityThreshold: DefaultProbabilityThreshold,
		NmsIouThreshold:      DefaultNmsIouThreshold,
		ImageSize:            DefaultImageSize,
	}
}

// WithDefaults returns a copy of p, where every zero field is replaced by its default.
// A nil p yields NewDetectionParams().
func (p *DetectionParams) WithDefaults() DetectionParams {
	if p == nil {
		return *NewDetectionParams()
	}
	c := *p
	if c.ProbabilityThreshold == 0 {
		c.ProbabilityThreshold = DefaultProbabilityThreshold
	}
	if c.NmsIouThreshold == 0 {
		c.NmsIouThreshold = DefaultNmsIouThreshold
	}
	if c.ImageSize == 0 {
		c.ImageSize = DefaultImageSize
	}
	return c
}

// Device selects where the model runs
type Device string

const (
	DeviceAuto Device = "auto" // CUDA if it can be initialized, otherwise CPU
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// ModelSetup holds the load-time choices for a model.
// These cannot change after the model has been loaded.
type ModelSetup struct {
	Device      Device
	Classes     []string // If not empty, overrides the class table found next to the weights
	Fallback    []string // Class table to use when neither the model config nor the model itself has one (eg the dataset's names)
	NumThreads  int      // Intra-op threads for the runtime. Zero lets the runtime decide.
	LibraryPath string   // Path to the inference runtime shared library. Empty = search default locations.
}

func NewModelSetup() *ModelSetup {
	return &ModelSetup{
		Device: DeviceAuto,
	}
}

// ObjectDetector is given an image, and returns zero or more detected objects
type ObjectDetector interface {
	// Close closes the detector (you MUST call this when finished, because there are native resources underneath)
	Close()

	// DetectObjects returns the raw boxes found in the image, in absolute pixel coordinates of img.
	// The order of the boxes is the order produced by the model.
	// You can create a default DetectionParams with NewDetectionParams()
	DetectObjects(img *Image, params *DetectionParams) ([]RawBox, error)

	// Model Config.
	// Callers assume that ModelConfig will remain constant, so don't change it
	// once the detector has been created.
	Config() *ModelConfig
}

// ModelConfig is saved in a JSON file along with the weights of the NN model
type ModelConfig struct {
	Architecture string   `json:"architecture"` // eg "yolov8"
	Width        int      `json:"width"`        // eg 640
	Height       int      `json:"height"`       // eg 640
	Classes      []string `json:"classes"`      // eg ["OxygenTank", "NitrogenTank", ...]
}

// ClassTable returns the class table of the model
func (c *ModelConfig) ClassTable() ClassNameTable {
	return ClassNameTable(c.Classes)
}

// Load model config from a JSON file
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := &ModelConfig{}
	err = json.Unmarshal(b, config)
	if err != nil {
		return nil, err
	}
	return config, nil
}
