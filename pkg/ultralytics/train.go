package ultralytics

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
)

// Fixed training hyperparameters
const (
	DefaultEpochs    = 15
	DefaultImageSize = 640
	BaseModel        = "yolov8s.pt"
	DatasetConfig    = "yolo_params.yaml"
	Mosaic           = 0.3
	Mixup            = 0.1
	Optimizer        = "AdamW"
	Momentum         = 0.937
	LR0              = 0.001
	LRF              = 0.01
	SingleClass      = false
	Workers          = 2
	Project          = "runs/detect"
	RunName          = "train_full"
)

// TrainConfig is the full set of arguments that we pass to the trainer
type TrainConfig struct {
	Model       string
	Data        string
	Epochs      int
	ImageSize   int
	Device      string // "0" for the first CUDA device, or "cpu"
	SingleClass bool
	Mosaic      float64
	Mixup       float64
	Optimizer   string
	LR0         float64
	LRF         float64
	Momentum    float64
	Workers     int
	Project     string
	Name        string
	Verbose     bool
}

// NewTrainConfig returns the fixed configuration, with the given epochs and image size
func NewTrainConfig(epochs, imgsz int, device string) *TrainConfig {
	return &TrainConfig{
		Model:       BaseModel,
		Data:        DatasetConfig,
		Epochs:      epochs,
		ImageSize:   imgsz,
		Device:      device,
		SingleClass: SingleClass,
		Mosaic:      Mosaic,
		Mixup:       Mixup,
		Optimizer:   Optimizer,
		LR0:         LR0,
		LRF:         LRF,
		Momentum:    Momentum,
		Workers:     Workers,
		Project:     Project,
		Name:        RunName,
		Verbose:     true,
	}
}

// Args returns the command line arguments of "yolo detect train"
func (c *TrainConfig) Args() []string {
	return []string{
		"detect",
		"train",
		"model=" + c.Model,
		"data=" + c.Data,
		"epochs=" + strconv.Itoa(c.Epochs),
		"imgsz=" + strconv.Itoa(c.ImageSize),
		"device=" + c.Device,
		"single_cls=" + FormatBool(c.SingleClass),
		"mosaic=" + formatFloat(c.Mosaic),
		"mixup=" + formatFloat(c.Mixup),
		"optimizer=" + c.Optimizer,
		"lr0=" + formatFloat(c.LR0),
		"lrf=" + formatFloat(c.LRF),
		"momentum=" + formatFloat(c.Momentum),
		"workers=" + strconv.Itoa(c.Workers),
		"project=" + c.Project,
		"name=" + c.Name,
		"verbose=" + FormatBool(c.Verbose),
	}
}

// Validate checks the values that come from the command line
func (c *TrainConfig) Validate() error {
	if c.Epochs < 1 {
		return fmt.Errorf("epochs must be at least 1 (got %v)", c.Epochs)
	}
	if c.ImageSize < 32 || c.ImageSize%32 != 0 {
		return fmt.Errorf("imgsz must be a positive multiple of 32 (got %v)", c.ImageSize)
	}
	return nil
}

// ProjectDir returns the absolute directory that the trainer writes its runs into
func (r *Runner) ProjectDir(c *TrainConfig) string {
	if filepath.IsAbs(c.Project) {
		return c.Project
	}
	return filepath.Join(r.Dir, c.Project)
}

// Train runs the trainer to completion.
// The trainer picks a fresh run directory (train_full, train_full2, ...), so callers find it afterwards
// with runs.ByModTime.
func (r *Runner) Train(ctx context.Context, c *TrainConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.run(ctx, c.Args())
}
