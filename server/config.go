package server

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cyclopcam/detectd/pkg/nn"
)

type Config struct {
	Listen        string    `json:"listen"`        // eg ":5000"
	Weights       string    `json:"weights"`       // Path to best.onnx (or best.pt, if it has already been exported next to it)
	Device        nn.Device `json:"device"`        // "auto", "cpu", or "cuda"
	LibraryPath   string    `json:"libraryPath"`   // Path to libonnxruntime.so. Empty = $ONNXRUNTIME_LIB or the system default.
	NumThreads    int       `json:"numThreads"`    // Intra-op threads for inference. Zero lets the runtime decide.
	Classes       []string  `json:"classes"`       // Overrides the class names found with the model
	MaxUploadMB   int       `json:"maxUploadMB"`   // Maximum size of an uploaded image
	MaxMegapixels int       `json:"maxMegapixels"` // Maximum width*height of an uploaded image, in millions of pixels. Zero = 50.
	Detection     Detection `json:"detection"`     // Thresholds used for every request
	RateLimit     RateLimit `json:"rateLimit"`     // Per-IP limit on the predict routes
	LogRequests   bool      `json:"logRequests"`   // Log every predict request
	FrameTimeout  int       `json:"frameTimeout"`  // Seconds that a /ws/frames connection may be idle before it is closed (0 = never)
}

type Detection struct {
	Confidence float32 `json:"confidence"` // Zero = 0.25
	IoU        float32 `json:"iou"`        // Zero = 0.45
	ImageSize  int     `json:"imageSize"`  // Zero = 640
}

// A zero Requests disables rate limiting
type RateLimit struct {
	Requests      int `json:"requests"`
	WindowSeconds int `json:"windowSeconds"`
}

const DefaultListen = ":5000"
const DefaultMaxUploadMB = 32

func NewConfig() *Config {
	return &Config{
		Listen:      DefaultListen,
		Weights:     "runs/detect/train_full/weights/best.onnx",
		Device:      nn.DeviceAuto,
		MaxUploadMB: DefaultMaxUploadMB,
	}
}

// LoadConfig reads a JSON config file on top of the defaults
func LoadConfig(configFile string) (*Config, error) {
	cfg := NewConfig()
	cfgB, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfgB, cfg); err != nil {
		return nil, fmt.Errorf("Error parsing config file %v: %w", configFile, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid config file %v: %w", configFile, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Device {
	case nn.DeviceAuto, nn.DeviceCPU, nn.DeviceCUDA:
	case "":
		c.Device = nn.DeviceAuto
	default:
		return fmt.Errorf("Unknown device '%v'", c.Device)
	}
	if c.Weights == "" {
		return fmt.Errorf("weights must be specified")
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rateLimit.windowSeconds must be positive")
	}
	return nil
}

// DetectionParams returns the thresholds used for every request
func (c *Config) DetectionParams() *nn.DetectionParams {
	p := nn.DetectionParams{
		ProbabilityThreshold: c.Detection.Confidence,
		NmsIouThreshold:      c.Detection.IoU,
		ImageSize:            c.Detection.ImageSize,
	}
	p = p.WithDefaults()
	return &p
}

// MaxPixels returns the largest image that will be decoded
func (c *Config) MaxPixels() int {
	if c.MaxMegapixels <= 0 {
		return nn.DefaultMaxPixels
	}
	return c.MaxMegapixels * 1000 * 1000
}

// ModelSetup returns the load-time settings of the model
func (c *Config) ModelSetup() *nn.ModelSetup {
	setup := nn.NewModelSetup()
	setup.Device = c.Device
	setup.Classes = c.Classes
	setup.NumThreads = c.NumThreads
	setup.LibraryPath = c.LibraryPath
	return setup
}
