package nn

import (
	"time"

	"github.com/cyclopcam/detectd/pkg/perfstats"
	"github.com/cyclopcam/logs"
)

// Service runs a loaded model over images, and returns normalized detections.
// The model is loaded once by the caller and shared by all requests.
type Service struct {
	Log       logs.Log
	Stats     *perfstats.Pipeline
	MaxPixels int // Largest image that InferBytes will decode. Zero = DefaultMaxPixels.
	model     ObjectDetector
}

func NewService(log logs.Log, model ObjectDetector) *Service {
	return &Service{
		Log:       log,
		Stats:     &perfstats.Pipeline{},
		MaxPixels: DefaultMaxPixels,
		model:     model,
	}
}

// Model returns the underlying detector
func (s *Service) Model() ObjectDetector {
	return s.model
}

// Classes returns the class table of the model
func (s *Service) Classes() ClassNameTable {
	return s.model.Config().ClassTable()
}

// Infer runs the model on img and returns the normalized detections, in model output order.
// A nil params uses the defaults. Zero detections yield an empty list.
func (s *Service) Infer(img *Image, params *DetectionParams) ([]DetectionRecord, error) {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return nil, ErrInvalidImage
	}
	p := params.WithDefaults()
	start := time.Now()
	boxes, err := s.model.DetectObjects(img, &p)
	if err != nil {
		s.Stats.AddFailure()
		return nil, &InferenceError{Err: err}
	}
	s.Stats.AddDetect(time.Since(start))
	return NormalizeAll(boxes, img.Width, img.Height, s.Classes())
}

// InferBytes decodes an encoded image and runs Infer on it
func (s *Service) InferBytes(data []byte, params *DetectionParams) ([]DetectionRecord, error) {
	start := time.Now()
	img, err := DecodeImageLimit(data, s.MaxPixels)
	if err != nil {
		s.Stats.AddFailure()
		return nil, err
	}
	s.Stats.AddDecode(time.Since(start))
	return s.Infer(img, params)
}
