package nn

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ImageExtensions are the file extensions that ListImages picks up (lower case)
var ImageExtensions = []string{".bmp", ".gif", ".jpeg", ".jpg", ".png", ".tif", ".tiff", ".webp"}

type InferenceOptions struct {
	Params         *DetectionParams // nil = defaults
	StdOutProgress bool             // Print one line per image to stdout
}

// ImageResult is handed to the callback of RunInferenceOnDirectory, once per image
type ImageResult struct {
	Path   string
	Name   string // Base filename
	Image  *Image
	Labels ImageLabels
}

// ListImages returns the image files in dir, sorted by name.
// Subdirectories are not searched.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, allowed := range ImageExtensions {
			if ext == allowed {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// RunInferenceOnDirectory runs the model over every image in dir, one at a time, in name order.
// onImage is called after each image (it may be nil). The returned Tally counts detections per class.
func RunInferenceOnDirectory(model ObjectDetector, dir string, options InferenceOptions, onImage func(r *ImageResult) error) (*Tally, error) {
	files, err := ListImages(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("No images found in %v", dir)
	}

	params := options.Params.WithDefaults()
	classes := model.Config().ClassTable()
	tally := NewTally()

	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		img, err := DecodeImage(raw)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", file, err)
		}
		boxes, err := model.DetectObjects(img, &params)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", file, &InferenceError{Err: err})
		}
		tally.AddImage(boxes)

		name := filepath.Base(file)
		if options.StdOutProgress {
			fmt.Println(ImageLine(name, boxes, classes))
		}
		if onImage != nil {
			r := &ImageResult{
				Path:  file,
				Name:  name,
				Image: img,
				Labels: ImageLabels{
					Filename: name,
					Width:    img.Width,
					Height:   img.Height,
					Objects:  boxes,
				},
			}
			if err := onImage(r); err != nil {
				return nil, err
			}
		}
	}

	return tally, nil
}
