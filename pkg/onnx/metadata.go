package onnx

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
	"gopkg.in/yaml.v3"
)

// Metadata is what the trainer's exporter embeds in the custom metadata of an ONNX file
type Metadata struct {
	Names   []string // Class names, by index
	ImgSize [2]int   // Height, Width. Zero if absent.
}

// ReadMetadata reads the custom metadata of an ONNX file.
// The runtime must already be initialized.
func ReadMetadata(modelFile string) (*Metadata, error) {
	md, err := ort.GetModelMetadata(modelFile)
	if err != nil {
		return nil, fmt.Errorf("Failed to read metadata of %v: %w", modelFile, err)
	}
	defer md.Destroy()

	result := &Metadata{}
	names, ok, err := md.LookupCustomMetadataMap("names")
	if err != nil {
		return nil, err
	}
	if ok {
		if result.Names, err = ParseNames(names); err != nil {
			return nil, err
		}
	}
	imgsz, ok, err := md.LookupCustomMetadataMap("imgsz")
	if err != nil {
		return nil, err
	}
	if ok {
		if result.ImgSize, err = ParseImgSize(imgsz); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ParseNames parses the exporter's "names" entry, which is the string form of an
// index -> name dictionary, eg "{0: 'person', 1: 'bicycle'}". That is also a YAML flow mapping.
func ParseNames(s string) ([]string, error) {
	byIndex := map[int]string{}
	if err := yaml.Unmarshal([]byte(s), &byIndex); err != nil {
		return nil, fmt.Errorf("Invalid class names '%v': %w", s, err)
	}
	names := make([]string, len(byIndex))
	for i := range names {
		name, ok := byIndex[i]
		if !ok {
			return nil, fmt.Errorf("Class indices in '%v' are not contiguous", s)
		}
		names[i] = name
	}
	return names, nil
}

// ParseImgSize parses the exporter's "imgsz" entry, eg "[640, 640]"
func ParseImgSize(s string) ([2]int, error) {
	var size []int
	if err := yaml.Unmarshal([]byte(s), &size); err != nil {
		return [2]int{}, fmt.Errorf("Invalid imgsz '%v': %w", s, err)
	}
	if len(size) != 2 || size[0] <= 0 || size[1] <= 0 {
		return [2]int{}, fmt.Errorf("Invalid imgsz '%v'", s)
	}
	return [2]int{size[0], size[1]}, nil
}

// Shapes returns the shapes of the first input and first output of an ONNX file.
// Dynamic dimensions are reported as -1.
func Shapes(modelFile string) (input, output []int64, err error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelFile)
	if err != nil {
		return nil, nil, err
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, nil, fmt.Errorf("%v has no inputs or outputs", modelFile)
	}
	return []int64(inputs[0].Dimensions), []int64(outputs[0].Dimensions), nil
}
