package nn

import (
	"errors"
	"fmt"
)

// ErrInvalidImage is returned when an image has a zero width or height.
// ImageIngest never produces such an image, so seeing this means a caller built one by hand.
var ErrInvalidImage = errors.New("Invalid image: width and height must be positive")

// DecodeError is returned when uploaded bytes are missing or are not a decodable image
type DecodeError struct {
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// InferenceError is returned when the underlying model call fails
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("Inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// UnknownClassError means the model produced a class index that is not in its class table.
// This indicates a weights file that does not match its class table.
type UnknownClassError struct {
	Class    int
	NClasses int
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("Unknown class index %v (model has %v classes)", e.Class, e.NClasses)
}
