package detection

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotFound is returned when a model file does not exist.
	ErrModelNotFound = errors.New("detection: model file not found")

	// ErrEmptyFrame is returned when a frame cannot be decoded into pixels.
	ErrEmptyFrame = errors.New("detection: empty frame")

	// ErrRuntimeNotInitialized is returned when the ONNX runtime environment is missing.
	ErrRuntimeNotInitialized = errors.New("detection: onnx runtime not initialized")

	// ErrClosed is returned when a detector is used after Close.
	ErrClosed = errors.New("detection: detector closed")
)

// ModelError wraps a failure to load or run a named model.
type ModelError struct {
	Model string
	Cause error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("detection: model %s: %v", e.Model, e.Cause)
}

func (e *ModelError) Unwrap() error {
	return e.Cause
}
