// Package detection provides single-face detection with landmarks and expression scores
package detection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Detection represents a candidate face box from the box stage
type Detection struct {
	X, Y       float64 // Top-left position (0-1 normalized)
	W, H       float64 // Width and height (0-1 normalized)
	Confidence float64 // Detection confidence (0-1)
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Pixels converts the normalized box to a pixel box in a frame of the given size.
func (d Detection) Pixels(size Size) Box {
	return Box{
		X:      d.X * float64(size.Width),
		Y:      d.Y * float64(size.Height),
		Width:  d.W * float64(size.Width),
		Height: d.H * float64(size.Height),
	}
}

// Detector finds the single most prominent face in a frame.
// A nil Face with a nil error means no face was found.
type Detector interface {
	Detect(ctx context.Context, frame Frame) (*Face, error)

	// Close releases model resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	ModelsDir string // Directory containing the model files below

	FaceModel        string  // YuNet ONNX model
	LandmarkModel    string  // 68-point landmark ONNX model
	ExpressionModel  string  // FER+ ONNX model
	ConfidenceThresh float64 // Minimum face confidence (default 0.5)
	InputWidth       int     // YuNet initial input width
	InputHeight      int     // YuNet initial input height

	LandmarkInputSize int     // Square landmark model input
	LandmarkPadding   float64 // Fraction of box size added around the landmark crop

	ExpressionInputSize  int    // Square expression model input
	ExpressionInputName  string // ONNX input tensor name
	ExpressionOutputName string // ONNX output tensor name
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		ModelsDir:        "models",
		FaceModel:        "face_detection_yunet.onnx",
		LandmarkModel:    "face_landmarks_68.onnx",
		ExpressionModel:  "emotion-ferplus-8.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,

		LandmarkInputSize: 112,
		LandmarkPadding:   0.1,

		ExpressionInputSize:  64,
		ExpressionInputName:  "Input3",
		ExpressionOutputName: "Plus692_Output_0",
	}
}

// FacePath returns the resolved path of the face model.
func (c Config) FacePath() string { return c.resolve(c.FaceModel) }

// LandmarkPath returns the resolved path of the landmark model.
func (c Config) LandmarkPath() string { return c.resolve(c.LandmarkModel) }

// ExpressionPath returns the resolved path of the expression model.
func (c Config) ExpressionPath() string { return c.resolve(c.ExpressionModel) }

// CheckModels reports the first model file that does not exist.
func (c Config) CheckModels() error {
	for _, path := range []string{c.FacePath(), c.LandmarkPath(), c.ExpressionPath()} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
	}
	return nil
}

func (c Config) resolve(name string) string {
	if filepath.IsAbs(name) || c.ModelsDir == "" {
		return name
	}
	return filepath.Join(c.ModelsDir, name)
}

// SelectBest picks the best face from multiple detections
// Priority: confidence * 0.7 + area * 0.3
func SelectBest(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}

	if len(dets) == 1 {
		return &dets[0]
	}

	// Find max area for normalization
	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}

	bestScore := -1.0
	var best *Detection

	for i := range dets {
		score := dets[i].Confidence * 0.7
		if maxArea > 0 {
			score += (dets[i].Area() / maxArea) * 0.3
		}
		if score > bestScore {
			bestScore = score
			best = &dets[i]
		}
	}

	return best
}
