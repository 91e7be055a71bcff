package tracking

import (
	"math"

	"github.com/teslashibe/go-avatar/pkg/tracking/detection"
)

// Target is the avatar state derived from one detection.
type Target struct {
	Pose       Pose
	Expression Expression
}

// Perception converts face detections into avatar targets
type Perception struct {
	ExpressionThreshold float64
	ReferenceFaceWidth  float64
}

// NewPerception creates a perception stage from the tracking config
func NewPerception(config Config) *Perception {
	return &Perception{
		ExpressionThreshold: config.ExpressionThreshold,
		ReferenceFaceWidth:  config.ReferenceFaceWidth,
	}
}

// FaceToTarget maps a face detected in a source frame to a target on the display.
// It returns false when the record lacks the jaw landmarks needed for rotation
// or carries non-finite or degenerate geometry, so the caller keeps its
// previous target.
func (p *Perception) FaceToTarget(face detection.Face, source, display detection.Size) (Target, bool) {
	resized := detection.Resize(face, source, display)

	jaw := resized.JawOutline()
	if jaw == nil {
		return Target{}, false
	}

	center := resized.Box.Center()
	left, right := jaw[detection.JawLeft], jaw[detection.JawRight]
	if !finite(center.X, center.Y, resized.Box.Width, left.X, left.Y, right.X, right.Y) ||
		resized.Box.Width <= 0 {
		return Target{}, false
	}

	return Target{
		Pose: Pose{
			X:        center.X,
			Y:        center.Y,
			Rotation: JawRoll(left, right),
			Scale:    p.Scale(resized.Box.Width),
		},
		// Scores are resolution independent, read them from the original record
		Expression: Classify(face.Expressions, p.ExpressionThreshold),
	}, true
}

// Scale returns the avatar scale for a face of the given display width.
func (p *Perception) Scale(faceWidth float64) float64 {
	if p.ReferenceFaceWidth <= 0 {
		return 1
	}
	return faceWidth / p.ReferenceFaceWidth
}

// JawRoll returns the head roll as the angle of the line from the left jaw
// extreme to the right jaw extreme.
func JawRoll(left, right detection.Point) float64 {
	return math.Atan2(right.Y-left.Y, right.X-left.X)
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
