package tracking

import (
	"fmt"

	"github.com/teslashibe/go-avatar/pkg/tracking/detection"
)

// Expression selects which avatar texture is shown.
type Expression int

const (
	Neutral Expression = iota
	Happy
	Surprised
)

// Expressions lists every expression in texture order.
var Expressions = []Expression{Neutral, Happy, Surprised}

func (e Expression) String() string {
	switch e {
	case Happy:
		return "happy"
	case Surprised:
		return "surprised"
	default:
		return "neutral"
	}
}

// MarshalText encodes the expression by name.
func (e Expression) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes an expression name.
func (e *Expression) UnmarshalText(text []byte) error {
	switch string(text) {
	case "neutral":
		*e = Neutral
	case "happy":
		*e = Happy
	case "surprised":
		*e = Surprised
	default:
		return fmt.Errorf("tracking: unknown expression %q", text)
	}
	return nil
}

// Classify picks the expression for a set of scores. Happy is checked before
// surprised, so when both exceed threshold the result is Happy.
func Classify(scores detection.Expressions, threshold float64) Expression {
	switch {
	case scores.Score(detection.LabelHappy) > threshold:
		return Happy
	case scores.Score(detection.LabelSurprised) > threshold:
		return Surprised
	default:
		return Neutral
	}
}
