package detection

// Landmark layout of the 68-point model.
const (
	NumLandmarks = 68
	JawLeft      = 0  // Left jaw extreme
	JawRight     = 16 // Right jaw extreme
	JawPoints    = 17
)

// Expression labels, matching the classifier output order.
const (
	LabelNeutral   = "neutral"
	LabelHappy     = "happy"
	LabelSurprised = "surprised"
	LabelSad       = "sad"
	LabelAngry     = "angry"
	LabelDisgusted = "disgusted"
	LabelFearful   = "fearful"
	LabelContempt  = "contempt"
)

// Point is a 2D coordinate in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a pixel resolution.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether either dimension is non-positive.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Box is a bounding box in pixels.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the middle of the box.
func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Frame is one captured video frame.
type Frame struct {
	JPEG   []byte
	Width  int
	Height int
}

// Size returns the native resolution of the frame.
func (f Frame) Size() Size {
	return Size{Width: f.Width, Height: f.Height}
}

// Expressions maps an expression label to a confidence in [0,1].
type Expressions map[string]float64

// Score returns the confidence for label, or 0 if absent.
func (e Expressions) Score(label string) float64 {
	return e[label]
}

// Face is a single detection record: box, landmarks and expression scores.
type Face struct {
	Box         Box         `json:"box"`
	Landmarks   []Point     `json:"landmarks"`
	Expressions Expressions `json:"expressions"`
	Confidence  float64     `json:"confidence"`
}

// Complete reports whether the record carries the full landmark set.
func (f *Face) Complete() bool {
	return f != nil && len(f.Landmarks) >= NumLandmarks
}

// JawOutline returns the 17 jaw points, or nil if landmarks are incomplete.
func (f *Face) JawOutline() []Point {
	if f == nil || len(f.Landmarks) < JawPoints {
		return nil
	}
	return f.Landmarks[:JawPoints]
}

// Resize rescales the geometry of f from the from resolution to the to resolution.
// Scores are copied unchanged. An empty from size leaves the geometry untouched.
func Resize(f Face, from, to Size) Face {
	if from.Empty() || to.Empty() {
		return f
	}
	sx := float64(to.Width) / float64(from.Width)
	sy := float64(to.Height) / float64(from.Height)

	out := Face{
		Box: Box{
			X:      f.Box.X * sx,
			Y:      f.Box.Y * sy,
			Width:  f.Box.Width * sx,
			Height: f.Box.Height * sy,
		},
		Expressions: f.Expressions,
		Confidence:  f.Confidence,
	}
	if f.Landmarks != nil {
		out.Landmarks = make([]Point, len(f.Landmarks))
		for i, p := range f.Landmarks {
			out.Landmarks[i] = Point{X: p.X * sx, Y: p.Y * sy}
		}
	}
	return out
}
