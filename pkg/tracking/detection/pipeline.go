package detection

import (
	"context"
	"fmt"
	"image"

	"github.com/teslashibe/go-avatar/pkg/debug"
	"gocv.io/x/gocv"
)

// BoxStage finds candidate face boxes in a decoded frame.
type BoxStage interface {
	DetectMat(img gocv.Mat) ([]Detection, error)
	Close() error
}

// LandmarkStage locates the 68 landmarks of one face.
type LandmarkStage interface {
	Landmarks(img gocv.Mat, box Box) ([]Point, error)
	Close() error
}

// ExpressionStage scores the expressions of a face crop.
type ExpressionStage interface {
	Classify(face image.Image) (Expressions, error)
	Close() error
}

// Pipeline runs box detection, landmark regression and expression
// classification on the single best face of a frame.
type Pipeline struct {
	boxes       BoxStage
	landmarks   LandmarkStage
	expressions ExpressionStage
}

// NewPipeline loads all three models from cfg. Any missing model fails
// construction and releases whatever was already loaded.
func NewPipeline(cfg Config) (*Pipeline, error) {
	boxes, err := NewYuNet(cfg)
	if err != nil {
		return nil, fmt.Errorf("face model: %w", err)
	}

	landmarks, err := NewLandmarkNet(cfg)
	if err != nil {
		boxes.Close()
		return nil, fmt.Errorf("landmark model: %w", err)
	}

	expressions, err := NewExpressionNet(cfg)
	if err != nil {
		boxes.Close()
		landmarks.Close()
		return nil, fmt.Errorf("expression model: %w", err)
	}

	return NewPipelineFromStages(boxes, landmarks, expressions), nil
}

// NewPipelineFromStages assembles a pipeline from existing stages.
// expressions may be nil, in which case faces carry no scores.
func NewPipelineFromStages(boxes BoxStage, landmarks LandmarkStage, expressions ExpressionStage) *Pipeline {
	return &Pipeline{boxes: boxes, landmarks: landmarks, expressions: expressions}
}

// Detect implements Detector. A frame without a face, or whose best face
// has no full landmark set, yields a nil Face.
func (p *Pipeline) Detect(ctx context.Context, frame Frame) (*Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(frame.JPEG) == 0 {
		return nil, ErrEmptyFrame
	}

	img, err := gocv.IMDecode(frame.JPEG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrEmptyFrame, err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, ErrEmptyFrame
	}

	dets, err := p.boxes.DetectMat(img)
	if err != nil {
		return nil, err
	}
	best := SelectBest(dets)
	if best == nil {
		return nil, nil
	}

	size := Size{Width: img.Cols(), Height: img.Rows()}
	face := &Face{
		Box:        best.Pixels(size),
		Confidence: best.Confidence,
	}

	face.Landmarks, err = p.landmarks.Landmarks(img, face.Box)
	if err != nil {
		return nil, err
	}
	if !face.Complete() {
		debug.DetectLog("face dropped, incomplete landmarks", "count", len(face.Landmarks))
		return nil, nil
	}

	if p.expressions != nil {
		face.Expressions, err = p.classify(img, face.Box)
		if err != nil {
			return nil, err
		}
	}

	debug.DetectLog("face detected",
		"x", face.Box.X, "y", face.Box.Y, "w", face.Box.Width,
		"landmarks", len(face.Landmarks),
		"happy", face.Expressions.Score(LabelHappy),
		"surprised", face.Expressions.Score(LabelSurprised))

	return face, nil
}

func (p *Pipeline) classify(img gocv.Mat, box Box) (Expressions, error) {
	rect := CropRect(box, 0, image.Rect(0, 0, img.Cols(), img.Rows()))
	if rect.Empty() {
		return Expressions{}, nil
	}

	region := img.Region(rect)
	defer region.Close()

	crop, err := region.ToImage()
	if err != nil {
		return nil, fmt.Errorf("face crop: %w", err)
	}
	return p.expressions.Classify(crop)
}

// Close releases every stage.
func (p *Pipeline) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(p.boxes.Close())
	record(p.landmarks.Close())
	if p.expressions != nil {
		record(p.expressions.Close())
	}
	return firstErr
}
