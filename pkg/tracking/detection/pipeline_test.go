package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type fakeBoxes struct {
	dets     []Detection
	err      error
	calls    int
	closeErr error
	closed   bool
}

func (f *fakeBoxes) DetectMat(img gocv.Mat) ([]Detection, error) {
	f.calls++
	return f.dets, f.err
}

func (f *fakeBoxes) Close() error {
	f.closed = true
	return f.closeErr
}

type fakeLandmarks struct {
	points   []Point
	err      error
	box      Box
	closeErr error
	closed   bool
}

func (f *fakeLandmarks) Landmarks(img gocv.Mat, box Box) ([]Point, error) {
	f.box = box
	return f.points, f.err
}

func (f *fakeLandmarks) Close() error {
	f.closed = true
	return f.closeErr
}

type fakeExpressions struct {
	scores   Expressions
	err      error
	crop     image.Rectangle
	closeErr error
	closed   bool
}

func (f *fakeExpressions) Classify(face image.Image) (Expressions, error) {
	f.crop = face.Bounds()
	return f.scores, f.err
}

func (f *fakeExpressions) Close() error {
	f.closed = true
	return f.closeErr
}

func fullLandmarks() []Point {
	pts := make([]Point, NumLandmarks)
	for i := range pts {
		pts[i] = Point{X: float64(100 + i), Y: 120}
	}
	return pts
}

func testFrame() Frame {
	return Frame{
		JPEG:   createSolidJPEG(320, 240, color.RGBA{90, 90, 90, 255}),
		Width:  320,
		Height: 240,
	}
}

func TestPipelineDetect_FullFace(t *testing.T) {
	boxes := &fakeBoxes{dets: []Detection{
		{X: 0.25, Y: 0.25, W: 0.5, H: 0.5, Confidence: 0.9},
	}}
	landmarks := &fakeLandmarks{points: fullLandmarks()}
	expressions := &fakeExpressions{scores: Expressions{LabelHappy: 0.8}}
	p := NewPipelineFromStages(boxes, landmarks, expressions)

	face, err := p.Detect(context.Background(), testFrame())
	require.NoError(t, err)
	require.NotNil(t, face)

	want := Box{X: 80, Y: 60, Width: 160, Height: 120}
	assert.InDelta(t, want.X, face.Box.X, 1e-9)
	assert.InDelta(t, want.Y, face.Box.Y, 1e-9)
	assert.InDelta(t, want.Width, face.Box.Width, 1e-9)
	assert.InDelta(t, want.Height, face.Box.Height, 1e-9)
	assert.Equal(t, 0.9, face.Confidence)
	assert.Equal(t, face.Box, landmarks.box)
	assert.Len(t, face.Landmarks, NumLandmarks)
	assert.Equal(t, 0.8, face.Expressions.Score(LabelHappy))
	assert.False(t, expressions.crop.Empty())
}

func TestPipelineDetect_PicksBestBox(t *testing.T) {
	boxes := &fakeBoxes{dets: []Detection{
		{X: 0, Y: 0, W: 0.1, H: 0.1, Confidence: 0.5},
		{X: 0.5, Y: 0.5, W: 0.4, H: 0.4, Confidence: 0.95},
	}}
	landmarks := &fakeLandmarks{points: fullLandmarks()}
	p := NewPipelineFromStages(boxes, landmarks, nil)

	face, err := p.Detect(context.Background(), testFrame())
	require.NoError(t, err)
	require.NotNil(t, face)
	assert.InDelta(t, 160, face.Box.X, 1e-9)
}

func TestPipelineDetect_NoFace(t *testing.T) {
	landmarks := &fakeLandmarks{points: fullLandmarks()}
	p := NewPipelineFromStages(&fakeBoxes{}, landmarks, &fakeExpressions{})

	face, err := p.Detect(context.Background(), testFrame())
	require.NoError(t, err)
	assert.Nil(t, face)
	assert.Equal(t, Box{}, landmarks.box, "landmark stage must not run without a box")
}

func TestPipelineDetect_BadFrames(t *testing.T) {
	tests := []struct {
		name string
		jpeg []byte
	}{
		{"empty", nil},
		{"undecodable", []byte("definitely not a jpeg")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boxes := &fakeBoxes{}
			p := NewPipelineFromStages(boxes, &fakeLandmarks{}, nil)

			face, err := p.Detect(context.Background(), Frame{JPEG: tt.jpeg, Width: 320, Height: 240})
			assert.ErrorIs(t, err, ErrEmptyFrame)
			assert.Nil(t, face)
			assert.Zero(t, boxes.calls)
		})
	}
}

func TestPipelineDetect_CancelledContext(t *testing.T) {
	boxes := &fakeBoxes{}
	p := NewPipelineFromStages(boxes, &fakeLandmarks{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	face, err := p.Detect(ctx, testFrame())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, face)
	assert.Zero(t, boxes.calls)
}

func TestPipelineDetect_StageErrors(t *testing.T) {
	errStage := errors.New("stage failed")
	box := []Detection{{X: 0.25, Y: 0.25, W: 0.5, H: 0.5, Confidence: 0.9}}

	tests := []struct {
		name        string
		boxes       *fakeBoxes
		landmarks   *fakeLandmarks
		expressions *fakeExpressions
	}{
		{
			name:      "box stage",
			boxes:     &fakeBoxes{err: errStage},
			landmarks: &fakeLandmarks{points: fullLandmarks()},
		},
		{
			name:      "landmark stage",
			boxes:     &fakeBoxes{dets: box},
			landmarks: &fakeLandmarks{err: errStage},
		},
		{
			name:        "expression stage",
			boxes:       &fakeBoxes{dets: box},
			landmarks:   &fakeLandmarks{points: fullLandmarks()},
			expressions: &fakeExpressions{err: errStage},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var expressions ExpressionStage
			if tt.expressions != nil {
				expressions = tt.expressions
			}
			p := NewPipelineFromStages(tt.boxes, tt.landmarks, expressions)

			face, err := p.Detect(context.Background(), testFrame())
			assert.ErrorIs(t, err, errStage)
			assert.Nil(t, face, "no partial face on error")
		})
	}
}

func TestPipelineDetect_IncompleteLandmarks(t *testing.T) {
	boxes := &fakeBoxes{dets: []Detection{{X: 0.25, Y: 0.25, W: 0.5, H: 0.5, Confidence: 0.9}}}
	expressions := &fakeExpressions{scores: Expressions{LabelHappy: 1}}
	p := NewPipelineFromStages(boxes, &fakeLandmarks{points: fullLandmarks()[:JawPoints]}, expressions)

	face, err := p.Detect(context.Background(), testFrame())
	require.NoError(t, err)
	assert.Nil(t, face)
	assert.True(t, expressions.crop.Empty(), "expression stage must not run")
}

func TestPipelineDetect_WithoutExpressionStage(t *testing.T) {
	boxes := &fakeBoxes{dets: []Detection{{X: 0.25, Y: 0.25, W: 0.5, H: 0.5, Confidence: 0.9}}}
	p := NewPipelineFromStages(boxes, &fakeLandmarks{points: fullLandmarks()}, nil)

	face, err := p.Detect(context.Background(), testFrame())
	require.NoError(t, err)
	require.NotNil(t, face)
	assert.Nil(t, face.Expressions)
	assert.Zero(t, face.Expressions.Score(LabelHappy))
}

func TestPipelineClose(t *testing.T) {
	errBoxes := errors.New("boxes")
	errExpr := errors.New("expressions")

	boxes := &fakeBoxes{closeErr: errBoxes}
	landmarks := &fakeLandmarks{}
	expressions := &fakeExpressions{closeErr: errExpr}
	p := NewPipelineFromStages(boxes, landmarks, expressions)

	assert.ErrorIs(t, p.Close(), errBoxes)
	assert.True(t, boxes.closed)
	assert.True(t, landmarks.closed)
	assert.True(t, expressions.closed)

	bare := NewPipelineFromStages(&fakeBoxes{}, &fakeLandmarks{}, nil)
	assert.NoError(t, bare.Close())
}
