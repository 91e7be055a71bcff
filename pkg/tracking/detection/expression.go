package detection

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
)

// ExpressionLabels is the FER+ class order.
var ExpressionLabels = []string{
	LabelNeutral,
	LabelHappy,
	LabelSurprised,
	LabelSad,
	LabelAngry,
	LabelDisgusted,
	LabelFearful,
	LabelContempt,
}

// ExpressionNet classifies a face crop into expression scores with ONNX Runtime.
// The ONNX environment must be initialized by the caller.
type ExpressionNet struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	size    int
	mu      sync.Mutex
	closed  bool
}

// NewExpressionNet creates a session for the expression model named in cfg.
func NewExpressionNet(cfg Config) (*ExpressionNet, error) {
	path := cfg.ExpressionPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	if !ort.IsInitialized() {
		return nil, ErrRuntimeNotInitialized
	}

	size := cfg.ExpressionInputSize
	if size <= 0 {
		size = DefaultConfig().ExpressionInputSize
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, int64(size), int64(size)))
	if err != nil {
		return nil, &ModelError{Model: path, Cause: fmt.Errorf("input tensor: %w", err)}
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(ExpressionLabels))))
	if err != nil {
		input.Destroy()
		return nil, &ModelError{Model: path, Cause: fmt.Errorf("output tensor: %w", err)}
	}

	session, err := ort.NewAdvancedSession(
		path,
		[]string{cfg.ExpressionInputName},
		[]string{cfg.ExpressionOutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, &ModelError{Model: path, Cause: err}
	}

	return &ExpressionNet{
		session: session,
		input:   input,
		output:  output,
		size:    size,
	}, nil
}

// Classify returns expression scores for a face crop.
func (n *ExpressionNet) Classify(face image.Image) (Expressions, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, ErrClosed
	}

	Preprocess(face, n.size, n.input.GetData())

	if err := n.session.Run(); err != nil {
		return nil, fmt.Errorf("expression inference: %w", err)
	}

	return ScoresFromLogits(n.output.GetData()), nil
}

// Preprocess writes the face as size x size grayscale intensities (0-255) into dst.
func Preprocess(face image.Image, size int, dst []float32) {
	gray := imaging.Resize(imaging.Grayscale(face), size, size, imaging.Linear)
	for i := 0; i < size*size && i < len(dst); i++ {
		dst[i] = float32(gray.Pix[i*4])
	}
}

// ScoresFromLogits applies softmax to raw model outputs and labels them.
func ScoresFromLogits(logits []float32) Expressions {
	n := len(logits)
	if n > len(ExpressionLabels) {
		n = len(ExpressionLabels)
	}
	if n == 0 {
		return Expressions{}
	}

	maxV := float64(logits[0])
	for _, v := range logits[:n] {
		maxV = math.Max(maxV, float64(v))
	}

	exps := make([]float64, n)
	sum := 0.0
	for i, v := range logits[:n] {
		exps[i] = math.Exp(float64(v) - maxV)
		sum += exps[i]
	}

	scores := make(Expressions, n)
	for i := range exps {
		scores[ExpressionLabels[i]] = exps[i] / sum
	}
	return scores
}

// Close destroys the session and its tensors
func (n *ExpressionNet) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true

	var firstErr error
	for _, destroy := range []func() error{n.session.Destroy, n.input.Destroy, n.output.Destroy} {
		if err := destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
