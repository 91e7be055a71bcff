package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// LandmarkNet regresses 68 facial landmarks from a face crop with OpenCV DNN.
// The model takes a square RGB crop scaled to [0,1] and outputs 136 values:
// x,y pairs normalized to the crop.
type LandmarkNet struct {
	net     gocv.Net
	size    int
	padding float64
	mu      sync.Mutex
	closed  bool
}

// NewLandmarkNet loads the landmark model named in cfg.
func NewLandmarkNet(cfg Config) (*LandmarkNet, error) {
	path := cfg.LandmarkPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, &ModelError{Model: path, Cause: fmt.Errorf("empty network")}
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, &ModelError{Model: path, Cause: err}
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, &ModelError{Model: path, Cause: err}
	}

	size := cfg.LandmarkInputSize
	if size <= 0 {
		size = DefaultConfig().LandmarkInputSize
	}

	return &LandmarkNet{net: net, size: size, padding: cfg.LandmarkPadding}, nil
}

// CropRect returns the padded square crop around box, clipped to the image bounds.
func CropRect(box Box, padding float64, bounds image.Rectangle) image.Rectangle {
	side := box.Width
	if box.Height > side {
		side = box.Height
	}
	side *= 1 + 2*padding

	c := box.Center()
	r := image.Rect(
		int(c.X-side/2), int(c.Y-side/2),
		int(c.X+side/2), int(c.Y+side/2),
	)
	return r.Intersect(bounds)
}

// Landmarks returns the 68 landmark points of the face in box, in image pixels.
func (n *LandmarkNet) Landmarks(img gocv.Mat, box Box) ([]Point, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, ErrClosed
	}
	if img.Empty() {
		return nil, ErrEmptyFrame
	}

	rect := CropRect(box, n.padding, image.Rect(0, 0, img.Cols(), img.Rows()))
	if rect.Empty() {
		return nil, nil
	}

	crop := img.Region(rect)
	defer crop.Close()

	blob := gocv.BlobFromImage(crop, 1.0/255.0, image.Pt(n.size, n.size),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	n.net.SetInput(blob, "")
	out := n.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("landmark output: %w", err)
	}
	if len(data) < NumLandmarks*2 {
		return nil, fmt.Errorf("landmark output: got %d values, want %d", len(data), NumLandmarks*2)
	}

	return ProjectLandmarks(data[:NumLandmarks*2], rect), nil
}

// ProjectLandmarks maps crop-normalized x,y pairs back into image pixels.
func ProjectLandmarks(values []float32, crop image.Rectangle) []Point {
	w := float64(crop.Dx())
	h := float64(crop.Dy())
	pts := make([]Point, len(values)/2)
	for i := range pts {
		pts[i] = Point{
			X: float64(crop.Min.X) + float64(values[2*i])*w,
			Y: float64(crop.Min.Y) + float64(values[2*i+1])*h,
		}
	}
	return pts
}

// Close releases the network
func (n *LandmarkNet) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.net.Close()
}
