package camera

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/tracking/detection"
	"gocv.io/x/gocv"
)

var (
	// ErrNoDevice is returned when the capture device cannot be opened or
	// delivers no frames.
	ErrNoDevice = errors.New("camera: no video device")

	// ErrStopped is returned by Frame after Stop.
	ErrStopped = errors.New("camera: stopped")

	// ErrReadFailed is returned when a single frame could not be read.
	ErrReadFailed = errors.New("camera: frame read failed")
)

// Webcam captures JPEG frames from a local video device
type Webcam struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	img     gocv.Mat
	config  Config
	size    detection.Size
	stopped bool
}

// Open acquires the video device and reads one frame to confirm it works.
func Open(cfg Config) (*Webcam, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Webcam{img: gocv.NewMat(), config: cfg}
	if err := w.open(cfg); err != nil {
		w.img.Close()
		return nil, err
	}

	log.Info("📷 camera opened",
		"device", cfg.Device,
		"requested", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"actual", fmt.Sprintf("%dx%d", w.size.Width, w.size.Height),
		"fps", cfg.Framerate)
	return w, nil
}

// open replaces the capture handle. Caller holds w.mu or owns w exclusively.
func (w *Webcam) open(cfg Config) error {
	capture, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return fmt.Errorf("%w: device %d: %v", ErrNoDevice, cfg.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: device %d did not open", ErrNoDevice, cfg.Device)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	if ok := capture.Read(&w.img); !ok || w.img.Empty() {
		capture.Close()
		return fmt.Errorf("%w: device %d delivered no frame", ErrNoDevice, cfg.Device)
	}

	if w.capture != nil {
		w.capture.Close()
	}
	w.capture = capture
	w.config = cfg
	w.size = detection.Size{Width: w.img.Cols(), Height: w.img.Rows()}
	return nil
}

// Frame reads the next frame and encodes it as JPEG.
func (w *Webcam) Frame() (detection.Frame, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return detection.Frame{}, ErrStopped
	}
	if ok := w.capture.Read(&w.img); !ok || w.img.Empty() {
		return detection.Frame{}, ErrReadFailed
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, w.img, []int{gocv.IMWriteJpegQuality, w.config.Quality})
	if err != nil {
		return detection.Frame{}, fmt.Errorf("camera: encode frame: %w", err)
	}
	defer buf.Close()

	w.size = detection.Size{Width: w.img.Cols(), Height: w.img.Rows()}
	return detection.Frame{
		JPEG:   bytes.Clone(buf.GetBytes()),
		Width:  w.size.Width,
		Height: w.size.Height,
	}, nil
}

// Size returns the native size of the most recent frame
func (w *Webcam) Size() detection.Size {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Apply changes the capture settings of the open device. A different device
// index reopens the capture; the old device stays in use if that fails.
func (w *Webcam) Apply(cfg Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}
	if cfg.Device != w.config.Device {
		return w.open(cfg)
	}

	w.capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	w.capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	w.capture.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	w.config = cfg
	if ok := w.capture.Read(&w.img); ok && !w.img.Empty() {
		w.size = detection.Size{Width: w.img.Cols(), Height: w.img.Rows()}
	}

	log.Info("📷 camera config applied",
		"resolution", fmt.Sprintf("%dx%d", w.size.Width, w.size.Height),
		"fps", cfg.Framerate,
		"quality", cfg.Quality)
	return nil
}

// Stop releases the capture device. It is safe to call more than once.
func (w *Webcam) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true

	err := w.capture.Close()
	w.img.Close()
	if err != nil {
		return fmt.Errorf("camera: release device: %w", err)
	}
	log.Info("📷 camera released", "device", w.config.Device)
	return nil
}

// Stopped reports whether Stop has been called
func (w *Webcam) Stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}
