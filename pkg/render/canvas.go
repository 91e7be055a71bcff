package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/teslashibe/go-avatar/pkg/tracking"
	"github.com/teslashibe/go-avatar/pkg/tracking/detection"
)

// ErrDestroyed is returned by Draw after Destroy.
var ErrDestroyed = errors.New("render: canvas destroyed")

// FrameSink receives every rendered frame as a JPEG
type FrameSink interface {
	WriteFrame(jpeg []byte)
}

// Config holds the display surface parameters
type Config struct {
	Width      int
	Height     int
	Background color.NRGBA
	Quality    int // JPEG quality of published frames

	// Camera preview thumbnail, bottom-right corner
	PreviewWidth   int
	PreviewMargin  int
	PreviewOpacity float64
}

// DefaultConfig returns a 1280x720 canvas on a near-black background.
func DefaultConfig() Config {
	return Config{
		Width:      1280,
		Height:     720,
		Background: color.NRGBA{R: 0x11, G: 0x11, B: 0x11, A: 0xff},
		Quality:    80,

		PreviewWidth:   200,
		PreviewMargin:  16,
		PreviewOpacity: 0.2,
	}
}

// maxSpriteFactor caps the sprite at this multiple of the larger display side
const maxSpriteFactor = 4

// Canvas is an offscreen renderer implementing tracking.Renderer
type Canvas struct {
	mu        sync.Mutex
	config    Config
	textures  *Textures
	sink      FrameSink
	buf       bytes.Buffer
	destroyed bool
}

// NewCanvas creates a canvas drawing textures and publishing to sink.
// sink may be nil.
func NewCanvas(cfg Config, textures *Textures, sink FrameSink) (*Canvas, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("render: invalid display size %dx%d", cfg.Width, cfg.Height)
	}
	if textures == nil {
		return nil, fmt.Errorf("%w: no textures", ErrTextureLoad)
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = DefaultConfig().Quality
	}
	return &Canvas{config: cfg, textures: textures, sink: sink}, nil
}

// Size returns the display size
func (c *Canvas) Size() detection.Size {
	return detection.Size{Width: c.config.Width, Height: c.config.Height}
}

// Draw composes one frame and hands the JPEG to the sink.
func (c *Canvas) Draw(sprite tracking.Sprite) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return ErrDestroyed
	}

	frame := c.compose(sprite)

	c.buf.Reset()
	if err := imaging.Encode(&c.buf, frame, imaging.JPEG, imaging.JPEGQuality(c.config.Quality)); err != nil {
		return fmt.Errorf("render: encode frame: %w", err)
	}
	if c.sink != nil {
		c.sink.WriteFrame(bytes.Clone(c.buf.Bytes()))
	}
	return nil
}

// Compose draws one frame without publishing it.
func (c *Canvas) Compose(sprite tracking.Sprite) (*image.NRGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return nil, ErrDestroyed
	}
	return c.compose(sprite), nil
}

func (c *Canvas) compose(sprite tracking.Sprite) *image.NRGBA {
	frame := imaging.New(c.config.Width, c.config.Height, c.config.Background)

	if avatar := c.spriteImage(sprite); avatar != nil {
		b := avatar.Bounds()
		// Anchored at the sprite center
		pos := image.Pt(
			int(math.Round(sprite.Pose.X-float64(b.Dx())/2)),
			int(math.Round(sprite.Pose.Y-float64(b.Dy())/2)),
		)
		frame = imaging.Overlay(frame, avatar, pos, 1.0)
	}

	if thumb := c.previewImage(sprite.Preview); thumb != nil {
		b := thumb.Bounds()
		pos := image.Pt(
			c.config.Width-c.config.PreviewMargin-b.Dx(),
			c.config.Height-c.config.PreviewMargin-b.Dy(),
		)
		frame = imaging.Overlay(frame, thumb, pos, c.config.PreviewOpacity)
	}

	return frame
}

// spriteImage scales and rotates the texture for the sprite's expression.
func (c *Canvas) spriteImage(sprite tracking.Sprite) image.Image {
	tex := c.textures.For(sprite.Expression)
	if tex == nil {
		return nil
	}

	limit := float64(maxSpriteFactor * max(c.config.Width, c.config.Height))
	size := tex.Bounds().Size()
	w := math.Min(math.Round(float64(size.X)*sprite.Pose.Scale), limit)
	h := math.Min(math.Round(float64(size.Y)*sprite.Pose.Scale), limit)
	if w < 1 || h < 1 {
		return nil
	}

	img := imaging.Resize(tex, int(w), int(h), imaging.Linear)
	if sprite.Pose.Rotation != 0 {
		// Pose rotation is clockwise on screen, imaging rotates counter-clockwise
		img = imaging.Rotate(img, -tracking.Degrees(sprite.Pose.Rotation), color.Transparent)
	}
	return img
}

// previewImage decodes the last camera frame into a thumbnail.
func (c *Canvas) previewImage(frame *detection.Frame) image.Image {
	if frame == nil || len(frame.JPEG) == 0 || c.config.PreviewWidth <= 0 || c.config.PreviewOpacity <= 0 {
		return nil
	}
	img, err := imaging.Decode(bytes.NewReader(frame.JPEG))
	if err != nil {
		return nil
	}
	return imaging.Resize(img, c.config.PreviewWidth, 0, imaging.Box)
}

// Destroy releases the textures. Later draws return ErrDestroyed.
func (c *Canvas) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return nil
	}
	c.destroyed = true
	c.textures.release()
	c.buf = bytes.Buffer{}
	return nil
}
