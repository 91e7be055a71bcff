// Package render composites the avatar sprite onto an offscreen canvas and
// publishes each frame as a JPEG.
package render

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/teslashibe/go-avatar/pkg/tracking"
)

// ErrTextureLoad is returned when an avatar texture cannot be loaded.
var ErrTextureLoad = errors.New("render: texture load failed")

// TextureFiles maps each expression to its image file in the assets dir
var TextureFiles = map[tracking.Expression]string{
	tracking.Neutral:   "avatar-neutral.png",
	tracking.Happy:     "avatar-happy.png",
	tracking.Surprised: "avatar-surprised.png",
}

// Textures holds one decoded image per expression. Immutable after load.
type Textures struct {
	images map[tracking.Expression]image.Image
}

// LoadTextures decodes every expression texture from dir. Any missing or
// unreadable file fails the whole load.
func LoadTextures(dir string) (*Textures, error) {
	images := make(map[tracking.Expression]image.Image, len(TextureFiles))
	for _, expr := range tracking.Expressions {
		path := filepath.Join(dir, TextureFiles[expr])
		img, err := imaging.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s texture %s: %v", ErrTextureLoad, expr, path, err)
		}
		images[expr] = img
	}
	return NewTextures(images)
}

// NewTextures wraps already decoded images. Every expression must be present.
func NewTextures(images map[tracking.Expression]image.Image) (*Textures, error) {
	for _, expr := range tracking.Expressions {
		img, ok := images[expr]
		if !ok || img == nil || img.Bounds().Empty() {
			return nil, fmt.Errorf("%w: %s texture missing or empty", ErrTextureLoad, expr)
		}
	}
	return &Textures{images: images}, nil
}

// For returns the texture for an expression
func (t *Textures) For(expr tracking.Expression) image.Image {
	if img, ok := t.images[expr]; ok {
		return img
	}
	return t.images[tracking.Neutral]
}

// Size returns the pixel size of the neutral texture
func (t *Textures) Size() image.Point {
	img := t.images[tracking.Neutral]
	if img == nil {
		return image.Point{}
	}
	return img.Bounds().Size()
}

func (t *Textures) release() {
	t.images = nil
}
