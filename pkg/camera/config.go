// Package camera provides the webcam video source and its runtime-configurable
// settings. It follows the same pattern as pkg/tracking for tunable parameters.
package camera

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds all camera configuration parameters.
// These can be modified via the camera API at runtime.
type Config struct {
	// Device is the video device index (/dev/videoN)
	Device int `json:"device" validate:"gte=0"`

	// === Resolution ===
	// The driver may pick the closest supported mode; Webcam.Size reports
	// what was actually negotiated.
	Width     int `json:"width" validate:"gte=160,lte=4096"`
	Height    int `json:"height" validate:"gte=120,lte=2160"`
	Framerate int `json:"framerate" validate:"gte=1,lte=120"`

	// Quality is the JPEG quality of captured frames (1-100)
	Quality int `json:"quality" validate:"gte=1,lte=100"`
}

// DefaultConfig returns the recommended webcam configuration.
// 640x480 keeps detection fast while leaving enough pixels for landmarks.
func DefaultConfig() Config {
	return Config{
		Device:    0,
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   85,
	}
}

// Validate checks if the config values are within valid ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("camera: invalid config: %w", err)
	}
	return nil
}
