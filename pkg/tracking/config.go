package tracking

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds all tunable parameters for avatar tracking
type Config struct {
	// Timing
	DetectionInterval time.Duration `validate:"gte=50ms"`      // Minimum time between detector calls
	FrameRate         int           `validate:"gte=1,lte=240"` // Render iterations per second

	// Smoothing
	Smoothing   float64 `validate:"gt=0,lte=1"` // Exponential smoothing factor per iteration
	RawRotation bool    // Interpolate raw angles instead of taking the short way around

	// Perception
	ExpressionThreshold float64 `validate:"gt=0,lt=1"` // Score above which happy/surprised win
	ReferenceFaceWidth  float64 `validate:"gt=0"`      // Face width (display px) that renders at 1.0x

	// Logging
	StatsInterval time.Duration // How often to log loop statistics (0 disables)
}

// DefaultConfig returns the recommended configuration
func DefaultConfig() Config {
	return Config{
		DetectionInterval: 50 * time.Millisecond, // 20 detections per second at most
		FrameRate:         30,

		Smoothing: 0.3,

		ExpressionThreshold: 0.7,
		ReferenceFaceWidth:  600,

		StatsInterval: 30 * time.Second,
	}
}

// SlowConfig returns a configuration for calmer, smoother motion
func SlowConfig() Config {
	cfg := DefaultConfig()
	cfg.DetectionInterval = 100 * time.Millisecond
	cfg.Smoothing = 0.15
	return cfg
}

// ResponsiveConfig returns a configuration that follows the face tightly
func ResponsiveConfig() Config {
	cfg := DefaultConfig()
	cfg.FrameRate = 60
	cfg.Smoothing = 0.5
	return cfg
}

// ConfigPreset returns a named preset, or false if the name is unknown.
func ConfigPreset(name string) (Config, bool) {
	switch name {
	case "", "default":
		return DefaultConfig(), true
	case "slow":
		return SlowConfig(), true
	case "responsive":
		return ResponsiveConfig(), true
	}
	return Config{}, false
}

// Validate checks the config ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("tracking: invalid config: %w", err)
	}
	return nil
}
