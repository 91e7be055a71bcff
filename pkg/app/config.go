// Package app wires the camera, detector, renderer, tracker and preview
// server into one runnable avatar application.
package app

import (
	"fmt"

	"github.com/teslashibe/go-avatar/internal/config"
	"github.com/teslashibe/go-avatar/pkg/camera"
	"github.com/teslashibe/go-avatar/pkg/render"
	"github.com/teslashibe/go-avatar/pkg/tracking"
)

// Config holds all configuration for the avatar application.
// Flag parsing is done in cmd/avatar/main.go; this struct is data only.
type Config struct {
	// Debug enables verbose debug logging.
	Debug bool

	// DebugDetection logs every target update.
	DebugDetection bool

	// Port is the preview server port. Empty disables the server.
	Port string

	// StaticDir holds the preview page served at /.
	StaticDir string

	// ModelsDir holds the face, landmark and expression models.
	ModelsDir string

	// AssetsDir holds the avatar textures.
	AssetsDir string

	// OnnxRuntimeLib is the onnxruntime shared library. Empty uses the
	// platform default search path.
	OnnxRuntimeLib string

	// Preset names the tracking preset: default, slow or responsive.
	Preset string

	// Camera capture settings.
	Camera camera.Config

	// Display surface size.
	DisplayWidth  int
	DisplayHeight int
}

// DefaultConfig returns sensible defaults for the avatar application.
func DefaultConfig() Config {
	display := render.DefaultConfig()
	return Config{
		Port:          config.DefaultPort,
		StaticDir:     "web",
		ModelsDir:     config.DefaultModelsDir,
		AssetsDir:     config.DefaultAssetsDir,
		Preset:        "default",
		Camera:        camera.DefaultConfig(),
		DisplayWidth:  display.Width,
		DisplayHeight: display.Height,
	}
}

// LoadEnvConfig applies environment variables. Call it before flag parsing
// so explicit flags win.
func (c *Config) LoadEnvConfig() {
	c.Port = config.Port(c.Port)
	c.ModelsDir = config.ModelsDir(c.ModelsDir)
	c.AssetsDir = config.AssetsDir(c.AssetsDir)
	c.Camera.Device = config.CameraDevice(c.Camera.Device)
	c.OnnxRuntimeLib = config.OnnxRuntimeLib(c.OnnxRuntimeLib)
}

// Validate checks that the configuration can start.
func (c *Config) Validate() error {
	if _, ok := tracking.ConfigPreset(c.Preset); !ok {
		return &ConfigError{Field: "Preset", Message: fmt.Sprintf("unknown tracking preset %q (default, slow, responsive)", c.Preset)}
	}
	if c.DisplayWidth <= 0 || c.DisplayHeight <= 0 {
		return &ConfigError{Field: "Display", Message: fmt.Sprintf("invalid display size %dx%d", c.DisplayWidth, c.DisplayHeight)}
	}
	if c.ModelsDir == "" {
		return &ConfigError{Field: "ModelsDir", Message: "models directory is required"}
	}
	if c.AssetsDir == "" {
		return &ConfigError{Field: "AssetsDir", Message: "assets directory is required"}
	}
	if err := c.Camera.Validate(); err != nil {
		return &ConfigError{Field: "Camera", Message: err.Error()}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
