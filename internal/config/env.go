// Package config provides environment helpers for go-avatar commands.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Default locations and ports.
const (
	DefaultPort      = "8090"
	DefaultModelsDir = "models"
	DefaultAssetsDir = "assets"
	DefaultCamera    = 0
)

// LoadDotEnv loads variables from the given .env files (default ".env").
// Variables already present in the environment win. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// String returns the env var key or def if unset.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the env var key parsed as int, or def if unset or invalid.
func Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Port returns the preview server port from AVATAR_PORT, or def.
func Port(def string) string {
	return String("AVATAR_PORT", def)
}

// CameraDevice returns the capture device index from AVATAR_CAMERA, or def.
func CameraDevice(def int) int {
	return Int("AVATAR_CAMERA", def)
}

// ModelsDir returns the model directory from AVATAR_MODELS_DIR, or def.
func ModelsDir(def string) string {
	return String("AVATAR_MODELS_DIR", def)
}

// AssetsDir returns the texture directory from AVATAR_ASSETS_DIR, or def.
func AssetsDir(def string) string {
	return String("AVATAR_ASSETS_DIR", def)
}

// LogLevel returns LOG_LEVEL or "info".
func LogLevel() string {
	return String("LOG_LEVEL", "info")
}

// OnnxRuntimeLib returns the onnxruntime shared library path from ONNXRUNTIME_LIB, or def.
func OnnxRuntimeLib(def string) string {
	return String("ONNXRUNTIME_LIB", def)
}
