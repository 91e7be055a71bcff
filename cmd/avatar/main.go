// go-avatar - 2D avatar that follows your face on camera
// Runs face, landmark and expression models on webcam frames and drives a
// smoothed sprite, published to a live preview page.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-avatar/internal/config"
	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/app"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Error("❌ .env error", "err", err)
		os.Exit(1)
	}

	cfg, logOpts := parseFlags()
	log.InitWithOptions(logOpts)

	a, err := app.New(cfg)
	if err != nil {
		log.Error("❌ configuration error", "err", err)
		os.Exit(1)
	}

	if err := a.Init(); err != nil {
		log.Error("❌ initialization failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runErr := a.Run(ctx)
	if err := a.Shutdown(); err != nil {
		log.Warn("⚠️ shutdown", "err", err)
	}
	if runErr != nil {
		log.Error("❌ runtime error", "err", runErr)
		os.Exit(1)
	}
}

// parseFlags parses command line flags over env defaults and returns configuration.
func parseFlags() (app.Config, log.Options) {
	cfg := app.DefaultConfig()
	cfg.LoadEnvConfig()

	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	debugDetect := flag.Bool("debug-detect", false, "Log every detection target update")
	port := flag.String("port", cfg.Port, "Preview server port (empty disables)")
	device := flag.Int("camera", cfg.Camera.Device, "Camera device index")
	width := flag.Int("width", cfg.Camera.Width, "Requested camera width")
	height := flag.Int("height", cfg.Camera.Height, "Requested camera height")
	fps := flag.Int("fps", cfg.Camera.Framerate, "Requested camera framerate")
	models := flag.String("models", cfg.ModelsDir, "Directory with face, landmark and expression models")
	assets := flag.String("assets", cfg.AssetsDir, "Directory with avatar-{neutral,happy,surprised}.png")
	static := flag.String("static", cfg.StaticDir, "Directory with the preview page")
	preset := flag.String("preset", cfg.Preset, "Tracking preset: default, slow, responsive")
	logFile := flag.String("log-file", "", "Also write logs to this file, rotated by size")
	flag.Parse()

	cfg.Debug, cfg.DebugDetection = *debug, *debugDetect
	cfg.Port, cfg.ModelsDir, cfg.AssetsDir, cfg.StaticDir = *port, *models, *assets, *static
	cfg.Preset = *preset
	cfg.Camera.Device, cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.Framerate = *device, *width, *height, *fps

	level := config.LogLevel()
	if *debug {
		level = "debug"
	}
	return cfg, log.Options{
		Level:      level,
		File:       *logFile,
		MaxSizeMB:  20,
		MaxBackups: 3,
	}
}
