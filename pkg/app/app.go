package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/camera"
	"github.com/teslashibe/go-avatar/pkg/debug"
	"github.com/teslashibe/go-avatar/pkg/render"
	"github.com/teslashibe/go-avatar/pkg/tracking"
	"github.com/teslashibe/go-avatar/pkg/tracking/detection"
	"github.com/teslashibe/go-avatar/pkg/web"
	ort "github.com/yalue/onnxruntime_go"
)

// App is the avatar application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config   Config
	tracking tracking.Config

	// Collaborators, acquired in Init
	textures      *render.Textures
	canvas        *render.Canvas
	detector      detection.Detector
	webcam        *camera.Webcam
	cameraManager *camera.Manager
	tracker       *tracking.Tracker

	// Preview server
	webServer *web.Server

	// Set when Init started the onnxruntime environment
	ownsRuntime bool
}

// New creates a new avatar application with the given configuration.
func New(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debug.Enabled = cfg.Debug
	debug.Detection = cfg.DebugDetection

	trackCfg, _ := tracking.ConfigPreset(cfg.Preset)
	return &App{
		config:   cfg,
		tracking: trackCfg,
	}, nil
}

// Init acquires every collaborator: textures and renderer, detector models,
// then the camera. Any failure releases what was already acquired and is
// returned. Call this after New() and before Run().
func (a *App) Init() (err error) {
	log.Info("🎭 go-avatar starting",
		"preset", a.config.Preset,
		"display", fmt.Sprintf("%dx%d", a.config.DisplayWidth, a.config.DisplayHeight))
	if debug.Enabled {
		log.Info("🐛 debug mode enabled")
	}

	defer func() {
		if err != nil {
			a.release()
		}
	}()

	if a.config.Port != "" {
		a.webServer = web.NewServer(web.Config{Port: a.config.Port, StaticDir: a.config.StaticDir})
	}

	if err := a.initRenderer(); err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	if err := a.initDetector(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if err := a.initCamera(); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	return a.initTracker()
}

// initRenderer loads the avatar textures and creates the canvas.
func (a *App) initRenderer() error {
	textures, err := render.LoadTextures(a.config.AssetsDir)
	if err != nil {
		return err
	}
	a.textures = textures

	display := render.DefaultConfig()
	display.Width, display.Height = a.config.DisplayWidth, a.config.DisplayHeight

	var sink render.FrameSink
	if a.webServer != nil {
		sink = a.webServer
	}
	a.canvas, err = render.NewCanvas(display, textures, sink)
	if err != nil {
		return err
	}
	log.Info("🖼️ textures loaded", "dir", a.config.AssetsDir, "size", textures.Size())
	return nil
}

// initDetector checks the model files, starts onnxruntime and loads the pipeline.
func (a *App) initDetector() error {
	cfg := detection.DefaultConfig()
	cfg.ModelsDir = a.config.ModelsDir
	if err := cfg.CheckModels(); err != nil {
		return err
	}

	if !ort.IsInitialized() {
		if a.config.OnnxRuntimeLib != "" {
			ort.SetSharedLibraryPath(a.config.OnnxRuntimeLib)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("%w: %v", detection.ErrRuntimeNotInitialized, err)
		}
		a.ownsRuntime = true
	}

	pipeline, err := detection.NewPipeline(cfg)
	if err != nil {
		return err
	}
	a.detector = pipeline
	log.Info("🧠 detection models loaded", "dir", a.config.ModelsDir)
	return nil
}

// initCamera opens the webcam and exposes its settings through the manager.
func (a *App) initCamera() error {
	webcam, err := camera.Open(a.config.Camera)
	if err != nil {
		return err
	}
	a.webcam = webcam

	a.cameraManager = camera.NewManager(a.config.Camera)
	a.cameraManager.OnConfigChange = func(cfg camera.Config) error {
		if err := webcam.Apply(cfg); err != nil {
			return err
		}
		if a.webServer != nil {
			// Devices may round the request; report what was negotiated.
			size := webcam.Size()
			a.webServer.AddLog("camera", fmt.Sprintf("%dx%d @ %d fps", size.Width, size.Height, cfg.Framerate))
		}
		return nil
	}
	return nil
}

// initTracker creates the tracking session over the acquired collaborators.
func (a *App) initTracker() error {
	opts := []tracking.Option{}
	if a.webServer != nil {
		opts = append(opts, tracking.WithStateUpdater(a.webServer))
	}

	tracker, err := tracking.New(a.tracking, a.webcam, a.detector, a.canvas, opts...)
	if err != nil {
		return fmt.Errorf("tracker: %w", err)
	}
	a.tracker = tracker

	if a.webServer != nil {
		a.webServer.SetTracker(tracker)
		a.webServer.SetCamera(a.cameraManager)
	}
	return nil
}

// Run starts the preview server and drives the tracker.
// Blocks until ctx is cancelled or Shutdown is called.
func (a *App) Run(ctx context.Context) error {
	if a.tracker == nil {
		return errors.New("app: Run called before Init")
	}

	if a.webServer != nil {
		if err := a.webServer.StartAsync(ctx); err != nil {
			return fmt.Errorf("app: preview server: %w", err)
		}
		a.webServer.AddLog("info", "avatar started")
	}

	log.Info("🎭 tracking face, Ctrl+C to exit", "session", a.tracker.ID())
	return a.tracker.Run(ctx)
}

// Shutdown stops the tracker, which releases the camera, renderer and
// detector, then the preview server and the onnxruntime environment.
func (a *App) Shutdown() error {
	log.Info("👋 goodbye")
	return a.release()
}

// release frees whatever has been acquired so far.
func (a *App) release() error {
	var errs []error

	if a.tracker != nil {
		errs = append(errs, a.tracker.Stop())
	} else {
		if a.webcam != nil {
			errs = append(errs, a.webcam.Stop())
		}
		if a.canvas != nil {
			errs = append(errs, a.canvas.Destroy())
		}
		if a.detector != nil {
			errs = append(errs, a.detector.Close())
		}
	}
	a.webcam, a.canvas, a.detector = nil, nil, nil

	if a.webServer != nil {
		errs = append(errs, a.webServer.Shutdown())
	}
	if a.ownsRuntime {
		errs = append(errs, ort.DestroyEnvironment())
		a.ownsRuntime = false
	}
	return errors.Join(errs...)
}
