// Package web provides the live preview server for the avatar: rendered
// frames, tracker status, logs, and the tuning and camera APIs.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/camera"
	"github.com/teslashibe/go-avatar/pkg/hub"
	"github.com/teslashibe/go-avatar/pkg/tracking"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxLogs is how many log entries are kept for /api/logs and replayed to new
// log stream clients
const maxLogs = 500

// LogEntry represents a log line for the preview page
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, expression, camera, error
	Message string `json:"message"`
}

// TrackerControl is the part of the tracker the API exposes
type TrackerControl interface {
	Status() tracking.Status
	GetTuningParams() tracking.TuningParams
	SetTuningParams(params tracking.TuningParams) error
}

// Config holds the server settings
type Config struct {
	Port      string
	StaticDir string // Served at /, empty disables
}

// Server is the preview server
type Server struct {
	app    *fiber.App
	config Config

	// Last status pushed by the tracker
	status   tracking.Status
	statusMu sync.RWMutex

	// Log buffer (last maxLogs entries)
	logs   []LogEntry
	logsMu sync.RWMutex

	// Last rendered frame
	frame   []byte
	frameMu sync.RWMutex

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	logHub    *hub.Hub
	frameHub  *hub.Hub

	tracker TrackerControl
	camera  *camera.Manager
	ctlMu   sync.RWMutex

	// Lifecycle, guarded by lifeMu
	lifeMu   sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	closed   bool
}

// NewServer creates a new preview server
func NewServer(cfg Config) *Server {
	s := &Server{
		config:    cfg,
		logs:      make([]LogEntry, 0, maxLogs),
		statusHub: hub.New("status"),
		logHub:    hub.New("logs"),
		frameHub:  hub.New("frames"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Avatar Preview",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	// CORS for local development
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/tuning", s.handleGetTuning)
	api.Put("/tuning", s.handleSetTuning)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleSetCamera)
	api.Get("/camera/presets", s.handleCameraPresets)
	api.Get("/logs", s.handleGetLogs)
	api.Get("/frame", s.handleFrame)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))

	s.app = app
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// SetTracker attaches the tracker backing /api/status and /api/tuning
func (s *Server) SetTracker(t TrackerControl) {
	s.ctlMu.Lock()
	s.tracker = t
	s.ctlMu.Unlock()
}

// SetCamera attaches the camera manager backing /api/camera
func (s *Server) SetCamera(m *camera.Manager) {
	s.ctlMu.Lock()
	s.camera = m
	s.ctlMu.Unlock()
}

func (s *Server) controls() (TrackerControl, *camera.Manager) {
	s.ctlMu.RLock()
	defer s.ctlMu.RUnlock()
	return s.tracker, s.camera
}

// ErrServerClosed is returned by Start after Shutdown.
var ErrServerClosed = errors.New("web: server closed")

// Start binds the port, starts the hubs and blocks serving HTTP until Shutdown
func (s *Server) Start(ctx context.Context) error {
	ctx, err := s.listen(ctx)
	if err != nil {
		return err
	}
	return s.serve(ctx)
}

// StartAsync binds the port, then serves in a goroutine. A Shutdown that
// races with the goroutine still stops the server.
func (s *Server) StartAsync(ctx context.Context) error {
	ctx, err := s.listen(ctx)
	if err != nil {
		return err
	}
	go func() {
		if err := s.serve(ctx); err != nil {
			log.Error("preview server stopped", "err", err)
		}
	}()
	return nil
}

func (s *Server) listen(ctx context.Context) (context.Context, error) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.closed {
		return nil, ErrServerClosed
	}
	if s.listener != nil {
		return nil, errors.New("web: server already started")
	}

	ln, err := net.Listen("tcp", ":"+s.config.Port)
	if err != nil {
		return nil, fmt.Errorf("web: listen: %w", err)
	}
	s.listener = ln
	ctx, s.cancel = context.WithCancel(ctx)
	return ctx, nil
}

func (s *Server) serve(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.logHub.Run(ctx)
	go s.frameHub.Run(ctx)

	ln := s.listener
	log.Info("🌐 preview server", "url", "http://"+ln.Addr().String())
	err := s.app.Listener(ln)

	s.lifeMu.Lock()
	closed := s.closed
	s.lifeMu.Unlock()
	if closed {
		return nil
	}
	return err
}

// Addr returns the bound address, or "" before Start
func (s *Server) Addr() string {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the hubs and the HTTP server. After Shutdown, Start fails
// with ErrServerClosed.
func (s *Server) Shutdown() error {
	s.lifeMu.Lock()
	if s.closed {
		s.lifeMu.Unlock()
		return nil
	}
	s.closed = true
	ln, cancel := s.listener, s.cancel
	s.lifeMu.Unlock()

	if ln == nil {
		return nil
	}
	cancel()
	err := s.app.ShutdownWithTimeout(5 * time.Second)
	// Serving may not have begun yet; closing the listener makes it return at once.
	_ = ln.Close()
	return err
}

// UpdateAvatar stores the tracker status and broadcasts it
func (s *Server) UpdateAvatar(status tracking.Status) {
	s.statusMu.Lock()
	s.status = status
	s.statusMu.Unlock()

	if err := s.statusHub.BroadcastJSON(status); err != nil {
		log.Debug("status broadcast failed", "err", err)
	}
}

// AddLog adds a log entry and broadcasts it
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	if err := s.logHub.BroadcastJSON(entry); err != nil {
		log.Debug("log broadcast failed", "err", err)
	}
}

// WriteFrame stores the rendered frame and sends it to frame stream clients
func (s *Server) WriteFrame(jpeg []byte) {
	s.frameMu.Lock()
	s.frame = jpeg
	s.frameMu.Unlock()

	s.frameHub.BroadcastBinary(jpeg)
}

// Logs returns a copy of the buffered log entries
func (s *Server) Logs() []LogEntry {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return append([]LogEntry(nil), s.logs...)
}

// errUnavailable is returned by handlers whose backing component is not attached
var errUnavailable = errors.New("not available")
