// Package tracking drives a 2D avatar sprite from camera face detections.
//
// A Tracker owns one session: the target pose and expression set by the most
// recent successful detection, and the rendered pose that follows it with
// exponential smoothing. Each iteration runs a rate-limited detection phase
// followed by an unconditional render phase.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/debug"
	"github.com/teslashibe/go-avatar/pkg/tracking/detection"
)

// VideoSource provides live camera frames
type VideoSource interface {
	Frame() (detection.Frame, error)

	// Stop releases the capture device
	Stop() error
}

// Sprite is everything the renderer needs to draw one frame.
type Sprite struct {
	Pose       Pose
	Expression Expression
	Preview    *detection.Frame // Last captured camera frame, may be nil
}

// Renderer draws the avatar sprite onto the display surface
type Renderer interface {
	// Size returns the display surface size in pixels
	Size() detection.Size

	Draw(sprite Sprite) error

	// Destroy releases textures and surfaces
	Destroy() error
}

// StateUpdater receives tracker status for dashboards
type StateUpdater interface {
	UpdateAvatar(status Status)
	AddLog(logType, message string)
}

// Stats counts loop activity since the tracker was created.
type Stats struct {
	Frames            uint64 `json:"frames"`
	DetectionAttempts uint64 `json:"detection_attempts"`
	Detections        uint64 `json:"detections"`
	Misses            uint64 `json:"misses"`
	Errors            uint64 `json:"errors"`
	RenderErrors      uint64 `json:"render_errors"`
	DroppedResults    uint64 `json:"dropped_results"`
}

// Status is a snapshot of the tracker state.
type Status struct {
	ID            string         `json:"id"`
	Running       bool           `json:"running"`
	Target        Pose           `json:"target"`
	Rendered      Pose           `json:"rendered"`
	Expression    Expression     `json:"expression"`
	Display       detection.Size `json:"display"`
	LastDetection time.Time      `json:"last_detection"`
	Stats         Stats          `json:"stats"`
}

// Option customizes a Tracker
type Option func(*Tracker)

// WithClock replaces the wall clock used for detection cadence
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithScheduler replaces the frame scheduler used by Run
func WithScheduler(s Scheduler) Option {
	return func(t *Tracker) { t.scheduler = s }
}

// WithStateUpdater attaches a dashboard state updater
func WithStateUpdater(s StateUpdater) Option {
	return func(t *Tracker) { t.state = s }
}

// Tracker is a single avatar tracking session
type Tracker struct {
	id         string
	config     Config
	video      VideoSource
	detector   detection.Detector
	renderer   Renderer
	scheduler  Scheduler
	clock      Clock
	state      StateUpdater
	cadence    *Cadence
	perception *Perception

	// Session state, guarded by mu
	mu            sync.RWMutex
	target        Pose
	rendered      Pose
	expression    Expression
	preview       *detection.Frame
	lastDetection time.Time
	stats         Stats

	// Lifecycle
	alive    atomic.Bool
	lifeMu   sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// New creates a tracker. All collaborators must already be initialized; the
// sprite starts at the display center with no rotation and unit scale.
func New(config Config, video VideoSource, detector detection.Detector, renderer Renderer, opts ...Option) (*Tracker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if video == nil || detector == nil || renderer == nil {
		return nil, fmt.Errorf("%w: video, detector and renderer are required", ErrMissingDependency)
	}

	t := &Tracker{
		id:         uuid.New().String(),
		config:     config,
		video:      video,
		detector:   detector,
		renderer:   renderer,
		clock:      systemClock{},
		cadence:    NewCadence(config.DetectionInterval),
		perception: NewPerception(config),
	}
	for _, opt := range opts {
		opt(t)
	}

	display := renderer.Size()
	t.target = Pose{
		X:     float64(display.Width) / 2,
		Y:     float64(display.Height) / 2,
		Scale: 1,
	}
	t.rendered = t.target
	t.alive.Store(true)

	return t, nil
}

// ID returns the session identifier
func (t *Tracker) ID() string {
	return t.id
}

// Alive reports whether the tracker has not been torn down
func (t *Tracker) Alive() bool {
	return t.alive.Load()
}

// Status returns a snapshot of the current state
func (t *Tracker) Status() Status {
	t.lifeMu.Lock()
	running := t.running
	t.lifeMu.Unlock()

	t.mu.RLock()
	defer t.mu.RUnlock()
	return Status{
		ID:            t.id,
		Running:       running && t.alive.Load(),
		Target:        t.target,
		Rendered:      t.rendered,
		Expression:    t.expression,
		Display:       t.renderer.Size(),
		LastDetection: t.lastDetection,
		Stats:         t.stats,
	}
}

// Run drives the loop until ctx is done or Stop is called. Each iteration
// waits for the next frame slot only after its own body has finished, so at
// most one iteration is ever in flight.
func (t *Tracker) Run(ctx context.Context) error {
	t.lifeMu.Lock()
	if !t.alive.Load() {
		t.lifeMu.Unlock()
		return ErrStopped
	}
	if t.running {
		t.lifeMu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	t.running = true
	t.cancel = cancel
	t.done = make(chan struct{})
	done := t.done
	t.lifeMu.Unlock()

	defer func() {
		t.lifeMu.Lock()
		t.running = false
		t.cancel = nil
		t.lifeMu.Unlock()
		close(done)
	}()
	defer cancel()

	scheduler := t.scheduler
	if scheduler == nil {
		ticker := NewTickerScheduler(t.config.FrameRate)
		defer ticker.Stop()
		scheduler = ticker
	}

	display := t.renderer.Size()
	log.Info("avatar tracker started",
		"session", t.id,
		"display", fmt.Sprintf("%dx%d", display.Width, display.Height),
		"fps", t.config.FrameRate,
		"detection_interval", t.config.DetectionInterval,
		"smoothing", t.config.Smoothing)

	lastStats := t.clock.Now()
	for t.alive.Load() {
		t.Step(ctx)

		if t.config.StatsInterval > 0 && t.clock.Now().Sub(lastStats) >= t.config.StatsInterval {
			t.logStats()
			lastStats = t.clock.Now()
		}

		if !t.alive.Load() {
			break
		}
		if err := scheduler.Wait(ctx); err != nil {
			break
		}
	}

	log.Info("avatar tracker stopped", "session", t.id)
	return nil
}

// Step runs one iteration: a detection attempt when the cadence allows it,
// then one render. It is a no-op after Stop. Step must not be called while
// Run is active.
func (t *Tracker) Step(ctx context.Context) {
	if !t.alive.Load() {
		return
	}
	t.detectPhase(ctx)
	if !t.alive.Load() {
		return
	}
	t.renderPhase()
}

// detectPhase captures a frame and, on a usable detection, replaces the
// target pose and expression together.
func (t *Tracker) detectPhase(ctx context.Context) {
	if !t.cadence.Allow(t.clock.Now()) {
		return
	}

	t.mu.Lock()
	t.stats.DetectionAttempts++
	t.mu.Unlock()

	face, frame, err := t.detect(ctx)

	if !t.alive.Load() {
		// Torn down while the detector was busy
		t.count(func(s *Stats) { s.DroppedResults++ })
		return
	}

	if err != nil {
		t.count(func(s *Stats) { s.Errors++ })
		debug.Log("detection failed", "err", err)
		return
	}
	if face == nil {
		t.count(func(s *Stats) { s.Misses++ })
		return
	}

	t.mu.RLock()
	perception := *t.perception
	t.mu.RUnlock()

	target, ok := perception.FaceToTarget(*face, frame.Size(), t.renderer.Size())
	if !ok {
		t.count(func(s *Stats) { s.Misses++ })
		debug.Log("detection unusable", "landmarks", len(face.Landmarks), "box", face.Box)
		return
	}

	t.mu.Lock()
	previous := t.expression
	t.target = target.Pose
	t.expression = target.Expression
	t.lastDetection = t.clock.Now()
	t.stats.Detections++
	t.mu.Unlock()

	debug.DetectLog("target updated",
		"x", target.Pose.X, "y", target.Pose.Y,
		"rotation_deg", Degrees(target.Pose.Rotation),
		"scale", target.Pose.Scale,
		"expression", target.Expression)

	if t.state != nil {
		t.state.UpdateAvatar(t.Status())
		if previous != target.Expression {
			t.state.AddLog("expression", fmt.Sprintf("%s → %s", previous, target.Expression))
		}
	}
}

// detect captures and runs the detector, converting panics into errors so a
// single bad frame cannot stop the loop.
func (t *Tracker) detect(ctx context.Context) (face *detection.Face, frame detection.Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			face = nil
			err = fmt.Errorf("%w: %v", ErrDetectorPanic, r)
		}
	}()

	frame, err = t.video.Frame()
	if err != nil {
		return nil, frame, fmt.Errorf("capture frame: %w", err)
	}

	t.mu.Lock()
	t.preview = &frame
	t.mu.Unlock()

	face, err = t.detector.Detect(ctx, frame)
	return face, frame, err
}

// renderPhase smooths the rendered pose toward the target and draws it.
func (t *Tracker) renderPhase() {
	t.mu.Lock()
	t.rendered = Smooth(t.rendered, t.target, t.config.Smoothing, t.config.RawRotation)
	sprite := Sprite{
		Pose:       t.rendered,
		Expression: t.expression,
		Preview:    t.preview,
	}
	t.stats.Frames++
	t.mu.Unlock()

	if err := t.renderer.Draw(sprite); err != nil {
		t.count(func(s *Stats) { s.RenderErrors++ })
		debug.Log("render failed", "err", err)
	}
}

func (t *Tracker) count(update func(*Stats)) {
	t.mu.Lock()
	update(&t.stats)
	t.mu.Unlock()
}

func (t *Tracker) logStats() {
	t.mu.RLock()
	s := t.stats
	t.mu.RUnlock()
	log.Info("avatar tracker stats",
		"frames", s.Frames,
		"attempts", s.DetectionAttempts,
		"detections", s.Detections,
		"misses", s.Misses,
		"errors", s.Errors,
		"render_errors", s.RenderErrors)
}

// Stop tears the session down: the loop stops rescheduling, any in-flight
// iteration finishes with its detection result discarded, and then the
// camera, renderer and detector are released. Stop is safe to call more than
// once; later calls return the first result.
func (t *Tracker) Stop() error {
	t.stopOnce.Do(func() {
		t.lifeMu.Lock()
		t.alive.Store(false)
		cancel, done := t.cancel, t.done
		t.lifeMu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}

		var errs []error
		if err := t.video.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop camera: %w", err))
		}
		if err := t.renderer.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy renderer: %w", err))
		}
		if err := t.detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
		t.stopErr = errors.Join(errs...)

		t.lifeMu.Lock()
		t.running = false
		t.lifeMu.Unlock()
	})
	return t.stopErr
}
