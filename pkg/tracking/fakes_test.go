package tracking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-avatar/pkg/tracking/detection"
)

var (
	displaySize = detection.Size{Width: 1280, Height: 720}
	errCapture  = errors.New("capture failed")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeVideo struct {
	size    detection.Size
	frames  atomic.Int64
	stopped atomic.Bool
	err     error
}

func newFakeVideo(size detection.Size) *fakeVideo {
	return &fakeVideo{size: size}
}

func (v *fakeVideo) Frame() (detection.Frame, error) {
	if v.stopped.Load() {
		return detection.Frame{}, errors.New("video stopped")
	}
	if v.err != nil {
		return detection.Frame{}, v.err
	}
	v.frames.Add(1)
	return detection.Frame{JPEG: []byte{0xff, 0xd8}, Width: v.size.Width, Height: v.size.Height}, nil
}

func (v *fakeVideo) Stop() error {
	v.stopped.Store(true)
	return nil
}

type fakeDetector struct {
	mu     sync.Mutex
	calls  int
	result func(call int) (*detection.Face, error)
	closed bool
	hook   func()
}

func (d *fakeDetector) Detect(ctx context.Context, frame detection.Frame) (*detection.Face, error) {
	d.mu.Lock()
	d.calls++
	call := d.calls
	result, hook := d.result, d.hook
	d.mu.Unlock()

	if hook != nil {
		hook()
	}
	if result == nil {
		return nil, nil
	}
	return result(call)
}

func (d *fakeDetector) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDetector) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// always returns the same face on every call
func (d *fakeDetector) always(face *detection.Face) {
	d.mu.Lock()
	d.result = func(int) (*detection.Face, error) {
		if face == nil {
			return nil, nil
		}
		f := *face
		return &f, nil
	}
	d.mu.Unlock()
}

type fakeRenderer struct {
	mu                sync.Mutex
	size              detection.Size
	sprites           []Sprite
	destroyed         bool
	drawsAfterDestroy int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{size: displaySize}
}

func (r *fakeRenderer) Size() detection.Size { return r.size }

func (r *fakeRenderer) Draw(s Sprite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		r.drawsAfterDestroy++
		return errors.New("renderer destroyed")
	}
	r.sprites = append(r.sprites, s)
	return nil
}

func (r *fakeRenderer) Destroy() error {
	r.mu.Lock()
	r.destroyed = true
	r.mu.Unlock()
	return nil
}

func (r *fakeRenderer) Last() Sprite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sprites[len(r.sprites)-1]
}

func (r *fakeRenderer) Draws() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sprites)
}

func (r *fakeRenderer) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

// blockingScheduler lets limit iterations through, then blocks until ctx is done.
type blockingScheduler struct {
	limit int64
	waits atomic.Int64
}

func (s *blockingScheduler) Wait(ctx context.Context) error {
	if s.waits.Add(1) < s.limit {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

// faceWith builds a full 68-landmark record with the given box, jaw extremes and scores.
func faceWith(box detection.Box, left, right detection.Point, happy, surprised float64) *detection.Face {
	lm := make([]detection.Point, detection.NumLandmarks)
	lm[detection.JawLeft] = left
	lm[detection.JawRight] = right
	return &detection.Face{
		Box:       box,
		Landmarks: lm,
		Expressions: detection.Expressions{
			detection.LabelHappy:     happy,
			detection.LabelSurprised: surprised,
		},
		Confidence: 0.9,
	}
}

type harness struct {
	tracker  *Tracker
	video    *fakeVideo
	detector *fakeDetector
	renderer *fakeRenderer
	clock    *fakeClock
}

func newHarness(cfg Config, opts ...Option) (*harness, error) {
	h := &harness{
		video:    newFakeVideo(displaySize),
		detector: &fakeDetector{},
		renderer: newFakeRenderer(),
		clock:    newFakeClock(),
	}
	opts = append([]Option{WithClock(h.clock)}, opts...)
	tr, err := New(cfg, h.video, h.detector, h.renderer, opts...)
	if err != nil {
		return nil, err
	}
	h.tracker = tr
	return h, nil
}

// step advances the clock past the detection interval and runs one iteration.
func (h *harness) step() {
	h.clock.Advance(h.tracker.config.DetectionInterval)
	h.tracker.Step(context.Background())
}
