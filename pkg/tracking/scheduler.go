package tracking

import (
	"context"
	"time"
)

// Scheduler hands out frame slots. Wait returns once the next frame may be
// drawn, or with ctx's error when the loop is being torn down.
type Scheduler interface {
	Wait(ctx context.Context) error
}

// TickerScheduler paces frames with a time.Ticker. A slow iteration skips
// missed ticks instead of bursting to catch up.
type TickerScheduler struct {
	ticker *time.Ticker
}

// NewTickerScheduler creates a scheduler running at fps frames per second.
func NewTickerScheduler(fps int) *TickerScheduler {
	if fps <= 0 {
		fps = DefaultConfig().FrameRate
	}
	return &TickerScheduler{ticker: time.NewTicker(time.Second / time.Duration(fps))}
}

// Wait blocks until the next tick.
func (s *TickerScheduler) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ticker.C:
		return nil
	}
}

// Stop releases the ticker.
func (s *TickerScheduler) Stop() {
	s.ticker.Stop()
}
