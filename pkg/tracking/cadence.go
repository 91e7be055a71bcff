package tracking

import (
	"time"

	"golang.org/x/time/rate"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Cadence enforces a minimum interval between detection attempts.
// An allowed attempt consumes the slot whether or not the detection succeeds.
type Cadence struct {
	limiter *rate.Limiter
}

// NewCadence creates a cadence allowing one attempt per interval.
func NewCadence(interval time.Duration) *Cadence {
	return &Cadence{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Allow reports whether an attempt may run at now, and records it if so.
func (c *Cadence) Allow(now time.Time) bool {
	return c.limiter.AllowN(now, 1)
}

// SetInterval changes the minimum interval from now on.
func (c *Cadence) SetInterval(now time.Time, interval time.Duration) {
	c.limiter.SetLimitAt(now, rate.Every(interval))
}

// Interval returns the current minimum interval.
func (c *Cadence) Interval() time.Duration {
	limit := c.limiter.Limit()
	if limit <= 0 || limit == rate.Inf {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}
