package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCadence_Allow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCadence(50 * time.Millisecond)

	assert.True(t, c.Allow(now), "first attempt is always allowed")
	assert.False(t, c.Allow(now.Add(10*time.Millisecond)))
	assert.False(t, c.Allow(now.Add(49*time.Millisecond)))
	assert.True(t, c.Allow(now.Add(50*time.Millisecond)))
	assert.False(t, c.Allow(now.Add(60*time.Millisecond)))
	assert.True(t, c.Allow(now.Add(200*time.Millisecond)))

	// Idle time does not bank extra attempts
	assert.False(t, c.Allow(now.Add(210*time.Millisecond)))
}

func TestCadence_SetInterval(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCadence(50 * time.Millisecond)
	require.True(t, c.Allow(now))

	c.SetInterval(now, 500*time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, c.Interval())
	assert.False(t, c.Allow(now.Add(100*time.Millisecond)))
	assert.True(t, c.Allow(now.Add(500*time.Millisecond)))
}

func TestTickerScheduler(t *testing.T) {
	s := NewTickerScheduler(1000)
	defer s.Stop()

	require.NoError(t, s.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := NewTickerScheduler(1)
	defer slow.Stop()
	assert.ErrorIs(t, slow.Wait(ctx), context.Canceled)
}
