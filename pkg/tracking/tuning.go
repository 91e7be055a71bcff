package tracking

import (
	"fmt"
	"time"
)

// TuningParams holds the real-time adjustable tracking parameters.
// These can be modified via the tuning API without restarting.
type TuningParams struct {
	// Smoothing
	Smoothing   float64 `json:"smoothing" validate:"omitempty,gt=0,lte=1"` // EMA alpha (0.15=calm, 0.5=tight)
	RawRotation *bool   `json:"raw_rotation,omitempty"`                    // Disable shortest-arc rotation

	// Detection rate
	DetectionHz float64 `json:"detection_hz" validate:"omitempty,gt=0"` // Detection frequency (1-20 Hz)

	// Perception
	ExpressionThreshold float64 `json:"expression_threshold" validate:"omitempty,gt=0,lt=1"`
	ReferenceFaceWidth  float64 `json:"reference_face_width" validate:"omitempty,gt=0"`
}

// Detection rate bounds. The upper bound matches the minimum detection interval.
const (
	MinDetectionHz = 1.0
	MaxDetectionHz = 20.0
)

// GetTuningParams returns current tuning parameters from the tracker.
func (t *Tracker) GetTuningParams() TuningParams {
	t.mu.RLock()
	defer t.mu.RUnlock()

	raw := t.config.RawRotation
	return TuningParams{
		Smoothing:           t.config.Smoothing,
		RawRotation:         &raw,
		DetectionHz:         1.0 / t.config.DetectionInterval.Seconds(),
		ExpressionThreshold: t.perception.ExpressionThreshold,
		ReferenceFaceWidth:  t.perception.ReferenceFaceWidth,
	}
}

// SetTuningParams updates tuning parameters at runtime.
// Only non-zero values are applied.
func (t *Tracker) SetTuningParams(params TuningParams) error {
	if err := validate.Struct(params); err != nil {
		return fmt.Errorf("tracking: invalid tuning params: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if params.Smoothing > 0 {
		t.config.Smoothing = params.Smoothing
	}
	if params.RawRotation != nil {
		t.config.RawRotation = *params.RawRotation
	}
	if params.ExpressionThreshold > 0 {
		t.config.ExpressionThreshold = params.ExpressionThreshold
		t.perception.ExpressionThreshold = params.ExpressionThreshold
	}
	if params.ReferenceFaceWidth > 0 {
		t.config.ReferenceFaceWidth = params.ReferenceFaceWidth
		t.perception.ReferenceFaceWidth = params.ReferenceFaceWidth
	}
	if params.DetectionHz > 0 {
		t.setDetectionHz(params.DetectionHz)
	}
	return nil
}

// setDetectionHz updates the detection rate. Caller holds t.mu.
// Valid range: 1-20 Hz (50ms to 1000ms interval)
func (t *Tracker) setDetectionHz(hz float64) {
	hz = clamp(hz, MinDetectionHz, MaxDetectionHz)

	interval := time.Duration(float64(time.Second) / hz)
	t.config.DetectionInterval = interval
	t.cadence.SetInterval(t.clock.Now(), interval)
}
