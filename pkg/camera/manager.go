package camera

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Manager holds the current camera configuration and handles updates.
type Manager struct {
	config Config
	mu     sync.RWMutex

	// Callback when config changes (for applying to the open webcam)
	OnConfigChange func(cfg Config) error
}

// NewManager creates a camera manager starting from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		config: cfg,
	}
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates and stores cfg, then applies it through OnConfigChange.
// The stored config is left unchanged when validation or the callback fails.
func (m *Manager) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.RLock()
	callback := m.OnConfigChange
	m.mu.RUnlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("camera: apply config: %w", err)
		}
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// UpdateConfig updates specific fields of the configuration.
// Accepts a map of field names to values, as decoded from a JSON body.
// A "preset" key replaces the base config before other fields apply.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	cfg := m.GetConfig()

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("camera: unknown preset: %s", presetName)
		}
		// Presets never move the camera to another device
		preset.Device = cfg.Device
		cfg = *preset
	}

	for key, value := range params {
		var target *int
		switch key {
		case "preset":
			continue
		case "device":
			target = &cfg.Device
		case "width":
			target = &cfg.Width
		case "height":
			target = &cfg.Height
		case "framerate":
			target = &cfg.Framerate
		case "quality":
			target = &cfg.Quality
		default:
			return fmt.Errorf("camera: unknown parameter: %s", key)
		}
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("camera: %s must be a number", key)
		}
		*target = v
	}

	return m.SetConfig(cfg)
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
