package camera

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	for _, name := range PresetNames() {
		preset := GetPreset(name)
		require.NotNil(t, preset, name)
		assert.NoError(t, preset.Validate(), name)
	}
	assert.Nil(t, GetPreset("4k"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative device", func(c *Config) { c.Device = -1 }},
		{"tiny width", func(c *Config) { c.Width = 100 }},
		{"huge height", func(c *Config) { c.Height = 5000 }},
		{"zero framerate", func(c *Config) { c.Framerate = 0 }},
		{"quality above 100", func(c *Config) { c.Quality = 101 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestManager_UpdateConfig(t *testing.T) {
	m := NewManager(DefaultConfig())

	var applied []Config
	m.OnConfigChange = func(cfg Config) error {
		applied = append(applied, cfg)
		return nil
	}

	require.NoError(t, m.UpdateConfig(map[string]interface{}{"quality": float64(60)}))
	assert.Equal(t, 60, m.GetConfig().Quality)
	assert.Equal(t, 640, m.GetConfig().Width)

	require.NoError(t, m.UpdateConfig(map[string]interface{}{"preset": "720p", "framerate": json.Number("24")}))
	cfg := m.GetConfig()
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
	assert.Equal(t, 24, cfg.Framerate)
	assert.Equal(t, 85, cfg.Quality, "preset resets fields not given")

	assert.Len(t, applied, 2)
}

func TestManager_PresetKeepsDevice(t *testing.T) {
	start := DefaultConfig()
	start.Device = 2
	m := NewManager(start)

	require.NoError(t, m.UpdateConfig(map[string]interface{}{"preset": PresetLow}))
	assert.Equal(t, 2, m.GetConfig().Device)
	assert.Equal(t, 320, m.GetConfig().Width)
}

func TestManager_RejectsInvalid(t *testing.T) {
	m := NewManager(DefaultConfig())
	before := m.GetConfig()

	assert.Error(t, m.UpdateConfig(map[string]interface{}{"width": float64(10)}))
	assert.Error(t, m.UpdateConfig(map[string]interface{}{"preset": "8k"}))
	assert.Error(t, m.UpdateConfig(map[string]interface{}{"zoom": float64(2)}))
	assert.Error(t, m.UpdateConfig(map[string]interface{}{"width": "wide"}))

	assert.Equal(t, before, m.GetConfig())
}

func TestManager_CallbackFailureKeepsConfig(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.OnConfigChange = func(Config) error { return errors.New("device busy") }

	err := m.SetConfig(HD720Config())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
	assert.Equal(t, DefaultConfig(), m.GetConfig())
}
