package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	Preset720p    = "720p"
	Preset480p    = "480p"
	PresetLow     = "low"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		Preset720p:    HD720Config(),
		Preset480p:    SD480Config(),
		PresetLow:     LowConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		Preset720p,
		Preset480p,
		PresetLow,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	presets := Presets()
	if cfg, ok := presets[name]; ok {
		return &cfg
	}
	return nil
}

// HD720Config returns 720p HD configuration.
// Sharper landmarks, higher detection cost.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// SD480Config returns 640x480 configuration.
func SD480Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	return cfg
}

// LowConfig returns a configuration for slow machines.
func LowConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	cfg.Framerate = 15
	cfg.Quality = 70
	return cfg
}
