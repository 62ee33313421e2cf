package camera

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("default config invalid: %v", errs)
	}
	if cfg.Width != 640 || cfg.Height != 480 || cfg.FacingMode != FacingUser {
		t.Errorf("unexpected default: %+v", cfg)
	}
}

func TestPresetsAreValid(t *testing.T) {
	for _, name := range PresetNames() {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Fatalf("preset %q missing", name)
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			t.Errorf("preset %q invalid: %v", name, errs)
		}
	}
	if GetPreset("nope") != nil {
		t.Error("unknown preset should be nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errs   int
	}{
		{"ok", func(c *Config) {}, 0},
		{"bad facing", func(c *Config) { c.FacingMode = "sideways" }, 1},
		{"tiny", func(c *Config) { c.Width, c.Height = 10, 10 }, 2},
		{"no fps", func(c *Config) { c.Framerate = 0 }, 1},
		{"bad index", func(c *Config) { c.DeviceIndex = -2 }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if got := len(cfg.Validate()); got != tt.errs {
				t.Errorf("got %d errors, want %d: %v", got, tt.errs, cfg.Validate())
			}
		})
	}
}

func TestIndex(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{"user", Config{FacingMode: FacingUser, DeviceIndex: -1}, 0},
		{"environment", Config{FacingMode: FacingEnvironment, DeviceIndex: -1}, 1},
		{"explicit wins", Config{FacingMode: FacingEnvironment, DeviceIndex: 3}, 3},
		{"empty facing", Config{DeviceIndex: -1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Index(); got != tt.want {
				t.Errorf("Index() = %d, want %d", got, tt.want)
			}
		})
	}
}
