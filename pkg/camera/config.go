// Package camera describes the constraints requested when opening a video
// capture device.
package camera

// Facing modes. A device without a matching camera falls back to whatever
// it has.
const (
	FacingUser        = "user"
	FacingEnvironment = "environment"
)

// Config holds the capture constraints. Width, Height and Framerate are
// ideals: the device may deliver something else.
type Config struct {
	FacingMode string `json:"facing_mode"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Framerate  int    `json:"framerate"`

	// DeviceIndex selects a device directly. -1 picks one from FacingMode.
	DeviceIndex int `json:"device_index"`
}

// Limits accepted by Validate.
const (
	MinWidth     = 160
	MaxWidth     = 3840
	MinHeight    = 120
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns the front-facing 640x480 constraints used for hand
// tracking.
func DefaultConfig() Config {
	return Config{
		FacingMode:  FacingUser,
		Width:       640,
		Height:      480,
		Framerate:   30,
		DeviceIndex: -1,
	}
}

// Index returns the device index to open: DeviceIndex when set, otherwise
// 0 for the user-facing camera and 1 for the environment-facing one.
func (c Config) Index() int {
	if c.DeviceIndex >= 0 {
		return c.DeviceIndex
	}
	if c.FacingMode == FacingEnvironment {
		return 1
	}
	return 0
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errs []string

	if c.FacingMode != "" && c.FacingMode != FacingUser && c.FacingMode != FacingEnvironment {
		errs = append(errs, "facing_mode must be user or environment")
	}
	if c.Width < MinWidth || c.Width > MaxWidth {
		errs = append(errs, "width must be between 160 and 3840")
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errs = append(errs, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errs = append(errs, "framerate must be between 1 and 120")
	}
	if c.DeviceIndex < -1 {
		errs = append(errs, "device_index must be -1 (auto) or a device number")
	}

	return errs
}
