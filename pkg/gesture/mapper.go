package gesture

import (
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/go-handscroll/pkg/debug"
)

// Default deadzone: the outer 20% of the frame at each edge saturates.
const (
	DefaultLow  = 0.2
	DefaultHigh = 0.8
)

// ErrInvalidDeadzone is returned for a deadzone outside 0 <= low < high <= 1.
var ErrInvalidDeadzone = errors.New("gesture: invalid deadzone")

// Config selects the tracked landmark and the vertical band that maps onto
// the full scroll range.
type Config struct {
	Low          float64 `json:"low"`
	High         float64 `json:"high"`
	TrackedPoint int     `json:"tracked_point"`
}

// DefaultConfig tracks the index fingertip over [0.2, 0.8].
func DefaultConfig() Config {
	return Config{
		Low:          DefaultLow,
		High:         DefaultHigh,
		TrackedPoint: IndexFingerTip,
	}
}

// Validate requires 0 <= Low < High <= 1 and a valid landmark index.
func (c Config) Validate() error {
	if c.Low < 0 || c.High > 1 || c.Low >= c.High {
		return fmt.Errorf("%w: [%v, %v]", ErrInvalidDeadzone, c.Low, c.High)
	}
	if c.TrackedPoint < 0 || c.TrackedPoint >= NumLandmarks {
		return fmt.Errorf("gesture: tracked point %d out of range", c.TrackedPoint)
	}
	return nil
}

// Mapper turns a landmark's vertical position into a progress value in [0,1].
type Mapper struct {
	cfg Config
}

// NewMapper validates cfg and returns a mapper.
func NewMapper(cfg Config) (*Mapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{cfg: cfg}, nil
}

// Config returns the mapper's configuration.
func (m *Mapper) Config() Config { return m.cfg }

// Map rescales rawY from [Low, High] to [0,1] and clamps. NaN maps to 0.
func (m *Mapper) Map(rawY float64) float64 {
	y := (rawY - m.cfg.Low) / (m.cfg.High - m.cfg.Low)
	if math.IsNaN(y) {
		return 0
	}
	return max(0, min(1, y))
}

// Point returns the tracked landmark of the first hand. A landmark without a
// finite Y counts as no hand.
func (m *Mapper) Point(r Results) (Landmark, bool) {
	if len(r.Hands) == 0 {
		return Landmark{}, false
	}
	hand := r.Hands[0]
	if m.cfg.TrackedPoint >= len(hand) {
		return Landmark{}, false
	}
	p := hand[m.cfg.TrackedPoint]
	if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
		return Landmark{}, false
	}
	return p, true
}

// Signal maps a result set. It returns false when there is no hand, in
// which case the caller keeps its previous target.
func (m *Mapper) Signal(r Results) (float64, bool) {
	p, ok := m.Point(r)
	if !ok {
		return 0, false
	}
	return m.Map(p.Y), true
}

// Handler returns a results callback that forwards every mapped value to set.
func (m *Mapper) Handler(set func(float64)) func(Results) {
	return func(r Results) {
		p, ok := m.Point(r)
		if !ok {
			debug.FrameLog("no hand detected")
			return
		}
		v := m.Map(p.Y)
		debug.FrameLog("hand detected: raw y %.2f, progress %.2f", p.Y, v)
		set(v)
	}
}
