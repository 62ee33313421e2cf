// Package scroll holds the bounded scroll signal shared by the gesture
// pipeline, manual inputs and the render loop.
package scroll

import (
	"math"
	"sync"
)

// Input sensitivities, in signal units per pixel of movement.
const (
	WheelSensitivity = 0.001
	TouchSensitivity = 0.002
)

// State is a point-in-time copy of the signal.
type State struct {
	Target  float64 `json:"target"`
	Current float64 `json:"current"`
}

// Signal is the scroll target written by input sources and the smoothed
// current value advanced once per rendered frame. Both stay in [0,1].
//
// Target may be written from any goroutine. Current is only advanced by Tick.
type Signal struct {
	mu       sync.Mutex
	target   float64
	current  float64
	smoother Smoother
}

// NewSignal creates a signal at 0 using the given smoother.
func NewSignal(s Smoother) *Signal {
	return &Signal{smoother: s}
}

// SetTarget replaces the target, clamped to [0,1], and returns the stored
// value. Non-finite values are ignored.
func (s *Signal) SetTarget(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if finite(v) {
		s.target = Clamp(v)
	}
	return s.target
}

// Nudge adds delta to the target and clamps.
func (s *Signal) Nudge(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if finite(delta) {
		s.target = Clamp(s.target + delta)
	}
	return s.target
}

// Wheel applies a mouse-wheel deltaY.
func (s *Signal) Wheel(deltaY float64) float64 {
	return s.Nudge(deltaY * WheelSensitivity)
}

// Touch applies a vertical drag of deltaY pixels (start minus end).
func (s *Signal) Touch(deltaY float64) float64 {
	return s.Nudge(deltaY * TouchSensitivity)
}

// Tick advances current one smoothing step toward target and returns it.
func (s *Signal) Tick() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Clamp(s.smoother.Step(s.current, s.target))
	return s.current
}

// Target returns the current target.
func (s *Signal) Target() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Current returns the smoothed value.
func (s *Signal) Current() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// State returns both values under one lock.
func (s *Signal) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Target: s.target, Current: s.current}
}

// Clamp limits v to [0,1]. NaN maps to 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return max(0, min(1, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
