package scroll

import "math"

// DefaultDamping is the fraction of the remaining distance covered per frame.
const DefaultDamping = 0.05

// Smoother moves a current value toward a target by a fixed fraction per
// step. It counts frames, not time: a slower frame rate converges more
// slowly in wall-clock terms.
type Smoother struct {
	Damping float64
}

// DefaultSmoother returns a smoother with DefaultDamping.
func DefaultSmoother() Smoother {
	return Smoother{Damping: DefaultDamping}
}

// Step returns current + (target-current)*Damping.
func (s Smoother) Step(current, target float64) float64 {
	return current + (target-current)*s.Damping
}

// After returns the value reached from current after k steps toward a fixed
// target: target - (target-current)*(1-Damping)^k.
func (s Smoother) After(current, target float64, k int) float64 {
	return target - (target-current)*math.Pow(1-s.Damping, float64(k))
}
