package scroll

import (
	"math"
	"testing"
)

func TestSmootherStep(t *testing.T) {
	s := DefaultSmoother()
	if got := s.Step(0, 1); math.Abs(got-0.05) > 1e-12 {
		t.Errorf("Step(0, 1) = %v, want 0.05", got)
	}
	if got := s.Step(0.5, 0.5); got != 0.5 {
		t.Errorf("Step at target moved to %v", got)
	}
}

func TestSmootherClosedFormMatchesIteration(t *testing.T) {
	tests := []struct {
		name    string
		damping float64
		start   float64
		target  float64
		steps   int
	}{
		{"default up", 0.05, 0, 1, 60},
		{"default down", 0.05, 1, 0, 120},
		{"partial", 0.05, 0.3, 0.7, 17},
		{"fast", 0.5, 0.9, 0.1, 10},
		{"zero steps", 0.2, 0.4, 0.6, 0},
		{"stuck", 0, 0.25, 1, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Smoother{Damping: tt.damping}
			cur := tt.start
			for i := 0; i < tt.steps; i++ {
				cur = s.Step(cur, tt.target)
			}
			want := s.After(tt.start, tt.target, tt.steps)
			if math.Abs(cur-want) > 1e-9 {
				t.Errorf("after %d steps got %v, closed form %v", tt.steps, cur, want)
			}
		})
	}
}

func TestSmootherConverges(t *testing.T) {
	s := DefaultSmoother()
	cur := 0.0
	for i := 0; i < 500; i++ {
		next := s.Step(cur, 1)
		if next < cur {
			t.Fatalf("step %d moved away from target: %v -> %v", i, cur, next)
		}
		cur = next
	}
	if 1-cur > 1e-9 {
		t.Errorf("did not converge: %v", cur)
	}
}
