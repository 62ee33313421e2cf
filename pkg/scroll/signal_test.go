package scroll

import (
	"math"
	"sync"
	"testing"
)

func TestSignalSetTargetClamps(t *testing.T) {
	s := NewSignal(DefaultSmoother())
	tests := []struct {
		in, want float64
	}{
		{0.4, 0.4},
		{-3, 0},
		{7, 1},
		{1, 1},
		{0, 0},
	}
	for _, tt := range tests {
		if got := s.SetTarget(tt.in); got != tt.want {
			t.Errorf("SetTarget(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSignalIgnoresNonFiniteInput(t *testing.T) {
	s := NewSignal(DefaultSmoother())
	s.SetTarget(0.6)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := s.SetTarget(v); got != 0.6 {
			t.Errorf("SetTarget(%v) = %v, want 0.6 kept", v, got)
		}
		if got := s.Nudge(v); got != 0.6 {
			t.Errorf("Nudge(%v) = %v, want 0.6 kept", v, got)
		}
	}

	for range 10 {
		s.Tick()
	}
	st := s.State()
	if st.Target != 0.6 || math.IsNaN(st.Current) || st.Current < 0 || st.Current > 1 {
		t.Errorf("state left [0,1]: %+v", st)
	}
	if got := Clamp(math.NaN()); got != 0 {
		t.Errorf("Clamp(NaN) = %v", got)
	}
}

func TestSignalWheelAndTouch(t *testing.T) {
	s := NewSignal(DefaultSmoother())

	if got := s.Wheel(100); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("Wheel(100) = %v, want 0.1", got)
	}
	if got := s.Touch(50); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("Touch(50) = %v, want 0.2", got)
	}
	if got := s.Wheel(-10000); got != 0 {
		t.Errorf("large negative wheel = %v, want 0", got)
	}
	if got := s.Touch(10000); got != 1 {
		t.Errorf("large touch = %v, want 1", got)
	}
}

func TestSignalTickFollowsTarget(t *testing.T) {
	s := NewSignal(DefaultSmoother())
	s.SetTarget(1)

	prev := s.Current()
	for i := 0; i < 100; i++ {
		cur := s.Tick()
		if cur < prev || cur > 1 {
			t.Fatalf("tick %d: %v after %v", i, cur, prev)
		}
		prev = cur
	}

	want := DefaultSmoother().After(0, 1, 100)
	if math.Abs(prev-want) > 1e-9 {
		t.Errorf("current = %v, want %v", prev, want)
	}
	st := s.State()
	if st.Target != 1 || st.Current != prev {
		t.Errorf("State() = %+v", st)
	}
}

func TestSignalConcurrentWriters(t *testing.T) {
	s := NewSignal(DefaultSmoother())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if i%2 == 0 {
					s.Wheel(5)
				} else {
					s.SetTarget(float64(j) / 200)
				}
				s.Tick()
			}
		}(i)
	}
	wg.Wait()

	st := s.State()
	if st.Target < 0 || st.Target > 1 || st.Current < 0 || st.Current > 1 {
		t.Errorf("out of range: %+v", st)
	}
}
