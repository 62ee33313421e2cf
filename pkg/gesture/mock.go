package gesture

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-handscroll/pkg/capture"
)

// Mock implements Engine for testing and camera-less runs.
type Mock struct {
	// SendFunc produces the results for one frame. When nil, Mock replays
	// Script in order and then reports no hands.
	SendFunc func(ctx context.Context, frame capture.Frame) (Results, error)

	// Script is the queue of results replayed by the default SendFunc.
	Script []Results

	// Delay simulates inference latency.
	Delay time.Duration

	mu      sync.Mutex
	opts    Options
	handler func(Results)
	sent    int
	closed  bool
}

// NewMock creates a mock engine that replays script.
func NewMock(script ...Results) *Mock {
	return &Mock{Script: script, opts: DefaultOptions()}
}

// SetOptions stores opts after validation.
func (m *Mock) SetOptions(opts Options) error {
	if errs := opts.Validate(); len(errs) > 0 {
		return &OptionsError{Problems: errs}
	}
	m.mu.Lock()
	m.opts = opts
	m.mu.Unlock()
	return nil
}

// Options returns the last accepted options.
func (m *Mock) Options() Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts
}

// OnResults registers the results handler.
func (m *Mock) OnResults(fn func(Results)) {
	m.mu.Lock()
	m.handler = fn
	m.mu.Unlock()
}

// Send produces results for frame and delivers them before returning.
func (m *Mock) Send(ctx context.Context, frame capture.Frame) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrEngineClosed
	}
	idx := m.sent
	m.sent++
	handler := m.handler
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var res Results
	if m.SendFunc != nil {
		var err error
		if res, err = m.SendFunc(ctx, frame); err != nil {
			return err
		}
	} else if idx < len(m.Script) {
		res = m.Script[idx]
	}

	if handler != nil {
		handler(res)
	}
	return nil
}

// Sent returns how many frames were submitted.
func (m *Mock) Sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

// Close marks the engine closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// HandAt returns a single-hand result with every landmark at (0.5, y).
func HandAt(y float64) Results {
	hand := make([]Landmark, NumLandmarks)
	for i := range hand {
		hand[i] = Landmark{X: 0.5, Y: y}
	}
	return Results{Hands: [][]Landmark{hand}}
}
