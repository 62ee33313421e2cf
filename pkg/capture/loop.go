// Package capture turns a granted camera stream into a paced sequence of
// single-flight inference submissions.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-handscroll/internal/log"
	"github.com/teslashibe/go-handscroll/pkg/camera"
)

// State is the loop's lifecycle state.
type State int

const (
	Idle State = iota
	Requesting
	Streaming
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Streaming:
		return "streaming"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultInterval paces the loop at the display refresh rate.
const DefaultInterval = time.Second / 60

// Config holds loop configuration.
type Config struct {
	Interval time.Duration
	Camera   camera.Config
}

// DefaultConfig returns a 60 Hz loop on the default camera constraints.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		Camera:   camera.DefaultConfig(),
	}
}

// Hooks are optional lifecycle notifications. They run on the goroutine
// that caused the transition and must not block.
type Hooks struct {
	// OnRequesting runs when device access is requested.
	OnRequesting func()
	// OnStream runs when a stream is granted, before its metadata is ready.
	OnStream func(s *Session)
	// OnStreaming runs once metadata is ready and the loop is running.
	OnStreaming func(s *Session)
	// OnStopped runs once when the loop ends. err is nil on explicit stop.
	OnStopped func(err *DeviceAccessError)
}

// Stats are the loop's counters.
type Stats struct {
	Submitted           uint64 `json:"submitted"`
	Skipped             uint64 `json:"skipped"`
	Failed              uint64 `json:"failed"`
	ConsecutiveFailures uint64 `json:"consecutive_failures"`
	Discarded           uint64 `json:"discarded"`
}

// Loop drives frame submission. Use NewLoop; a Loop runs at most once.
type Loop struct {
	cfg    Config
	device Device
	engine Submitter
	hooks  Hooks
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	session *Session
	cancel  context.CancelFunc
	err     *DeviceAccessError

	stopped  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once

	submitted   atomic.Uint64
	skipped     atomic.Uint64
	failed      atomic.Uint64
	consecutive atomic.Uint64
	discarded   atomic.Uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithHooks sets lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(l *Loop) { l.hooks = h }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// NewLoop creates an idle loop.
func NewLoop(device Device, engine Submitter, cfg Config, opts ...Option) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	l := &Loop{
		cfg:    cfg,
		device: device,
		engine: engine,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.Component("capture")
	}
	return l
}

// Start requests the device, waits for stream metadata and launches the
// submission loop in its own goroutine. It returns once the loop is
// Streaming, or with a *DeviceAccessError if the stream could not be
// obtained. Cancelling ctx stops the loop.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.state != Idle {
		l.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	l.state = Requesting
	l.cancel = cancel
	l.mu.Unlock()

	if l.hooks.OnRequesting != nil {
		l.hooks.OnRequesting()
	}
	l.logger.Info("requesting camera", "facing", l.cfg.Camera.FacingMode,
		"width", l.cfg.Camera.Width, "height", l.cfg.Camera.Height)

	stream, err := l.device.Open(ctx, l.cfg.Camera)
	if err != nil {
		return l.fail(ctx, nil, err)
	}

	session := NewSession(stream)
	l.mu.Lock()
	l.session = session
	l.mu.Unlock()
	if l.hooks.OnStream != nil {
		l.hooks.OnStream(session)
	}

	select {
	case <-stream.Metadata():
	case <-stream.Failed():
		err := stream.Err()
		if err == nil {
			err = &DeviceAccessError{Kind: NotReadable, Err: errors.New("stream failed before first frame")}
		}
		return l.fail(ctx, session, err)
	case <-ctx.Done():
		return l.fail(ctx, session, fmt.Errorf("%w: %w", ErrAborted, ctx.Err()))
	}

	if err := session.Advance(Ready); err != nil {
		return l.fail(ctx, session, err)
	}

	l.mu.Lock()
	if l.stopped.Load() {
		l.mu.Unlock()
		return l.fail(ctx, session, ErrAborted)
	}
	l.state = Streaming
	l.mu.Unlock()

	l.logger.Info("camera streaming", "session", session.ID)
	if l.hooks.OnStreaming != nil {
		l.hooks.OnStreaming(session)
	}

	go l.run(ctx, session)
	return nil
}

// fail ends a Start that never reached Streaming. A Start cut short by Stop
// or by cancellation of ctx ends without a device error.
func (l *Loop) fail(ctx context.Context, session *Session, err error) error {
	de := deviceError(err)
	if session != nil {
		session.Close()
	}
	if l.stopped.Load() || ctx.Err() != nil {
		l.finish(nil)
		l.logger.Info("camera request cancelled", "error", de)
		return de
	}
	l.finish(de)
	l.logger.Error("camera unavailable", "kind", de.Kind, "error", de)
	return de
}

func (l *Loop) finish(err *DeviceAccessError) {
	l.mu.Lock()
	l.state = Stopped
	if err != nil && l.err == nil {
		l.err = err
	}
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.doneOnce.Do(func() {
		close(l.done)
		if l.hooks.OnStopped != nil {
			l.hooks.OnStopped(err)
		}
	})
}

func (l *Loop) run(ctx context.Context, session *Session) {
	var fatal *DeviceAccessError
	defer func() {
		session.Close()
		l.finish(fatal)
		st := l.Stats()
		l.logger.Info("capture stopped", "session", session.ID,
			"submitted", st.Submitted, "skipped", st.Skipped, "failed", st.Failed)
	}()

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		if l.stopped.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if l.stopped.Load() {
			return
		}

		if err := session.Stream().Err(); err != nil {
			fatal = deviceError(err)
			l.logger.Error("camera stream failed", "session", session.ID, "error", err)
			return
		}
		l.tick(ctx, session)
	}
}

// tick submits at most one frame and waits for the engine to finish with it.
func (l *Loop) tick(ctx context.Context, session *Session) {
	frame := session.Stream().Latest()
	if !FrameReady(frame) {
		l.skipped.Add(1)
		closeFrame(frame)
		return
	}
	if session.Readiness() == Ready {
		session.Advance(Active)
	}

	seq := l.submitted.Add(1)
	err := l.engine.Send(ctx, frame)
	closeFrame(frame)

	if err == nil {
		l.consecutive.Store(0)
		return
	}
	if l.stopped.Load() || ctx.Err() != nil {
		return
	}
	l.failed.Add(1)
	n := l.consecutive.Add(1)
	l.logger.Warn("processing error", "error", &InferenceSubmissionError{Seq: seq, Err: err},
		"consecutive", n)
}

func closeFrame(f Frame) {
	if c, ok := f.(io.Closer); ok && c != nil {
		c.Close()
	}
}

// Stop ends the loop. No submission starts after Stop returns; a submission
// already in flight has its context cancelled and its results discarded by
// Guard. Stop does not wait; use Wait.
func (l *Loop) Stop() {
	l.stopped.Store(true)

	l.mu.Lock()
	idle := l.state == Idle
	cancel := l.cancel
	l.mu.Unlock()

	if idle {
		l.finish(nil)
		return
	}
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the loop has stopped and the stream is released.
func (l *Loop) Wait() {
	<-l.done
}

// Done is closed when the loop has stopped.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Stopped reports whether Stop has been called.
func (l *Loop) Stopped() bool { return l.stopped.Load() }

// State returns the current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Session returns the active session, or nil before a stream is granted.
func (l *Loop) Session() *Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// Err returns the device error that ended the loop, if any.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err == nil {
		return nil
	}
	return l.err
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Submitted:           l.submitted.Load(),
		Skipped:             l.skipped.Load(),
		Failed:              l.failed.Load(),
		ConsecutiveFailures: l.consecutive.Load(),
		Discarded:           l.discarded.Load(),
	}
}

// Guard wraps a result handler so that results delivered after l has been
// stopped are dropped.
func Guard[T any](l *Loop, fn func(T)) func(T) {
	return func(v T) {
		if l.stopped.Load() {
			l.discarded.Add(1)
			return
		}
		fn(v)
	}
}
