// Package app wires preloading, the inference engine, the capture loop and
// the scroll signal into one control session.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-handscroll/internal/log"
	"github.com/teslashibe/go-handscroll/pkg/camera"
	"github.com/teslashibe/go-handscroll/pkg/capture"
	"github.com/teslashibe/go-handscroll/pkg/gesture"
	"github.com/teslashibe/go-handscroll/pkg/preload"
	"github.com/teslashibe/go-handscroll/pkg/scroll"
)

// Loading steps reported while the session starts.
const (
	StepInit    = 10
	StepConnect = 20
	StepCamera  = 75
	StepStream  = 85
	StepReady   = 100

	// downloadSpan is the share of the bar covered by the download.
	downloadSpan = 0.5
)

// DefaultFrameInterval is the render tick.
const DefaultFrameInterval = time.Second / 60

// Renderer consumes the smoothed scroll value once per frame.
type Renderer interface {
	Render(current float64)
}

// Reporter receives loading progress and the fatal gesture error.
type Reporter interface {
	Progress(percent float64, message string)
	Fail(err error)
}

// EngineFactory builds the inference engine. locate resolves model file
// names, load fetches what locate returns.
type EngineFactory func(locate gesture.LocateFile, load func(ctx context.Context, url string) ([]byte, error)) (gesture.Engine, error)

// Config holds session configuration.
type Config struct {
	ModelBaseURL  string
	ModelFiles    []string
	Preload       bool
	Camera        camera.Config
	Gesture       gesture.Config
	Engine        gesture.Options
	FrameInterval time.Duration
	LoopInterval  time.Duration
}

// DefaultConfig returns the standard session configuration for the given
// model location.
func DefaultConfig(baseURL string, files []string) Config {
	return Config{
		ModelBaseURL:  baseURL,
		ModelFiles:    files,
		Preload:       true,
		Camera:        camera.DefaultConfig(),
		Gesture:       gesture.DefaultConfig(),
		Engine:        gesture.DefaultOptions(),
		FrameInterval: DefaultFrameInterval,
		LoopInterval:  capture.DefaultInterval,
	}
}

// App is one gesture-control session.
type App struct {
	cfg       Config
	device    capture.Device
	newEngine EngineFactory
	preloader *preload.Preloader
	signal    *scroll.Signal
	reporters []Reporter
	renderers []Renderer
	logger    *slog.Logger

	mu         sync.Mutex
	engine     gesture.Engine
	loop       *capture.Loop
	locator    *preload.Locator
	gestureErr error
	closed     bool
}

// Option configures an App.
type Option func(*App)

// WithPreloader sets the preloader.
func WithPreloader(p *preload.Preloader) Option {
	return func(a *App) { a.preloader = p }
}

// WithSignal sets the scroll signal shared with other input sources.
func WithSignal(s *scroll.Signal) Option {
	return func(a *App) { a.signal = s }
}

// WithReporters adds progress reporters.
func WithReporters(r ...Reporter) Option {
	return func(a *App) { a.reporters = append(a.reporters, r...) }
}

// WithRenderers adds renderers.
func WithRenderers(r ...Renderer) Option {
	return func(a *App) { a.renderers = append(a.renderers, r...) }
}

// New creates an App.
func New(cfg Config, device capture.Device, newEngine EngineFactory, opts ...Option) *App {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	a := &App{
		cfg:       cfg,
		device:    device,
		newEngine: newEngine,
		logger:    log.Component("app"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.preloader == nil {
		a.preloader = preload.New()
	}
	if a.signal == nil {
		a.signal = scroll.NewSignal(scroll.DefaultSmoother())
	}
	return a
}

// Signal returns the scroll signal.
func (a *App) Signal() *scroll.Signal { return a.signal }

// Init preloads the model, bootstraps the engine and starts the camera.
// A camera failure is reported and disables gesture control but is not
// returned: manual input keeps working. Engine and configuration errors are
// returned.
//
// Init can take as long as the download and the camera grant. Run may be
// started before it so manual input is rendered in the meantime.
func (a *App) Init(ctx context.Context) error {
	mapper, err := gesture.NewMapper(a.cfg.Gesture)
	if err != nil {
		return err
	}

	a.report(StepInit, "Initializing video")
	a.report(StepConnect, "Connecting to model server")

	handles := a.preload(ctx)
	locator := preload.NewLocator(a.cfg.ModelBaseURL, handles, a.preloader.Registry())

	engine, err := a.newEngine(locator.Locate, locator.Open)
	if err != nil {
		return fmt.Errorf("app: create engine: %w", err)
	}
	if err := engine.SetOptions(a.cfg.Engine); err != nil {
		engine.Close()
		return fmt.Errorf("app: engine options: %w", err)
	}

	loop := capture.NewLoop(a.device, engine,
		capture.Config{Interval: a.cfg.LoopInterval, Camera: a.cfg.Camera},
		capture.WithHooks(capture.Hooks{
			OnRequesting: func() { a.report(StepCamera, "Requesting camera access") },
			OnStream:     func(*capture.Session) { a.report(StepStream, "Starting camera stream") },
			OnStreaming:  func(*capture.Session) { a.report(StepReady, "Ready") },
			OnStopped:    a.onStopped,
		}))
	engine.OnResults(capture.Guard(loop, mapper.Handler(func(v float64) { a.signal.SetTarget(v) })))

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		engine.Close()
		return nil
	}
	a.engine = engine
	a.loop = loop
	a.locator = locator
	a.mu.Unlock()

	if err := loop.Start(ctx); err != nil {
		a.logger.Warn("gesture control disabled", "error", err)
	}
	return nil
}

// preload fetches the model files, mapping download progress onto the
// 20-70 band. On failure it reports and returns nil so every file is loaded
// from its remote URL.
func (a *App) preload(ctx context.Context) map[string]*preload.Handle {
	if !a.cfg.Preload || len(a.cfg.ModelFiles) == 0 {
		return nil
	}
	reqs := preload.Requests(a.cfg.ModelBaseURL, a.cfg.ModelFiles)
	handles, err := a.preloader.Preload(ctx, reqs, func(percent, speed, loadedMB, totalMB float64) {
		a.report(StepConnect+percent*downloadSpan, DownloadMessage(percent, speed, loadedMB, totalMB))
	})
	if err != nil {
		a.logger.Warn("model preload failed, falling back to remote load", "error", err)
		a.report(StepConnect, "Download info unavailable, loading...")
		return nil
	}
	return handles
}

// DownloadMessage formats the download status line.
func DownloadMessage(percent, speed, loadedMB, totalMB float64) string {
	return fmt.Sprintf("Downloading AI model: %d%%\n%.2fMB / %.2fMB\nSpeed: %.2f MB/s",
		int(percent), loadedMB, totalMB, speed)
}

func (a *App) onStopped(err *capture.DeviceAccessError) {
	if err == nil {
		return
	}
	a.mu.Lock()
	a.gestureErr = err
	a.mu.Unlock()

	a.report(0, "Camera error: "+err.Error())
	for _, r := range a.reporters {
		r.Fail(err)
	}
}

// Run advances the scroll signal once per frame and hands the smoothed
// value to every renderer until ctx is done, then shuts the session down.
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return a.Shutdown()
		case <-ticker.C:
			a.Frame()
		}
	}
}

// Frame runs one render step and returns the smoothed value.
func (a *App) Frame() float64 {
	cur := a.signal.Tick()
	for _, r := range a.renderers {
		r.Render(cur)
	}
	return cur
}

// Shutdown stops capture and releases the engine.
func (a *App) Shutdown() error {
	a.mu.Lock()
	a.closed = true
	loop, engine := a.loop, a.engine
	a.mu.Unlock()

	if loop != nil {
		loop.Stop()
		loop.Wait()
	}
	if engine != nil {
		if err := engine.Close(); err != nil && !errors.Is(err, gesture.ErrEngineClosed) {
			return err
		}
	}
	return nil
}

// Stats returns the capture counters, zero before Init.
func (a *App) Stats() capture.Stats {
	a.mu.Lock()
	loop := a.loop
	a.mu.Unlock()
	if loop == nil {
		return capture.Stats{}
	}
	return loop.Stats()
}

// GestureErr returns the device error that disabled gesture control.
func (a *App) GestureErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gestureErr
}

// Preloaded reports whether model files are served from local handles.
func (a *App) Preloaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.locator != nil && a.locator.Preloaded()
}

func (a *App) report(percent float64, message string) {
	for _, r := range a.reporters {
		r.Progress(percent, message)
	}
}
