package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-handscroll/pkg/camera"
	"github.com/teslashibe/go-handscroll/pkg/capture"
	"github.com/teslashibe/go-handscroll/pkg/gesture"
	"github.com/teslashibe/go-handscroll/pkg/preload"
)

type step struct {
	percent float64
	message string
}

type recordingReporter struct {
	mu    sync.Mutex
	steps []step
	fails []error
}

func (r *recordingReporter) Progress(percent float64, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step{percent, message})
}

func (r *recordingReporter) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fails = append(r.fails, err)
}

func (r *recordingReporter) snapshot() ([]step, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]step(nil), r.steps...), append([]error(nil), r.fails...)
}

type recordingRenderer struct {
	mu     sync.Mutex
	values []float64
}

func (r *recordingRenderer) Render(v float64) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
}

func (r *recordingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

type failingDevice struct{ err error }

func (d failingDevice) Open(context.Context, camera.Config) (capture.Stream, error) {
	return nil, d.err
}

// blockingDevice holds Open until the request is cancelled.
type blockingDevice struct{ opened chan struct{} }

func (d blockingDevice) Open(ctx context.Context, _ camera.Config) (capture.Stream, error) {
	close(d.opened)
	<-ctx.Done()
	return nil, ctx.Err()
}

// modelServer serves every listed file; names in missing return 404.
func modelServer(t *testing.T, missing ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		for _, m := range missing {
			if m == name {
				http.NotFound(w, r)
				return
			}
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("model:" + name))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// handFactory builds a mock engine that always sees a hand at y and records
// what the bootstrap resolved for each model file.
type handFactory struct {
	y       float64
	located map[string]string
	loaded  map[string]string
	mu      sync.Mutex
	files   []string
}

func (f *handFactory) build(locate gesture.LocateFile, load func(context.Context, string) ([]byte, error)) (gesture.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.located = map[string]string{}
	f.loaded = map[string]string{}
	for _, file := range f.files {
		url := locate(file)
		f.located[file] = url
		data, err := load(context.Background(), url)
		if err != nil {
			return nil, err
		}
		f.loaded[file] = string(data)
	}

	m := gesture.NewMock()
	m.SendFunc = func(context.Context, capture.Frame) (gesture.Results, error) {
		return gesture.HandAt(f.y), nil
	}
	return m, nil
}

func testConfig(baseURL string, files ...string) Config {
	cfg := DefaultConfig(baseURL, files)
	cfg.LoopInterval = time.Millisecond
	cfg.FrameInterval = time.Millisecond
	return cfg
}

func TestInitReportsLoadingSteps(t *testing.T) {
	files := []string{"hands.js", "hands.wasm"}
	srv := modelServer(t)
	factory := &handFactory{y: 0.8, files: files}
	rep := &recordingReporter{}

	a := New(testConfig(srv.URL, files...), capture.SyntheticDevice{}, factory.build, WithReporters(rep))
	require.NoError(t, a.Init(context.Background()))
	defer a.Shutdown()

	require.Eventually(t, func() bool { return a.Signal().Target() == 1 }, 3*time.Second, time.Millisecond)
	assert.True(t, a.Preloaded())

	for _, f := range files {
		assert.True(t, preload.IsBlobURL(factory.located[f]), "%s should resolve to a local handle", f)
		assert.Equal(t, "model:"+f, factory.loaded[f])
	}

	steps, fails := rep.snapshot()
	assert.Empty(t, fails)
	require.GreaterOrEqual(t, len(steps), 6)
	assert.Equal(t, step{10, "Initializing video"}, steps[0])
	assert.Equal(t, step{20, "Connecting to model server"}, steps[1])

	tail := steps[len(steps)-3:]
	assert.Equal(t, []step{
		{75, "Requesting camera access"},
		{85, "Starting camera stream"},
		{100, "Ready"},
	}, tail)

	downloads := steps[2 : len(steps)-3]
	require.NotEmpty(t, downloads)
	for _, s := range downloads {
		assert.GreaterOrEqual(t, s.percent, 20.0)
		assert.LessOrEqual(t, s.percent, 70.0)
		assert.True(t, strings.HasPrefix(s.message, "Downloading AI model: "), s.message)
	}
	last := downloads[len(downloads)-1]
	assert.Equal(t, 70.0, last.percent)
	assert.Contains(t, last.message, "Downloading AI model: 100%")
}

func TestInitFallsBackWhenPreloadFails(t *testing.T) {
	files := []string{"hands.js", "hands.data"}
	srv := modelServer(t, "hands.data")
	factory := &handFactory{y: 0.5, files: []string{"hands.js"}}
	rep := &recordingReporter{}

	a := New(testConfig(srv.URL, files...), capture.SyntheticDevice{}, factory.build, WithReporters(rep))
	require.NoError(t, a.Init(context.Background()))
	defer a.Shutdown()

	assert.False(t, a.Preloaded())
	assert.Equal(t, srv.URL+"/hands.js", factory.located["hands.js"], "every file falls back to its remote URL")
	assert.Equal(t, "model:hands.js", factory.loaded["hands.js"])

	steps, _ := rep.snapshot()
	assert.Contains(t, steps, step{20, "Download info unavailable, loading..."})
	assert.Equal(t, step{100, "Ready"}, steps[len(steps)-1])

	require.Eventually(t, func() bool { return a.Signal().Target() > 0.49 }, 3*time.Second, time.Millisecond)
}

func TestCameraErrorKeepsManualControl(t *testing.T) {
	rep := &recordingReporter{}
	ren := &recordingRenderer{}
	factory := &handFactory{y: 0.5}

	cfg := testConfig("http://unused.invalid")
	cfg.Preload = false
	a := New(cfg, failingDevice{err: capture.ErrPermissionDenied}, factory.build,
		WithReporters(rep), WithRenderers(ren))

	require.NoError(t, a.Init(context.Background()), "a camera failure is not fatal to the app")
	defer a.Shutdown()

	assert.ErrorIs(t, a.GestureErr(), capture.ErrPermissionDenied)

	steps, fails := rep.snapshot()
	require.Len(t, fails, 1)
	assert.ErrorIs(t, fails[0], capture.ErrPermissionDenied)
	last := steps[len(steps)-1]
	assert.Equal(t, 0.0, last.percent)
	assert.True(t, strings.HasPrefix(last.message, "Camera error: "), last.message)

	a.Signal().Wheel(1000)
	v := a.Frame()
	assert.InDelta(t, 0.05, v, 1e-12)
	assert.Equal(t, 1, ren.count())
}

func TestRunRendersUntilCancelled(t *testing.T) {
	ren := &recordingRenderer{}
	cfg := testConfig("http://unused.invalid")
	cfg.Preload = false
	a := New(cfg, capture.SyntheticDevice{}, (&handFactory{y: 0.8}).build, WithRenderers(ren))
	require.NoError(t, a.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return ren.count() >= 20 }, 3*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	ren.mu.Lock()
	defer ren.mu.Unlock()
	for i := 1; i < len(ren.values); i++ {
		assert.GreaterOrEqual(t, ren.values[i], ren.values[i-1], "smoothed value moves toward a target that only rises")
	}
	assert.Equal(t, capture.Stopped, a.loop.State())
}

func TestRunRendersWhileCameraIsPending(t *testing.T) {
	ren := &recordingRenderer{}
	rep := &recordingReporter{}
	cfg := testConfig("http://unused.invalid")
	cfg.Preload = false
	dev := blockingDevice{opened: make(chan struct{})}
	a := New(cfg, dev, (&handFactory{}).build, WithRenderers(ren), WithReporters(rep))

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- a.Run(ctx) }()
	initDone := make(chan error, 1)
	go func() { initDone <- a.Init(ctx) }()

	<-dev.opened
	a.Signal().SetTarget(1)
	require.Eventually(t, func() bool { return ren.count() >= 5 }, 3*time.Second, time.Millisecond)
	assert.Greater(t, a.Signal().Current(), 0.0, "manual input is smoothed while the camera request is pending")

	select {
	case <-initDone:
		t.Fatal("Init returned while the device was still pending")
	default:
	}

	cancel()
	require.NoError(t, <-initDone)
	require.NoError(t, <-runDone)

	_, fails := rep.snapshot()
	assert.Empty(t, fails, "cancelling a pending camera request is not a camera error")
}

func TestInitEngineError(t *testing.T) {
	cfg := testConfig("http://unused.invalid")
	cfg.Preload = false
	boom := errors.New("no backend")
	a := New(cfg, capture.SyntheticDevice{}, func(gesture.LocateFile, func(context.Context, string) ([]byte, error)) (gesture.Engine, error) {
		return nil, boom
	})
	assert.ErrorIs(t, a.Init(context.Background()), boom)
	assert.NoError(t, a.Shutdown())
}

func TestInitRejectsBadDeadzone(t *testing.T) {
	cfg := testConfig("http://unused.invalid")
	cfg.Gesture.Low, cfg.Gesture.High = 0.9, 0.1
	a := New(cfg, capture.SyntheticDevice{}, (&handFactory{}).build)
	assert.ErrorIs(t, a.Init(context.Background()), gesture.ErrInvalidDeadzone)
}

func TestDownloadMessage(t *testing.T) {
	assert.Equal(t, "Downloading AI model: 42%\n1.50MB / 3.00MB\nSpeed: 0.75 MB/s",
		DownloadMessage(42.9, 0.75, 1.5, 3))
}
