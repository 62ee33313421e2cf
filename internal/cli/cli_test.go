package cli

import (
	"bytes"
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-handscroll/internal/config"
	"github.com/teslashibe/go-handscroll/pkg/camera"
	"github.com/teslashibe/go-handscroll/pkg/gesture"
	"github.com/teslashibe/go-handscroll/pkg/gesture/landmarknet"
)

// withEnv swaps the loaded environment for the duration of a test.
func withEnv(t *testing.T, e config.Env) {
	t.Helper()
	prev := env
	env = e
	t.Cleanup(func() { env = prev })
}

func defaultEnv(t *testing.T) config.Env {
	t.Helper()
	e, err := config.Load()
	require.NoError(t, err)
	return e
}

func resetRunOpts(t *testing.T) {
	t.Helper()
	prev := runOpts
	runOpts.port, runOpts.preset, runOpts.facing = "", "", ""
	runOpts.cameraIndex = math.MinInt
	runOpts.noPreload, runOpts.mock = false, false
	runOpts.complexity = gesture.ComplexityFull
	runOpts.low, runOpts.high = gesture.DefaultLow, gesture.DefaultHigh
	t.Cleanup(func() { runOpts = prev })
}

func TestMapCommand(t *testing.T) {
	var out bytes.Buffer
	mapCmd.SetOut(&out)
	defer mapCmd.SetOut(nil)

	require.NoError(t, runMap(mapCmd, []string{"0.2", "0.5", "0.8", "0.1", "0.95"}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"0.2\t0.0000",
		"0.5\t0.5000",
		"0.8\t1.0000",
		"0.1\t0.0000",
		"0.95\t1.0000",
	}, lines)
}

func TestMapCommand_InvalidInput(t *testing.T) {
	var out bytes.Buffer
	mapCmd.SetOut(&out)
	defer mapCmd.SetOut(nil)

	err := runMap(mapCmd, []string{"high"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid y "high"`)
}

func TestPreloadCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte{1}, 1000))
	}))
	defer srv.Close()

	e := defaultEnv(t)
	e.ModelBaseURL = srv.URL
	withEnv(t, e)

	var out bytes.Buffer
	preloadCmd.SetOut(&out)
	preloadCmd.SetContext(context.Background())
	defer preloadCmd.SetOut(nil)

	require.NoError(t, runPreload(preloadCmd, []string{"b.onnx", "a.onnx"}))

	text := out.String()
	assert.Contains(t, text, "Downloading AI model: 100%")
	ia, ib := strings.Index(text, "a.onnx\tblob:"), strings.Index(text, "b.onnx\tblob:")
	require.NotEqual(t, -1, ia)
	require.NotEqual(t, -1, ib)
	assert.Less(t, ia, ib, "handles are listed by name")
	assert.Contains(t, text, "1000 bytes")
}

func TestPreloadCommand_ReportsFailedFiles(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	e := defaultEnv(t)
	e.ModelBaseURL = srv.URL
	withEnv(t, e)
	preloadCmd.SetContext(context.Background())

	err := runPreload(preloadCmd, []string{"missing.onnx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.onnx")
}

func TestSessionConfig(t *testing.T) {
	resetRunOpts(t)
	withEnv(t, defaultEnv(t))

	cfg, err := sessionConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Preload)
	assert.Equal(t, camera.DefaultConfig(), cfg.Camera)
	assert.Equal(t, []string{landmarknet.FullModelFile}, cfg.ModelFiles)
}

func TestSessionConfig_FlagsOverrideEnv(t *testing.T) {
	resetRunOpts(t)
	e := defaultEnv(t)
	e.CameraIndex = 2
	e.CameraPreset = "720p"
	withEnv(t, e)

	runOpts.preset = "low"
	runOpts.cameraIndex = 0
	runOpts.noPreload = true
	runOpts.complexity = gesture.ComplexityLite
	runOpts.low, runOpts.high = 0.3, 0.7

	cfg, err := sessionConfig()
	require.NoError(t, err)
	assert.False(t, cfg.Preload)
	assert.Equal(t, 320, cfg.Camera.Width)
	assert.Equal(t, 0, cfg.Camera.DeviceIndex)
	assert.Equal(t, gesture.ComplexityLite, cfg.Engine.ModelComplexity)
	assert.Equal(t, []string{landmarknet.LiteModelFile}, cfg.ModelFiles)
	assert.Equal(t, 0.3, cfg.Gesture.Low)
	assert.Equal(t, 0.7, cfg.Gesture.High)
}

func TestSessionConfig_EnvModelFilesKept(t *testing.T) {
	resetRunOpts(t)
	e := defaultEnv(t)
	e.ModelFiles = []string{"custom.onnx"}
	withEnv(t, e)
	runOpts.complexity = gesture.ComplexityLite

	cfg, err := sessionConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"custom.onnx"}, cfg.ModelFiles)
}

func TestSessionConfig_EnvCameraIndex(t *testing.T) {
	resetRunOpts(t)
	e := defaultEnv(t)
	e.CameraIndex = 3
	e.NoPreload = true
	withEnv(t, e)

	cfg, err := sessionConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Camera.DeviceIndex)
	assert.False(t, cfg.Preload)
}

func TestSessionConfig_Rejects(t *testing.T) {
	resetRunOpts(t)
	withEnv(t, defaultEnv(t))

	runOpts.preset = "ultra"
	_, err := sessionConfig()
	assert.ErrorContains(t, err, `unknown camera preset "ultra"`)

	runOpts.preset = ""
	runOpts.facing = "sideways"
	_, err = sessionConfig()
	assert.ErrorContains(t, err, "invalid camera config")
}

func TestMockFactory(t *testing.T) {
	eng, err := mockFactory(nil, nil)
	require.NoError(t, err)
	defer eng.Close()

	var got gesture.Results
	eng.OnResults(func(r gesture.Results) { got = r })
	require.NoError(t, eng.Send(context.Background(), nil))
	require.Len(t, got.Hands, 1)
	y := got.Hands[0][gesture.IndexFingerTip].Y
	assert.InDelta(t, 0.5, y, 0.46)
}
