package cli

import (
	"context"
	"fmt"
	"math"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-handscroll/internal/log"
	"github.com/teslashibe/go-handscroll/internal/otel"
	"github.com/teslashibe/go-handscroll/pkg/app"
	"github.com/teslashibe/go-handscroll/pkg/camera"
	"github.com/teslashibe/go-handscroll/pkg/capture"
	"github.com/teslashibe/go-handscroll/pkg/capture/webcam"
	"github.com/teslashibe/go-handscroll/pkg/debug"
	"github.com/teslashibe/go-handscroll/pkg/gesture"
	"github.com/teslashibe/go-handscroll/pkg/gesture/landmarknet"
	"github.com/teslashibe/go-handscroll/pkg/preload"
	"github.com/teslashibe/go-handscroll/pkg/scroll"
	"github.com/teslashibe/go-handscroll/pkg/web"
)

var runOpts struct {
	port        string
	preset      string
	cameraIndex int
	facing      string
	noPreload   bool
	mock        bool
	complexity  int
	low, high   float64
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start gesture control and the status server",
	Long: `Runs a gesture-control session: model preload, camera capture, landmark
inference and the scroll signal, with the status server on --port.

Camera failures are reported on /api/status and the session keeps running so
the value can still be driven through POST /api/scroll or /ws/scroll.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.port, "port", "", "HTTP port (overrides HANDSCROLL_PORT)")
	f.StringVar(&runOpts.preset, "preset", "", "Camera preset: "+fmt.Sprint(camera.PresetNames()))
	f.IntVar(&runOpts.cameraIndex, "camera", math.MinInt, "Camera device index (overrides facing mode)")
	f.StringVar(&runOpts.facing, "facing", "", "Facing mode: user or environment")
	f.BoolVar(&runOpts.noPreload, "no-preload", false, "Skip model preload and load from the remote URL")
	f.BoolVar(&runOpts.mock, "mock", false, "Use a synthetic camera and a moving virtual hand")
	f.IntVar(&runOpts.complexity, "complexity", gesture.ComplexityFull, "Model complexity: 0 lite, 1 full")
	f.Float64Var(&runOpts.low, "low", gesture.DefaultLow, "Raw Y mapped to 0 (top of the active band)")
	f.Float64Var(&runOpts.high, "high", gesture.DefaultHigh, "Raw Y mapped to 1 (bottom of the active band)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := sessionConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := otel.Setup(ctx, "handscroll", env.OTelEndpoint, env.OTelEnabled)
	if err != nil {
		log.Warn("tracing disabled", "error", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		shutdownTracing(sctx)
	}()

	port := env.Port
	if runOpts.port != "" {
		port = runOpts.port
	}

	sig := scroll.NewSignal(scroll.DefaultSmoother())
	preloader := preload.New()
	server := web.NewServer(net.JoinHostPort("", port), sig, preloader.Registry())

	var device capture.Device = webcam.New()
	factory := landmarkFactory
	if runOpts.mock {
		device = capture.SyntheticDevice{}
		factory = mockFactory
	}

	a := app.New(cfg, device, factory,
		app.WithPreloader(preloader),
		app.WithSignal(sig),
		app.WithReporters(server, app.NewLogReporter()),
		app.WithRenderers(server, app.NewLogRenderer(0.05)),
	)
	server.StatsFunc = a.Stats

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start(ctx) }()
	log.Info("status server listening", "port", port)

	// Rendering starts before Init so manual input works during the
	// download and the camera request.
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	if err := a.Init(ctx); err != nil {
		cancel()
		<-runErr
		<-serverErr
		return err
	}

	select {
	case err := <-serverErr:
		cancel()
		<-runErr
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	case err := <-runErr:
		cancel()
		<-serverErr
		return err
	}
}

// sessionConfig merges environment configuration with run flags.
func sessionConfig() (app.Config, error) {
	files := env.ModelFiles
	if len(files) == 0 {
		files = []string{landmarknet.ModelFile(runOpts.complexity)}
	}
	cfg := app.DefaultConfig(env.ModelBaseURL, files)
	cfg.Preload = !env.NoPreload && !runOpts.noPreload

	presetName := env.CameraPreset
	if runOpts.preset != "" {
		presetName = runOpts.preset
	}
	preset := camera.GetPreset(presetName)
	if preset == nil {
		return app.Config{}, fmt.Errorf("unknown camera preset %q (have %v)", presetName, camera.PresetNames())
	}
	cfg.Camera = *preset
	cfg.Camera.DeviceIndex = env.CameraIndex
	if runOpts.cameraIndex != math.MinInt {
		cfg.Camera.DeviceIndex = runOpts.cameraIndex
	}
	if runOpts.facing != "" {
		cfg.Camera.FacingMode = runOpts.facing
	}
	if errs := cfg.Camera.Validate(); len(errs) > 0 {
		return app.Config{}, fmt.Errorf("invalid camera config: %v", errs)
	}

	cfg.Gesture.Low, cfg.Gesture.High = runOpts.low, runOpts.high
	cfg.Engine.ModelComplexity = runOpts.complexity

	debug.Log("session config: model=%s files=%v preload=%v camera=%+v gesture=%+v",
		cfg.ModelBaseURL, cfg.ModelFiles, cfg.Preload, cfg.Camera, cfg.Gesture)
	return cfg, nil
}

func landmarkFactory(locate gesture.LocateFile, load func(context.Context, string) ([]byte, error)) (gesture.Engine, error) {
	return landmarknet.New(locate, load), nil
}

// mockFactory drives a virtual fingertip up and down over a ten second period.
func mockFactory(gesture.LocateFile, func(context.Context, string) ([]byte, error)) (gesture.Engine, error) {
	start := time.Now()
	m := gesture.NewMock()
	m.SendFunc = func(context.Context, capture.Frame) (gesture.Results, error) {
		phase := time.Since(start).Seconds() * 2 * math.Pi / 10
		return gesture.HandAt(0.5 + 0.45*math.Sin(phase)), nil
	}
	return m, nil
}
