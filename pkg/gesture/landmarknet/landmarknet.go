// Package landmarknet runs a hand-landmark ONNX model with OpenCV DNN.
//
// The model takes a 224x224 RGB crop (NHWC, float32 in [0,1]) and returns 21
// landmarks in crop pixels plus a hand-presence score. The engine feeds it
// the largest centered square of each frame, so it reports at most one hand.
package landmarknet

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-handscroll/internal/log"
	"github.com/teslashibe/go-handscroll/pkg/capture"
	"github.com/teslashibe/go-handscroll/pkg/gesture"
)

// Model files, selected by gesture.Options.ModelComplexity.
const (
	FullModelFile = "handpose_estimation_mediapipe_2023feb.onnx"
	LiteModelFile = "handpose_estimation_mediapipe_2023feb_int8.onnx"
)

// InputSize is the model's square input edge in pixels.
const InputSize = 224

// ErrUnsupportedFrame is returned for frames that carry no pixel matrix.
var ErrUnsupportedFrame = errors.New("landmarknet: frame has no image data")

// MatFrame is a frame backed by an OpenCV matrix in BGR order.
type MatFrame interface {
	capture.Frame
	Mat() gocv.Mat
}

// Loader fetches the bytes behind a located file address.
type Loader func(ctx context.Context, url string) ([]byte, error)

// ModelFile returns the model file for a complexity level.
func ModelFile(complexity int) string {
	if complexity == gesture.ComplexityLite {
		return LiteModelFile
	}
	return FullModelFile
}

// Engine implements gesture.Engine.
type Engine struct {
	locate gesture.LocateFile
	load   Loader
	logger *slog.Logger

	mu       sync.Mutex
	opts     gesture.Options
	handler  func(gesture.Results)
	net      gocv.Net
	netFile  string
	tracking bool
	closed   bool
}

// New creates an engine. The model is loaded on the first Send through
// locate and load, so preloaded handles are honored.
func New(locate gesture.LocateFile, load Loader) *Engine {
	return &Engine{
		locate: locate,
		load:   load,
		logger: log.Component("landmarknet"),
		opts:   gesture.DefaultOptions(),
	}
}

// SetOptions validates and applies opts. A complexity change swaps the
// model on the next Send.
func (e *Engine) SetOptions(opts gesture.Options) error {
	if errs := opts.Validate(); len(errs) > 0 {
		return &gesture.OptionsError{Problems: errs}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if opts.MaxNumHands > 1 {
		e.logger.Warn("only one hand is tracked", "requested", opts.MaxNumHands)
	}
	e.opts = opts
	return nil
}

// OnResults registers the results handler.
func (e *Engine) OnResults(fn func(gesture.Results)) {
	e.mu.Lock()
	e.handler = fn
	e.mu.Unlock()
}

// Send runs the model on frame and delivers the results before returning.
func (e *Engine) Send(ctx context.Context, frame capture.Frame) error {
	mf, ok := frame.(MatFrame)
	if !ok {
		return ErrUnsupportedFrame
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return gesture.ErrEngineClosed
	}
	if err := e.ensureNet(ctx); err != nil {
		return err
	}

	res, err := e.infer(mf.Mat())
	if err != nil {
		return err
	}
	e.tracking = !res.Empty()

	if e.handler != nil {
		e.handler(res)
	}
	return nil
}

func (e *Engine) ensureNet(ctx context.Context) error {
	file := ModelFile(e.opts.ModelComplexity)
	if e.netFile == file {
		return nil
	}

	url := e.locate(file)
	data, err := e.load(ctx, url)
	if err != nil {
		return fmt.Errorf("landmarknet: load %s: %w", file, err)
	}
	net, err := gocv.ReadNetFromONNXBytes(data)
	if err != nil {
		return fmt.Errorf("landmarknet: parse %s: %w", file, err)
	}
	if net.Empty() {
		return fmt.Errorf("landmarknet: empty model %s", file)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	if e.netFile != "" {
		e.net.Close()
	}
	e.net = net
	e.netFile = file
	e.tracking = false
	e.logger.Info("model loaded", "file", file, "source", url, "bytes", len(data))
	return nil
}

func (e *Engine) infer(img gocv.Mat) (gesture.Results, error) {
	if img.Empty() {
		return gesture.Results{}, ErrUnsupportedFrame
	}
	crop := SquareCrop(img.Cols(), img.Rows())

	region := img.Region(crop)
	defer region.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(region, &resized, image.Pt(InputSize, InputSize), 0, 0, gocv.InterpolationLinear)

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(resized, &rgb, gocv.ColorBGRToRGB)

	scaled := gocv.NewMat()
	defer scaled.Close()
	rgb.ConvertToWithParams(&scaled, gocv.MatTypeCV32FC3, 1.0/255.0, 0)

	blob, err := gocv.NewMatWithSizesFromBytes([]int{1, InputSize, InputSize, 3}, gocv.MatTypeCV32F, scaled.ToBytes())
	if err != nil {
		return gesture.Results{}, fmt.Errorf("landmarknet: input tensor: %w", err)
	}
	defer blob.Close()

	e.net.SetInput(blob, "")
	outs := e.net.ForwardLayers(e.outputNames())
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()
	if len(outs) < 2 {
		return gesture.Results{}, fmt.Errorf("landmarknet: model returned %d outputs", len(outs))
	}

	coords, err := outs[0].DataPtrFloat32()
	if err != nil {
		return gesture.Results{}, fmt.Errorf("landmarknet: landmarks: %w", err)
	}
	score, err := outs[1].DataPtrFloat32()
	if err != nil {
		return gesture.Results{}, fmt.Errorf("landmarknet: score: %w", err)
	}
	if len(score) == 0 {
		return gesture.Results{}, errors.New("landmarknet: empty score output")
	}

	threshold := e.opts.MinDetectionConfidence
	if e.tracking {
		threshold = e.opts.MinTrackingConfidence
	}
	return Decode(coords, float64(score[0]), threshold, crop, img.Cols(), img.Rows()), nil
}

func (e *Engine) outputNames() []string {
	ids := e.net.GetUnconnectedOutLayers()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		layer := e.net.GetLayer(id)
		names = append(names, layer.GetName())
		layer.Close()
	}
	return names
}

// Close releases the model.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.netFile != "" {
		return e.net.Close()
	}
	return nil
}

// SquareCrop returns the largest centered square inside a w x h frame.
func SquareCrop(w, h int) image.Rectangle {
	side := min(w, h)
	x := (w - side) / 2
	y := (h - side) / 2
	return image.Rect(x, y, x+side, y+side)
}

// Decode converts raw model coordinates (x, y, z triples in input pixels)
// into frame-normalized landmarks. It returns no hands when score is below
// threshold, the coordinate set is short or any coordinate is not finite.
func Decode(coords []float32, score, threshold float64, crop image.Rectangle, frameW, frameH int) gesture.Results {
	if !(score >= threshold) || len(coords) < gesture.NumLandmarks*3 || frameW <= 0 || frameH <= 0 {
		return gesture.Results{}
	}
	for _, c := range coords[:gesture.NumLandmarks*3] {
		if f := float64(c); math.IsNaN(f) || math.IsInf(f, 0) {
			return gesture.Results{}
		}
	}
	side := float64(crop.Dx())
	hand := make([]gesture.Landmark, gesture.NumLandmarks)
	for i := range hand {
		x := float64(coords[i*3]) / InputSize
		y := float64(coords[i*3+1]) / InputSize
		z := float64(coords[i*3+2]) / InputSize
		hand[i] = gesture.Landmark{
			X: (float64(crop.Min.X) + x*side) / float64(frameW),
			Y: (float64(crop.Min.Y) + y*side) / float64(frameH),
			Z: z,
		}
	}
	return gesture.Results{Hands: [][]gesture.Landmark{hand}}
}
