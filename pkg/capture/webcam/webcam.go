// Package webcam implements capture.Device over an OpenCV VideoCapture.
package webcam

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-handscroll/internal/log"
	"github.com/teslashibe/go-handscroll/pkg/camera"
	"github.com/teslashibe/go-handscroll/pkg/capture"
)

// MaxReadFailures is how many consecutive empty reads end a stream.
const MaxReadFailures = 30

// Device opens local cameras by index.
type Device struct {
	logger *slog.Logger
}

// New creates a webcam device.
func New() *Device {
	return &Device{logger: log.Component("webcam")}
}

// Open opens the camera selected by cfg and starts reading frames.
func (d *Device) Open(ctx context.Context, cfg camera.Config) (capture.Stream, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("webcam: invalid config: %v", errs)
	}
	if err := ctx.Err(); err != nil {
		return nil, &capture.DeviceAccessError{Kind: capture.Aborted, Err: err}
	}

	idx := cfg.Index()
	name := DevicePath(idx)
	if runtime.GOOS == "linux" {
		if err := CheckNode(name); err != nil {
			return nil, err
		}
	}

	vc, err := gocv.OpenVideoCapture(idx)
	if err != nil {
		return nil, &capture.DeviceAccessError{Kind: capture.NotReadable, Device: name, Err: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &capture.DeviceAccessError{Kind: capture.NotReadable, Device: name}
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	d.logger.Info("camera opened", "device", name,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight))

	s := newStream(vc, name)
	go s.read()
	return s, nil
}

// DevicePath returns the video4linux node for a camera index.
func DevicePath(idx int) string {
	return fmt.Sprintf("/dev/video%d", idx)
}

// CheckNode classifies why a device node cannot be used, or returns nil.
func CheckNode(path string) error {
	f, err := os.Open(path)
	switch {
	case err == nil:
		f.Close()
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return &capture.DeviceAccessError{Kind: capture.NotFound, Device: path, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return &capture.DeviceAccessError{Kind: capture.PermissionDenied, Device: path, Err: err}
	default:
		return &capture.DeviceAccessError{Kind: capture.NotReadable, Device: path, Err: err}
	}
}

// Frame is a decoded BGR frame. The loop closes it after submission.
type Frame struct {
	mat gocv.Mat
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.mat.Cols() }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.mat.Rows() }

// Mat returns the underlying matrix. It is valid until Close.
func (f *Frame) Mat() gocv.Mat { return f.mat }

// Close releases the matrix.
func (f *Frame) Close() error { return f.mat.Close() }

type stream struct {
	vc   *gocv.VideoCapture
	name string

	meta     chan struct{}
	metaOnce sync.Once
	failed   chan struct{}
	quit     chan struct{}
	done     chan struct{}

	mu     sync.Mutex
	latest gocv.Mat
	have   bool
	err    error

	closeOnce sync.Once
}

func newStream(vc *gocv.VideoCapture, name string) *stream {
	return &stream{
		vc:     vc,
		name:   name,
		meta:   make(chan struct{}),
		failed: make(chan struct{}),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (s *stream) read() {
	defer close(s.done)
	img := gocv.NewMat()
	defer img.Close()

	failures := 0
	for {
		select {
		case <-s.quit:
			return
		default:
		}

		if ok := s.vc.Read(&img); !ok || img.Empty() {
			failures++
			if failures >= MaxReadFailures {
				s.mu.Lock()
				s.err = &capture.DeviceAccessError{Kind: capture.NotReadable, Device: s.name,
					Err: fmt.Errorf("%d consecutive empty reads", failures)}
				s.mu.Unlock()
				close(s.failed)
				return
			}
			continue
		}
		failures = 0

		s.mu.Lock()
		if s.have {
			s.latest.Close()
		}
		s.latest = img.Clone()
		s.have = true
		s.mu.Unlock()

		s.metaOnce.Do(func() { close(s.meta) })
	}
}

func (s *stream) Metadata() <-chan struct{} { return s.meta }

func (s *stream) Failed() <-chan struct{} { return s.failed }

// Latest returns a copy of the newest frame so the reader can keep going
// while the copy is being processed.
func (s *stream) Latest() capture.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.have {
		return nil
	}
	return &Frame{mat: s.latest.Clone()}
}

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.done
		err = s.vc.Close()

		s.mu.Lock()
		if s.have {
			s.latest.Close()
			s.have = false
		}
		s.mu.Unlock()
	})
	return err
}
