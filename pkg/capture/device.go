package capture

import (
	"context"

	"github.com/teslashibe/go-handscroll/pkg/camera"
)

// Frame is one decoded video frame. Implementations that hold native
// resources also implement io.Closer; the loop closes every frame it
// obtained once its submission has resolved.
type Frame interface {
	Width() int
	Height() int
}

// Stream is a granted video stream.
type Stream interface {
	// Metadata is closed once frame dimensions are known and frames are
	// guaranteed decodable.
	Metadata() <-chan struct{}

	// Latest returns the most recent frame, or nil if none is available.
	Latest() Frame

	// Err returns a non-nil error once the device has failed for good.
	Err() error

	// Failed is closed when Err becomes non-nil. A nil channel means the
	// stream never fails.
	Failed() <-chan struct{}

	// Close releases the device.
	Close() error
}

// Device grants video streams.
type Device interface {
	Open(ctx context.Context, cfg camera.Config) (Stream, error)
}

// Submitter accepts one frame for inference and returns when the engine
// has finished with it.
type Submitter interface {
	Send(ctx context.Context, frame Frame) error
}

// FrameReady reports whether f has decodable dimensions.
func FrameReady(f Frame) bool {
	return f != nil && f.Width() > 0 && f.Height() > 0
}
