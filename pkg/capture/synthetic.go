package capture

import (
	"context"
	"sync/atomic"

	"github.com/teslashibe/go-handscroll/pkg/camera"
)

// SyntheticFrame is a frame with dimensions and a sequence number but no
// pixels.
type SyntheticFrame struct {
	W, H int
	Seq  uint64
}

func (f SyntheticFrame) Width() int  { return f.W }
func (f SyntheticFrame) Height() int { return f.H }

// SyntheticDevice grants streams of blank frames at the requested size. It
// stands in for a camera in demos and tests.
type SyntheticDevice struct{}

// Open returns a stream whose metadata is ready immediately.
func (SyntheticDevice) Open(ctx context.Context, cfg camera.Config) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, &DeviceAccessError{Kind: Aborted, Device: "synthetic", Err: err}
	}
	meta := make(chan struct{})
	close(meta)
	return &syntheticStream{w: cfg.Width, h: cfg.Height, meta: meta}, nil
}

type syntheticStream struct {
	w, h   int
	meta   chan struct{}
	seq    atomic.Uint64
	closed atomic.Bool
}

func (s *syntheticStream) Metadata() <-chan struct{} { return s.meta }

func (s *syntheticStream) Latest() Frame {
	if s.closed.Load() {
		return nil
	}
	return SyntheticFrame{W: s.w, H: s.h, Seq: s.seq.Add(1)}
}

func (s *syntheticStream) Err() error { return nil }

func (s *syntheticStream) Failed() <-chan struct{} { return nil }

func (s *syntheticStream) Close() error {
	s.closed.Store(true)
	return nil
}
