package gesture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teslashibe/go-handscroll/pkg/capture"
)

// ErrEngineClosed is returned by Send after Close.
var ErrEngineClosed = errors.New("gesture: engine closed")

// Model complexity levels.
const (
	ComplexityLite = 0
	ComplexityFull = 1
)

// Options tune the inference engine.
type Options struct {
	MaxNumHands            int     `json:"max_num_hands"`
	ModelComplexity        int     `json:"model_complexity"`
	MinDetectionConfidence float64 `json:"min_detection_confidence"`
	MinTrackingConfidence  float64 `json:"min_tracking_confidence"`
}

// DefaultOptions tracks one hand with the full model.
func DefaultOptions() Options {
	return Options{
		MaxNumHands:            1,
		ModelComplexity:        ComplexityFull,
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
	}
}

// Validate checks if the option values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (o *Options) Validate() []string {
	var errs []string
	if o.MaxNumHands < 1 {
		errs = append(errs, "max_num_hands must be at least 1")
	}
	if o.ModelComplexity != ComplexityLite && o.ModelComplexity != ComplexityFull {
		errs = append(errs, "model_complexity must be 0 or 1")
	}
	if o.MinDetectionConfidence < 0 || o.MinDetectionConfidence > 1 {
		errs = append(errs, "min_detection_confidence must be between 0 and 1")
	}
	if o.MinTrackingConfidence < 0 || o.MinTrackingConfidence > 1 {
		errs = append(errs, "min_tracking_confidence must be between 0 and 1")
	}
	return errs
}

// LocateFile maps a model file name to the address it should be loaded from.
type LocateFile func(file string) string

// Engine is an asynchronous hand-landmark detector. Send resolves when the
// engine is done with the frame; results are delivered to the OnResults
// handler, possibly on another goroutine.
type Engine interface {
	SetOptions(opts Options) error
	OnResults(fn func(Results))
	Send(ctx context.Context, frame capture.Frame) error
	Close() error
}

// OptionsError lists rejected engine options.
type OptionsError struct {
	Problems []string
}

// Error implements the error interface.
func (e *OptionsError) Error() string {
	return fmt.Sprintf("gesture: invalid options: %s", strings.Join(e.Problems, "; "))
}
