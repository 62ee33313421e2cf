package capture

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoDevice is returned when no video device matches the constraints.
	ErrNoDevice = errors.New("capture: no video device")

	// ErrPermissionDenied is returned when the process may not open the device.
	ErrPermissionDenied = errors.New("capture: permission denied")

	// ErrDeviceBusy is returned when the device exists but cannot be read.
	ErrDeviceBusy = errors.New("capture: device not readable")

	// ErrAborted is returned when the request was cancelled before a stream
	// was granted.
	ErrAborted = errors.New("capture: request aborted")

	// ErrInvalidTransition is returned when a session readiness change skips a state.
	ErrInvalidTransition = errors.New("capture: invalid readiness transition")

	// ErrAlreadyStarted is returned by Start on a loop that left Idle.
	ErrAlreadyStarted = errors.New("capture: loop already started")
)

// DeviceErrorKind classifies device acquisition failures.
type DeviceErrorKind int

const (
	NotFound DeviceErrorKind = iota
	PermissionDenied
	NotReadable
	Aborted
)

func (k DeviceErrorKind) String() string {
	switch k {
	case NotFound:
		return "NotFoundError"
	case PermissionDenied:
		return "NotAllowedError"
	case NotReadable:
		return "NotReadableError"
	case Aborted:
		return "AbortError"
	default:
		return fmt.Sprintf("DeviceErrorKind(%d)", int(k))
	}
}

func (k DeviceErrorKind) sentinel() error {
	switch k {
	case NotFound:
		return ErrNoDevice
	case PermissionDenied:
		return ErrPermissionDenied
	case NotReadable:
		return ErrDeviceBusy
	default:
		return ErrAborted
	}
}

// DeviceAccessError is a failure to acquire or keep a video stream. It is
// fatal to gesture control only.
type DeviceAccessError struct {
	Kind   DeviceErrorKind
	Device string
	Err    error
}

// Error implements the error interface.
func (e *DeviceAccessError) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Device != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Device)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DeviceAccessError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *DeviceAccessError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// deviceError classifies err, keeping an existing *DeviceAccessError as is.
func deviceError(err error) *DeviceAccessError {
	var de *DeviceAccessError
	if errors.As(err, &de) {
		return de
	}
	kind := NotReadable
	switch {
	case errors.Is(err, ErrNoDevice):
		kind = NotFound
	case errors.Is(err, ErrPermissionDenied):
		kind = PermissionDenied
	case errors.Is(err, ErrAborted), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = Aborted
	}
	return &DeviceAccessError{Kind: kind, Err: err}
}

// InferenceSubmissionError is a failed frame submission. The loop logs it
// and continues with the next tick.
type InferenceSubmissionError struct {
	Seq uint64 // Submission sequence number
	Err error
}

// Error implements the error interface.
func (e *InferenceSubmissionError) Error() string {
	return fmt.Sprintf("capture: frame %d submission failed: %v", e.Seq, e.Err)
}

// Unwrap returns the underlying error.
func (e *InferenceSubmissionError) Unwrap() error {
	return e.Err
}
