package preload

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common conditions.
var (
	// ErrPreload matches every *PreloadError via errors.Is.
	ErrPreload = errors.New("preload: failed")

	// ErrBadStatus is wrapped by a TransferError for a non-success response.
	ErrBadStatus = errors.New("preload: non-success status")

	// ErrNoRequests is returned when Preload is called with nothing to fetch.
	ErrNoRequests = errors.New("preload: no requests")

	// ErrUnknownHandle is returned when a blob URL is not registered.
	ErrUnknownHandle = errors.New("preload: unknown handle")
)

// TransferError reports that one asset's stream failed.
type TransferError struct {
	// Asset is the request identifier.
	Asset string

	// StatusCode is the HTTP status, or 0 when the failure was not a status.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("preload [%s]: HTTP %d %s", e.Asset, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("preload [%s]: %v", e.Asset, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransferError) Unwrap() error {
	return e.Err
}

// PreloadError is returned for a failed batch. No handle mapping accompanies it;
// callers fall back to remote URLs for every asset.
type PreloadError struct {
	// Stage is where the batch failed: "request", "status" or "stream".
	Stage string

	// Err holds the TransferError(s) behind the failure.
	Err error
}

// Error implements the error interface.
func (e *PreloadError) Error() string {
	return fmt.Sprintf("preload: batch failed at %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *PreloadError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrPreload) match any PreloadError.
func (e *PreloadError) Is(target error) bool {
	return target == ErrPreload
}

// FailedAssets lists the identifiers of every TransferError inside err.
func FailedAssets(err error) []string {
	var ids []string
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if te, ok := e.(*TransferError); ok {
			ids = append(ids, te.Asset)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return ids
}
