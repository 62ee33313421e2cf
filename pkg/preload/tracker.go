package preload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"time"
)

// DefaultChunkSize is the read size for each step of a tracker.
const DefaultChunkSize = 32 * 1024

// DefaultContentType is used when a response declares none.
const DefaultContentType = "application/octet-stream"

// Snapshot is the state of one stream after a chunk arrived.
type Snapshot struct {
	ID         string
	BytesSoFar int64
	Total      int64 // Declared length, 0 when unknown
}

// Blob is a fully received stream.
type Blob struct {
	Data        []byte
	ContentType string
}

// Tracker counts the bytes of one response body as they arrive and
// accumulates them. A Tracker is not safe for concurrent use.
type Tracker struct {
	id          string
	body        io.ReadCloser
	total       int64
	contentType string

	chunk []byte
	buf   bytes.Buffer
	read  int64
	done  bool
	err   error

	onBytes    func(n int)
	onProgress func(Snapshot)
	gate       throttle
	now        func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithChunkSize sets the per-read buffer size.
func WithChunkSize(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.chunk = make([]byte, n)
		}
	}
}

// WithOnBytes registers an unthrottled hook called with every increment.
// The preloader uses it to feed the shared Aggregator.
func WithOnBytes(fn func(n int)) TrackerOption {
	return func(t *Tracker) { t.onBytes = fn }
}

// WithProgress registers a per-stream callback invoked at most once per interval.
func WithProgress(fn func(Snapshot), interval time.Duration) TrackerOption {
	return func(t *Tracker) {
		if interval <= 0 {
			interval = DefaultProgressInterval
		}
		t.onProgress = fn
		t.gate = throttle{interval: interval}
	}
}

// WithClock overrides the wall clock used for rate limiting.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// maxPrealloc caps the buffer reserved up front from Content-Length.
const maxPrealloc = 64 << 20

// NewTracker wraps resp for asset id. A non-2xx status closes the body and
// fails with a *TransferError; nothing is retried.
func NewTracker(id string, resp *http.Response, opts ...TrackerOption) (*Tracker, error) {
	if resp == nil || resp.Body == nil {
		return nil, &TransferError{Asset: id, Err: errors.New("preload: empty response")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &TransferError{Asset: id, StatusCode: resp.StatusCode, Err: ErrBadStatus}
	}

	t := &Tracker{
		id:          id,
		body:        resp.Body,
		total:       max(resp.ContentLength, 0),
		contentType: resp.Header.Get("Content-Type"),
		chunk:       make([]byte, DefaultChunkSize),
		now:         time.Now,
	}
	if t.contentType == "" {
		t.contentType = DefaultContentType
	}
	if t.total > 0 {
		t.buf.Grow(int(min(t.total, maxPrealloc)))
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// ID returns the asset identifier.
func (t *Tracker) ID() string { return t.id }

// Total returns the declared length, 0 when unknown.
func (t *Tracker) Total() int64 { return t.total }

// BytesSoFar returns how many bytes have been received.
func (t *Tracker) BytesSoFar() int64 { return t.read }

// Done reports whether the stream has ended, successfully or not.
func (t *Tracker) Done() bool { return t.done }

// Snapshots returns a lazy sequence of progress snapshots. Each call starts a
// new iteration from the current read position; iterating reads the body one
// chunk per step. A failure is yielded once as a *TransferError.
func (t *Tracker) Snapshots(ctx context.Context) iter.Seq2[Snapshot, error] {
	return func(yield func(Snapshot, error) bool) {
		if t.err != nil {
			yield(Snapshot{ID: t.id, BytesSoFar: t.read, Total: t.total}, t.err)
			return
		}
		for !t.done {
			s, ok, err := t.step(ctx)
			if err != nil {
				yield(s, err)
				return
			}
			if ok && !yield(s, nil) {
				return
			}
		}
	}
}

// Wait drains the stream and returns the complete blob.
func (t *Tracker) Wait(ctx context.Context) (Blob, error) {
	for _, err := range t.Snapshots(ctx) {
		if err != nil {
			return Blob{}, err
		}
	}
	if t.err != nil {
		return Blob{}, t.err
	}
	return Blob{Data: t.buf.Bytes(), ContentType: t.contentType}, nil
}

// step reads one chunk. ok is false when nothing new arrived.
func (t *Tracker) step(ctx context.Context) (Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return t.snapshot(), false, t.fail(err)
	}

	n, err := t.body.Read(t.chunk)
	if n > 0 {
		t.buf.Write(t.chunk[:n])
		t.read += int64(n)
		if t.onBytes != nil {
			t.onBytes(n)
		}
		if t.onProgress != nil && t.gate.allow(t.now()) {
			t.onProgress(t.snapshot())
		}
	}

	switch {
	case errors.Is(err, io.EOF):
		t.done = true
		t.body.Close()
	case err != nil:
		return t.snapshot(), false, t.fail(err)
	}
	return t.snapshot(), n > 0, nil
}

func (t *Tracker) fail(err error) error {
	t.done = true
	t.body.Close()
	t.err = &TransferError{Asset: t.id, Err: err}
	return t.err
}

func (t *Tracker) snapshot() Snapshot {
	return Snapshot{ID: t.id, BytesSoFar: t.read, Total: t.total}
}
