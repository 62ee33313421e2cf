// Package preload fetches a fixed set of binary assets in parallel, reports a
// single global progress figure across all of them, and turns each completed
// stream into an in-memory Handle.
//
// A batch is all-or-nothing: on any failure Preload returns a *PreloadError
// and no handles, and the caller resolves every asset from its remote URL
// instead (see Locator).
package preload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-handscroll/internal/httpc"
	"github.com/teslashibe/go-handscroll/internal/log"
)

const tracerName = "github.com/teslashibe/go-handscroll/pkg/preload"

// Request names one asset and where to fetch it.
type Request struct {
	ID  string // Key in the returned mapping, e.g. the file name
	URL string
}

// Requests builds one request per file under baseURL.
func Requests(baseURL string, files []string) []Request {
	reqs := make([]Request, 0, len(files))
	for _, f := range files {
		reqs = append(reqs, Request{ID: f, URL: JoinURL(baseURL, f)})
	}
	return reqs
}

// JoinURL appends file to base with exactly one slash between them.
func JoinURL(base, file string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(file, "/")
}

// Preloader runs batches of downloads.
type Preloader struct {
	client    *http.Client
	registry  *Registry
	interval  time.Duration
	chunkSize int
	now       func() time.Time
	tracer    trace.Tracer
	logger    *slog.Logger
}

// Option configures a Preloader.
type Option func(*Preloader)

// WithClient sets the HTTP client. It should not carry an overall timeout.
func WithClient(c *http.Client) Option {
	return func(p *Preloader) { p.client = c }
}

// WithRegistry sets the registry that will own created handles.
func WithRegistry(r *Registry) Option {
	return func(p *Preloader) { p.registry = r }
}

// WithInterval sets the minimum gap between progress callbacks.
func WithInterval(d time.Duration) Option {
	return func(p *Preloader) { p.interval = d }
}

// WithReadChunk sets the per-read buffer size of every tracker.
func WithReadChunk(n int) Option {
	return func(p *Preloader) { p.chunkSize = n }
}

// WithNow overrides the wall clock used for progress and speed.
func WithNow(now func() time.Time) Option {
	return func(p *Preloader) { p.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Preloader) { p.logger = l }
}

// New creates a Preloader.
func New(opts ...Option) *Preloader {
	p := &Preloader{
		client:    httpc.StreamClient,
		interval:  DefaultProgressInterval,
		chunkSize: DefaultChunkSize,
		now:       time.Now,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = NewRegistry()
	}
	if p.logger == nil {
		p.logger = log.Component("preload")
	}
	return p
}

// Registry returns the registry owning this preloader's handles.
func (p *Preloader) Registry() *Registry { return p.registry }

// Preload fetches every request concurrently and returns a handle per id.
// onProgress may be nil. Assets already held by the registry are not fetched
// again. Either every id maps to a handle or a *PreloadError is returned with
// a nil map.
func (p *Preloader) Preload(ctx context.Context, reqs []Request, onProgress ProgressFunc) (map[string]*Handle, error) {
	ctx, span := p.tracer.Start(ctx, "preload.Batch",
		trace.WithAttributes(attribute.Int("preload.assets", len(reqs))))
	defer span.End()

	handles, err := p.preload(ctx, reqs, onProgress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("preload failed", "error", err, "failed", FailedAssets(err))
		return nil, err
	}
	return handles, nil
}

func (p *Preloader) preload(ctx context.Context, reqs []Request, onProgress ProgressFunc) (map[string]*Handle, error) {
	if err := validate(reqs); err != nil {
		return nil, &PreloadError{Stage: "request", Err: err}
	}

	handles := make(map[string]*Handle, len(reqs))
	var pending []Request
	for _, r := range reqs {
		if h, ok := p.registry.Get(r.ID); ok {
			handles[r.ID] = h
			continue
		}
		pending = append(pending, r)
	}
	if len(pending) == 0 {
		NewAggregator(0, p.interval, p.now, onProgress).Finish()
		return handles, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Requests share the join's context so the first failed stream cancels
	// every other transfer.
	g, gctx := errgroup.WithContext(ctx)

	resps, err := p.fetchAll(gctx, pending)
	if err != nil {
		return nil, err
	}

	total, err := checkResponses(pending, resps)
	if err != nil {
		closeAll(resps)
		return nil, err
	}

	agg := NewAggregator(total, p.interval, p.now, onProgress)
	blobs, err := p.readAll(g, gctx, pending, resps, agg)
	if err != nil {
		closeAll(resps)
		return nil, err
	}
	final := agg.Finish()

	for i, r := range pending {
		handles[r.ID] = p.registry.register(r.ID, blobs[i])
	}
	p.logger.Info("preload complete",
		"assets", len(pending),
		"bytes", final.Loaded,
		"elapsed", final.Elapsed.Round(time.Millisecond),
		"mbps", fmt.Sprintf("%.2f", final.SpeedMBps()))
	return handles, nil
}

// fetchAll issues every request at once and waits for all response headers.
func (p *Preloader) fetchAll(ctx context.Context, reqs []Request) ([]*http.Response, error) {
	resps := make([]*http.Response, len(reqs))
	errs := make([]error, len(reqs))

	var g errgroup.Group
	for i, r := range reqs {
		g.Go(func() error {
			resp, err := httpc.Get(ctx, p.client, r.URL)
			if err != nil {
				errs[i] = &TransferError{Asset: r.ID, Err: err}
				return nil
			}
			resps[i] = resp
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		closeAll(resps)
		return nil, &PreloadError{Stage: "request", Err: err}
	}
	return resps, nil
}

// checkResponses validates every status before any body is read and sums the
// declared lengths. The total is 0 if any length is missing.
func checkResponses(reqs []Request, resps []*http.Response) (int64, error) {
	var errs []error
	var total int64
	known := true
	for i, resp := range resps {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			errs = append(errs, &TransferError{Asset: reqs[i].ID, StatusCode: resp.StatusCode, Err: ErrBadStatus})
			continue
		}
		if resp.ContentLength < 0 {
			known = false
			continue
		}
		total += resp.ContentLength
	}
	if err := errors.Join(errs...); err != nil {
		return 0, &PreloadError{Stage: "status", Err: err}
	}
	if !known {
		total = 0
	}
	return total, nil
}

// readAll runs one tracker per response on g and joins them. The first
// failure cancels gctx, which aborts the remaining transfers.
func (p *Preloader) readAll(g *errgroup.Group, gctx context.Context, reqs []Request, resps []*http.Response, agg *Aggregator) ([]Blob, error) {
	blobs := make([]Blob, len(reqs))

	for i, r := range reqs {
		t, err := NewTracker(r.ID, resps[i], WithOnBytes(agg.Add), WithChunkSize(p.chunkSize))
		if err != nil {
			g.Go(func() error { return err })
			break
		}
		g.Go(func() error {
			sctx, span := p.tracer.Start(gctx, "preload.Asset", trace.WithAttributes(
				attribute.String("preload.asset", r.ID),
				attribute.Int64("preload.declared_bytes", t.Total()),
			))
			defer span.End()

			b, err := t.Wait(sctx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			span.SetAttributes(attribute.Int("preload.bytes", len(b.Data)))
			blobs[i] = b
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		stage := "stream"
		var te *TransferError
		if errors.As(err, &te) && te.StatusCode != 0 {
			stage = "status"
		}
		return nil, &PreloadError{Stage: stage, Err: err}
	}
	return blobs, nil
}

func validate(reqs []Request) error {
	if len(reqs) == 0 {
		return ErrNoRequests
	}
	seen := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		if r.ID == "" || r.URL == "" {
			return fmt.Errorf("preload: request %q needs an id and a url", r.ID)
		}
		if seen[r.ID] {
			return fmt.Errorf("preload: duplicate request id %q", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}

func closeAll(resps []*http.Response) {
	for _, resp := range resps {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
	}
}
