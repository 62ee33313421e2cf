package preload

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/teslashibe/go-handscroll/internal/httpc"
)

// Locator resolves asset file names for the inference-engine bootstrap.
// With a handle mapping it points at the local handles; with a nil mapping
// (after a failed preload) every file resolves to its remote URL.
type Locator struct {
	baseURL  string
	handles  map[string]*Handle
	registry *Registry
	client   *http.Client
}

// NewLocator creates a locator. handles may be nil for full remote fallback.
func NewLocator(baseURL string, handles map[string]*Handle, registry *Registry) *Locator {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Locator{
		baseURL:  baseURL,
		handles:  handles,
		registry: registry,
		client:   httpc.StreamClient,
	}
}

// WithHTTPClient sets the client used for remote fetches.
func (l *Locator) WithHTTPClient(c *http.Client) *Locator {
	l.client = c
	return l
}

// Preloaded reports whether the locator serves local handles.
func (l *Locator) Preloaded() bool { return len(l.handles) > 0 }

// Locate returns the address for file: its handle URL when preloaded,
// otherwise the remote URL.
func (l *Locator) Locate(file string) string {
	if h, ok := l.handles[file]; ok {
		return h.URL
	}
	return JoinURL(l.baseURL, file)
}

// Open returns the bytes behind url. Blob URLs come from the registry,
// anything else is fetched.
func (l *Locator) Open(ctx context.Context, url string) ([]byte, error) {
	if IsBlobURL(url) {
		h, ok := l.registry.Lookup(url)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, url)
		}
		return h.Bytes(), nil
	}

	resp, err := httpc.Get(ctx, l.client, url)
	if err != nil {
		return nil, &TransferError{Asset: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransferError{Asset: url, StatusCode: resp.StatusCode, Err: ErrBadStatus}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransferError{Asset: url, Err: err}
	}
	return data, nil
}

// Load is Open(Locate(file)).
func (l *Locator) Load(ctx context.Context, file string) ([]byte, error) {
	return l.Open(ctx, l.Locate(file))
}
