package preload

import (
	"bytes"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// BlobScheme prefixes the locally addressable URL of every Handle.
const BlobScheme = "blob:handscroll/"

// Handle is an in-memory, locally addressable reference to a fully
// downloaded asset. Handles live for the process lifetime.
type Handle struct {
	ID          string
	URL         string
	ContentType string
	data        []byte
}

// Bytes returns the asset content. Callers must not modify it.
func (h *Handle) Bytes() []byte { return h.data }

// Size returns the content length in bytes.
func (h *Handle) Size() int { return len(h.data) }

// Reader returns a fresh reader over the content.
func (h *Handle) Reader() *bytes.Reader { return bytes.NewReader(h.data) }

// Registry owns every Handle created in the process and resolves blob URLs.
type Registry struct {
	mu    sync.RWMutex
	byURL map[string]*Handle
	byID  map[string]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byURL: make(map[string]*Handle),
		byID:  make(map[string]*Handle),
	}
}

// register creates the handle for id. The first handle for an id wins.
func (r *Registry) register(id string, b Blob) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.byID[id]; ok {
		return h
	}
	h := &Handle{
		ID:          id,
		URL:         BlobScheme + uuid.NewString(),
		ContentType: b.ContentType,
		data:        b.Data,
	}
	r.byURL[h.URL] = h
	r.byID[id] = h
	return h
}

// Lookup resolves a blob URL.
func (r *Registry) Lookup(url string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byURL[url]
	return h, ok
}

// Get returns the handle for an asset identifier.
func (r *Registry) Get(id string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[id]
	return h, ok
}

// Handles returns every registered handle ordered by identifier.
func (r *Registry) Handles() []*Handle {
	r.mu.RLock()
	out := make([]*Handle, 0, len(r.byID))
	for _, h := range r.byID {
		out = append(out, h)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsBlobURL reports whether url addresses a registry handle.
func IsBlobURL(url string) bool {
	return strings.HasPrefix(url, BlobScheme)
}
