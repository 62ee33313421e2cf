package preload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocator_PrefersHandles(t *testing.T) {
	reg := NewRegistry()
	h := reg.register("model.onnx", Blob{Data: []byte("weights"), ContentType: "application/octet-stream"})

	l := NewLocator("https://cdn.example/models/", map[string]*Handle{"model.onnx": h}, reg)
	assert.True(t, l.Preloaded())
	assert.Equal(t, h.URL, l.Locate("model.onnx"))
	assert.Equal(t, "https://cdn.example/models/other.bin", l.Locate("other.bin"))

	data, err := l.Load(context.Background(), "model.onnx")
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
}

func TestLocator_FallsBackToRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/model.onnx" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "remote-weights")
	}))
	defer srv.Close()

	l := NewLocator(srv.URL+"/models", nil, nil)
	assert.False(t, l.Preloaded())
	assert.Equal(t, srv.URL+"/models/model.onnx", l.Locate("model.onnx"))

	data, err := l.Load(context.Background(), "model.onnx")
	require.NoError(t, err)
	assert.Equal(t, "remote-weights", string(data))

	_, err = l.Load(context.Background(), "missing.onnx")
	var te *TransferError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
}

func TestLocator_UnknownBlob(t *testing.T) {
	l := NewLocator("https://cdn.example/", nil, NewRegistry())
	_, err := l.Open(context.Background(), BlobScheme+"nope")
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestRegistry_FirstHandleWins(t *testing.T) {
	reg := NewRegistry()
	a := reg.register("x", Blob{Data: []byte("1")})
	b := reg.register("x", Blob{Data: []byte("2")})
	assert.Same(t, a, b)
	assert.Len(t, reg.Handles(), 1)

	got, ok := reg.Get("x")
	assert.True(t, ok)
	assert.Equal(t, "1", string(got.Bytes()))
	assert.Equal(t, 1, got.Size())
}
