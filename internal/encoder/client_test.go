package encoder

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-auth/internal/facematch"
)

func newFaceServer(t *testing.T, status int, resp any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embed/face", r.URL.Path)

		file, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			defer file.Close()
			data, _ := io.ReadAll(file)
			assert.NotEmpty(t, data)
			assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClient_Encode(t *testing.T) {
	srv, calls := newFaceServer(t, http.StatusOK, FaceResponse{
		FacesCount: 2,
		Faces: []FaceDetection{
			{FaceIndex: 1, Dim: 3, Embedding: []float32{0.4, 0.5, 0.6}},
			{FaceIndex: 0, Dim: 3, Embedding: []float32{0.1, 0.2, 0.3}},
		},
		Model: "buffalo_l",
	})

	c := NewClient(srv.URL+"/", time.Second)
	embs, err := c.Encode(context.Background(), encodeJPEG(t, 32, 32))
	require.NoError(t, err)
	assert.Equal(t, []facematch.Embedding{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}}, embs)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_EncodeNoFaces(t *testing.T) {
	srv, _ := newFaceServer(t, http.StatusOK, FaceResponse{FacesCount: 0, Faces: []FaceDetection{}})

	embs, err := NewClient(srv.URL, time.Second).Encode(context.Background(), encodeJPEG(t, 16, 16))
	require.NoError(t, err)
	assert.Empty(t, embs)
}

func TestClient_EncodeInvalidImageSkipsServer(t *testing.T) {
	srv, calls := newFaceServer(t, http.StatusOK, FaceResponse{})

	_, err := NewClient(srv.URL, time.Second).Encode(context.Background(), []byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrDecodeFailure)
	assert.Equal(t, int32(0), calls.Load())
}

func TestClient_EncodeServerErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"server rejects image", http.StatusBadRequest, ErrDecodeFailure},
		{"unprocessable image", http.StatusUnprocessableEntity, ErrDecodeFailure},
		{"internal error", http.StatusInternalServerError, ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, ErrUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newFaceServer(t, tc.status, map[string]string{"detail": "nope"})

			_, err := NewClient(srv.URL, time.Second).Encode(context.Background(), encodeJPEG(t, 16, 16))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestClient_EncodeMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Encode(context.Background(), encodeJPEG(t, 16, 16))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_EncodeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).Encode(context.Background(), encodeJPEG(t, 16, 16))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFunc(t *testing.T) {
	var enc Encoder = Func(func(_ context.Context, _ []byte) ([]facematch.Embedding, error) {
		return []facematch.Embedding{{1}}, nil
	})
	embs, err := enc.Encode(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, embs, 1)
}
