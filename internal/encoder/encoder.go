// Package encoder turns face images into embeddings by calling an external
// face-embedding server.
package encoder

import (
	"context"
	"errors"

	"github.com/kozaktomas/face-auth/internal/facematch"
)

var (
	// ErrDecodeFailure is returned when the image bytes are not a decodable image.
	ErrDecodeFailure = errors.New("image could not be decoded")
	// ErrUnavailable is returned when the embedding server cannot be reached or fails.
	ErrUnavailable = errors.New("face encoder unavailable")
)

// Encoder detects faces in an image and returns one embedding per face.
// An image without faces yields an empty slice and no error.
type Encoder interface {
	Encode(ctx context.Context, image []byte) ([]facematch.Embedding, error)
}

// Func adapts a plain function to the Encoder interface.
type Func func(ctx context.Context, image []byte) ([]facematch.Embedding, error)

// Encode implements Encoder.
func (f Func) Encode(ctx context.Context, image []byte) ([]facematch.Embedding, error) {
	return f(ctx, image)
}
