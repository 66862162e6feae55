package encoder

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageInfo describes an image without decoding its pixels.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// MIMEType returns the MIME type for the detected format.
func (i ImageInfo) MIMEType() string {
	return "image/" + i.Format
}

// Inspect reads the image header and returns its format and dimensions.
// Bytes that no registered decoder recognizes wrap ErrDecodeFailure.
func Inspect(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, fmt.Errorf("%w: empty image", ErrDecodeFailure)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, fmt.Errorf("%w: invalid dimensions %dx%d", ErrDecodeFailure, cfg.Width, cfg.Height)
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
