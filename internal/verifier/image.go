package verifier

import (
	"encoding/base64"
	"strings"
)

// DecodeImageData decodes base64 image data, dropping everything up to and
// including the first comma so data URLs are accepted as well.
func DecodeImageData(data string) ([]byte, error) {
	if i := strings.IndexByte(data, ','); i >= 0 {
		data = data[i+1:]
	}
	data = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, data)

	if data == "" {
		return nil, ErrInvalidImageEncoding.with("", nil)
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidImageEncoding.with("", err)
	}
	return decoded, nil
}
