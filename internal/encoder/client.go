package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"strings"
	"time"

	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/metrics"
)

const defaultEncoderURL = "http://localhost:8000"

// maxResponseSize caps the embedding server response body.
const maxResponseSize = 4 << 20

// Ensure Client implements Encoder interface at compile time
var _ Encoder = (*Client)(nil)

// Client computes face embeddings using the embedding server
type Client struct {
	baseURL  string
	client   *http.Client
	recorder metrics.Recorder
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithRecorder sets the metrics recorder for encoder calls.
func WithRecorder(r metrics.Recorder) ClientOption {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// NewClient creates a new embedding server client. A zero timeout uses the
// default encoder timeout.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = defaultEncoderURL
	}
	if timeout <= 0 {
		timeout = constants.DefaultEncoderTimeout
	}
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		recorder: metrics.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Encode validates the image locally, then asks the embedding server for
// the faces it contains. Faces are returned in the server's face_index order.
func (c *Client) Encode(ctx context.Context, imageData []byte) ([]facematch.Embedding, error) {
	info, err := Inspect(imageData)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.ComputeFaceEmbeddings(ctx, imageData, info.MIMEType())
	c.recorder.RecordEncoderCall(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	faces := slices.Clone(resp.Faces)
	slices.SortStableFunc(faces, func(a, b FaceDetection) int {
		return a.FaceIndex - b.FaceIndex
	})

	embs := make([]facematch.Embedding, 0, len(faces))
	for _, f := range faces {
		if len(f.Embedding) == 0 {
			continue
		}
		embs = append(embs, facematch.Embedding(f.Embedding))
	}
	return embs, nil
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte, mimeType string) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData, mimeType)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrUnavailable, err)
	}

	return &faceResp, nil
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte, mimeType string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image"`)
	h.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: request failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		// The server could not read the image even though the header looked valid.
		return nil, fmt.Errorf("%w: server rejected image (status %d)", ErrDecodeFailure, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: API error (status %d): %s", ErrUnavailable, resp.StatusCode, string(body))
	}
}
