// Package embed talks to the external face-embedding service. The
// service is opaque: it takes an image and returns one fixed-length
// embedding per detected face. Nothing in this repository inspects or
// recomputes embeddings.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 30 * time.Second
)

// ProviderError indicates the embedding service call failed or timed
// out. The whole ingest is retry-safe, so callers may retry. A provider
// failure is never papered over with a fabricated vector.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Face is one detected face with its embedding and detection metadata.
type Face struct {
	Embedding []float32 `json:"embedding"`
	DetScore  float64   `json:"det_score"`
	BBox      []float64 `json:"bbox"`
}

// Provider computes face embeddings for an image. Implemented by Client;
// tests substitute fakes.
type Provider interface {
	// DetectFaces returns one Face per detected face, possibly none.
	// Zero faces is a valid result, not an error.
	DetectFaces(ctx context.Context, imageData []byte) ([]Face, error)

	// Healthy reports whether the provider is reachable and ready.
	Healthy(ctx context.Context) error
}

// facesResponse is the provider's detection payload.
type facesResponse struct {
	Model string `json:"model"`
	Dim   int    `json:"dim"`
	Faces []Face `json:"faces"`
}

// Client is an HTTP client for the embedding sidecar.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a provider client. Every call is bounded by the
// given timeout so a hung provider fails the ingest instead of blocking
// it indefinitely.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// DetectFaces posts the image to the provider and returns all detected
// faces with their embeddings.
func (c *Client) DetectFaces(ctx context.Context, imageData []byte) ([]Face, error) {
	body, err := c.postMultipartImage(ctx, "/faces", imageData)
	if err != nil {
		return nil, err
	}

	var resp facesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{Op: "parse response", Err: err}
	}
	return resp.Faces, nil
}

// Healthy checks the provider's readiness endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return &ProviderError{Op: "create request", Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return &ProviderError{Op: "health check", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &ProviderError{Op: "health check", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

// postMultipartImage sends the image as a multipart form with an
// explicit Content-Type based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, &ProviderError{Op: "create form file", Err: err}
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, &ProviderError{Op: "write image data", Err: err}
	}

	if err := writer.Close(); err != nil {
		return nil, &ProviderError{Op: "close multipart writer", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, &ProviderError{Op: "create request", Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Op: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Op:  "request",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data.
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	return "application/octet-stream"
}
