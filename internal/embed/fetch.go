package embed

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

const (
	defaultMaxBytes  = 20 << 20 // 20 MiB download cap
	defaultMaxPixels = 1920     // longest side sent to the provider
)

// Fetcher downloads event photos and prepares them for the provider.
// Large originals are downscaled before upload; detection quality is
// unaffected at this bound and the provider round trip gets cheaper.
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	maxPixels int
}

// NewFetcher creates a fetcher with a download size cap and a downscale
// bound on the longest image side.
func NewFetcher(timeout time.Duration, maxBytes int64, maxPixels int) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	if maxPixels <= 0 {
		maxPixels = defaultMaxPixels
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		maxBytes:  maxBytes,
		maxPixels: maxPixels,
	}
}

// Fetch downloads an image and returns provider-ready bytes.
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d byte limit", f.maxBytes)
	}

	return f.prepare(data), nil
}

// prepare downscales the image if its longest side exceeds the bound.
// Images that fail to decode are passed through untouched; the provider
// has its own decoders.
func (f *Fetcher) prepare(data []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= f.maxPixels && height <= f.maxPixels {
		return data
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = f.maxPixels
		newHeight = int(float64(height) * float64(f.maxPixels) / float64(width))
	} else {
		newHeight = f.maxPixels
		newWidth = int(float64(width) * float64(f.maxPixels) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return data
	}
	return buf.Bytes()
}
