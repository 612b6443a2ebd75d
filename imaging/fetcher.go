// Package imaging retrieves page images and normalizes them for model
// transmission: decode, fit within a bounding box without upscaling, and
// re-encode as JPEG.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"
	"net/http"
	"os"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxWidth  = 1000
	DefaultMaxHeight = 1000
	DefaultQuality   = 90
)

var (
	// ErrFetch indicates the image bytes could not be retrieved.
	ErrFetch = errors.New("image fetch failed")
	// ErrDecode indicates the retrieved bytes are not a decodable image.
	ErrDecode = errors.New("image decode failed")
)

// Fetcher downloads page images and bounds them for transmission.
// The zero value uses the default 1000x1000 box and http.DefaultClient.
type Fetcher struct {
	MaxWidth   int
	MaxHeight  int
	Quality    int          // JPEG quality 1-100 (default 90)
	HTTPClient *http.Client // optional (tests)
}

// NewFetcher creates a Fetcher with default bounds.
func NewFetcher() *Fetcher {
	return &Fetcher{
		MaxWidth:  DefaultMaxWidth,
		MaxHeight: DefaultMaxHeight,
		Quality:   DefaultQuality,
	}
}

// Fetch downloads an image over HTTP and returns it as bounded JPEG bytes.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d from %s", ErrFetch, resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	return f.normalize(data)
}

// FetchFile reads an image from the local filesystem and returns it as
// bounded JPEG bytes.
func (f *Fetcher) FetchFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return f.normalize(data)
}

func (f *Fetcher) normalize(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	img = f.fit(img)

	quality := f.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// fit applies a uniform scale factor so neither dimension exceeds the box.
// Images already within bounds pass through untouched; there is no upscaling.
func (f *Fetcher) fit(img image.Image) image.Image {
	maxW := f.MaxWidth
	if maxW <= 0 {
		maxW = DefaultMaxWidth
	}
	maxH := f.MaxHeight
	if maxH <= 0 {
		maxH = DefaultMaxHeight
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return img
	}

	ratio := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	if ratio >= 1 {
		return img
	}

	dstW := int(float64(w) * ratio)
	dstH := int(float64(h) * ratio)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
