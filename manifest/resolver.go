package manifest

import (
	"fmt"
	"log/slog"
)

const (
	// DefaultMaxWidth and DefaultMaxHeight bound the size parameter of
	// synthesized Image API derivative URLs.
	DefaultMaxWidth  = 1000
	DefaultMaxHeight = 1000

	// DefaultServiceThreshold is the declared dimension above which a scaled
	// service derivative is requested instead of the direct image URL.
	// Independent of the transmission box: a 1200px scan is small enough to
	// download directly but still gets shrunk before the model call.
	DefaultServiceThreshold = 2500
)

// PageImage is one resolved page: the URL to fetch plus the dimensions and
// label the manifest declared for it. Height and width are provenance from
// the manifest, not the size of the bytes a derivative URL will deliver.
type PageImage struct {
	ImageURL string `json:"image_url"`
	Height   int    `json:"height"`
	Width    int    `json:"width"`
	Label    string `json:"label"`
}

// Resolver extracts page images from a manifest.
type Resolver struct {
	MaxWidth         int
	MaxHeight        int
	ServiceThreshold int
	Logger           *slog.Logger
}

// NewResolver creates a Resolver with default thresholds.
func NewResolver() *Resolver {
	return &Resolver{
		MaxWidth:         DefaultMaxWidth,
		MaxHeight:        DefaultMaxHeight,
		ServiceThreshold: DefaultServiceThreshold,
	}
}

// Images walks every canvas in manifest order and resolves one PageImage per
// canvas. Canvases missing the expected nested structure are skipped so one
// badly catalogued page cannot abort extraction of the rest.
func (r *Resolver) Images(m *Manifest) []PageImage {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}

	images := make([]PageImage, 0, len(m.Items))
	for i, canvas := range m.Items {
		page, ok := r.resolve(canvas)
		if !ok {
			log.Debug("skipping canvas without usable image annotation", "index", i, "canvas_id", canvas.ID)
			continue
		}
		images = append(images, page)
	}
	return images
}

// resolve descends the fixed annotation path: first annotation page, first
// annotation, body. Any gap along the way skips the canvas.
func (r *Resolver) resolve(canvas Canvas) (PageImage, bool) {
	if len(canvas.Items) == 0 || len(canvas.Items[0].Items) == 0 {
		return PageImage{}, false
	}
	body := canvas.Items[0].Items[0].Body

	url, ok := r.imageURL(body)
	if !ok {
		return PageImage{}, false
	}

	return PageImage{
		ImageURL: url,
		Height:   body.Height,
		Width:    body.Width,
		Label:    canvas.Label.First(),
	}, true
}

// imageURL picks between the direct image identifier and a scaled Image API
// derivative. Oversized scans go through the image service so the delivered
// bytes fit the transmission box without pulling the full-resolution file.
func (r *Resolver) imageURL(body Body) (string, bool) {
	threshold := r.ServiceThreshold
	if threshold <= 0 {
		threshold = DefaultServiceThreshold
	}

	if len(body.Service) > 0 && (body.Height > threshold || body.Width > threshold) {
		id := body.Service[0].Identifier()
		if id == "" {
			return "", false
		}
		maxW := r.MaxWidth
		if maxW <= 0 {
			maxW = DefaultMaxWidth
		}
		maxH := r.MaxHeight
		if maxH <= 0 {
			maxH = DefaultMaxHeight
		}
		return DerivativeURL(id, maxW, maxH), true
	}

	if body.ID == "" {
		return "", false
	}
	return body.ID, true
}

// DerivativeURL builds an Image API URL delivering the image scaled to fit
// within maxWidth x maxHeight with aspect ratio preserved. The "!" size
// prefix forbids upscaling per the Image API size parameter semantics.
func DerivativeURL(serviceID string, maxWidth, maxHeight int) string {
	return fmt.Sprintf("%s/full/!%d,%d/0/default.jpg", serviceID, maxWidth, maxHeight)
}
