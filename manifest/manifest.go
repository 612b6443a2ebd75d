// Package manifest loads IIIF Presentation API v3 manifests and resolves
// per-canvas page images from them.
package manifest

// Manifest is a IIIF Presentation API v3 manifest. Only the fields needed for
// page-image resolution are decoded; everything else is ignored.
type Manifest struct {
	ID    string   `json:"id"`
	Type  string   `json:"type"`
	Label Label    `json:"label"`
	Items []Canvas `json:"items"`
}

// Canvas is one page surface within a manifest.
type Canvas struct {
	ID     string           `json:"id"`
	Label  Label            `json:"label"`
	Height int              `json:"height"`
	Width  int              `json:"width"`
	Items  []AnnotationPage `json:"items"`
}

// AnnotationPage groups the annotations attached to a canvas.
type AnnotationPage struct {
	ID    string       `json:"id"`
	Items []Annotation `json:"items"`
}

// Annotation carries the painted image body for a canvas.
type Annotation struct {
	ID   string `json:"id"`
	Body Body   `json:"body"`
}

// Body is the image resource painted onto a canvas.
type Body struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Format  string    `json:"format"`
	Height  int       `json:"height"`
	Width   int       `json:"width"`
	Service []Service `json:"service"`
}

// Service is an image service block advertised by a body.
type Service struct {
	LegacyID string `json:"@id"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Profile  string `json:"profile"`
}

// Identifier returns the service base URL. Image API v2 services advertise it
// under "@id", v3 services under "id"; both shapes appear in the wild.
func (s Service) Identifier() string {
	if s.LegacyID != "" {
		return s.LegacyID
	}
	return s.ID
}

// Label is a language-keyed label mapping.
type Label map[string][]string

// First returns the first entry under the "none" language key, or "" when the
// label is absent or shaped differently.
func (l Label) First() string {
	if vals := l["none"]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}
