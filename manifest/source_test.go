package manifest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const sampleManifest = `{
	"id": "https://example.org/manifest",
	"type": "Manifest",
	"label": {"none": ["Field Book 12"]},
	"items": [
		{
			"id": "https://example.org/canvas/1",
			"label": {"none": ["Page 1"]},
			"items": [{"items": [{"body": {"id": "https://example.org/p1.jpg", "height": 600, "width": 400}}]}]
		}
	]
}`

func TestDownload_ParsesManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleManifest))
	}))
	defer srv.Close()

	m, err := Download(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if len(m.Items) != 1 {
		t.Fatalf("expected 1 canvas, got %d", len(m.Items))
	}
	if m.Label.First() != "Field Book 12" {
		t.Fatalf("Label = %q, want %q", m.Label.First(), "Field Book 12")
	}
}

func TestDownload_HTTPErrorIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := Download(context.Background(), srv.URL)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestDownload_MalformedJSONIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := Download(context.Background(), srv.URL)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestLoadFile_ParsesManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(path, []byte(sampleManifest), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	m, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(m.Items) != 1 {
		t.Fatalf("expected 1 canvas, got %d", len(m.Items))
	}
}

func TestLoadFile_MissingFileIsNotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadFile_MalformedJSONIsParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	_, err := LoadFile(path)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestSaveImage_WritesRawBytes(t *testing.T) {
	payload := []byte("raw image bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "page.jpg")
	if err := SaveImage(context.Background(), srv.URL, path); err != nil {
		t.Fatalf("SaveImage() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved image: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("saved bytes differ from served bytes")
	}
}
