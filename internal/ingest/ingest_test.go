package ingest

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFromBytes(t *testing.T) {
	pngData := testPNG(t, 4, 3)

	tests := []struct {
		name         string
		data         []byte
		declaredType string
		wantErr      bool
	}{
		{"png without declared type", pngData, "", false},
		{"png with image type", pngData, "image/png", false},
		{"png declared as pdf", pngData, "application/pdf", true},
		{"plain text", []byte("hello world"), "", true},
		{"empty", nil, "image/png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := FromBytes(tt.data, tt.declaredType)
			if tt.wantErr {
				if !errors.Is(err, ErrNotImage) {
					t.Errorf("Expected ErrNotImage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if img.MIMEType != "image/png" {
				t.Errorf("Expected image/png, got %s", img.MIMEType)
			}
		})
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	pngData := testPNG(t, 8, 6)
	uri := EncodeDataURI("image/png", pngData)

	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("Unexpected prefix: %.40s", uri)
	}

	img, err := ParseDataURI(uri)
	if err != nil {
		t.Fatalf("ParseDataURI failed: %v", err)
	}
	if !bytes.Equal(img.Data, pngData) {
		t.Error("Decoded bytes differ from original")
	}

	cfg, err := img.Config()
	if err != nil {
		t.Fatalf("Config failed: %v", err)
	}
	if cfg.Width != 8 || cfg.Height != 6 {
		t.Errorf("Expected 8x6, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestParseDataURIMalformed(t *testing.T) {
	for _, s := range []string{"data:image/png;base64", "data:image/png;base64,@@@", "http://x"} {
		if _, err := ParseDataURI(s); err == nil {
			t.Errorf("Expected error for %q", s)
		}
	}
}

func TestWrapBase64(t *testing.T) {
	if got := WrapBase64("AAAA"); got != "data:image/jpeg;base64,AAAA" {
		t.Errorf("Unexpected wrap: %s", got)
	}
	if got := WrapBase64("data:image/png;base64,AAAA"); got != "data:image/png;base64,AAAA" {
		t.Errorf("Data URI should pass through, got %s", got)
	}
}

func TestNormalizeDataURIPassthrough(t *testing.T) {
	f := NewFetcher(time.Second)
	uri := EncodeDataURI("image/png", testPNG(t, 2, 2))

	got, err := f.Normalize(context.Background(), FromRef(uri))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got != uri {
		t.Error("Data URI was not passed through unchanged")
	}
}

func TestNormalizeFile(t *testing.T) {
	f := NewFetcher(time.Second)
	pngData := testPNG(t, 2, 2)

	got, err := f.Normalize(context.Background(), FromFile(pngData, "image/png"))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got != EncodeDataURI("image/png", pngData) {
		t.Error("Unexpected data URI for file source")
	}

	_, err = f.Normalize(context.Background(), FromFile([]byte("%PDF-1.4"), "application/pdf"))
	if !errors.Is(err, ErrNotImage) {
		t.Errorf("Expected ErrNotImage for pdf upload, got %v", err)
	}
}

func TestNormalizeURL(t *testing.T) {
	pngData := testPNG(t, 3, 3)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rug.png":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(pngData)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := NewFetcher(time.Second)

	got, err := f.Normalize(context.Background(), FromRef(server.URL+"/rug.png"))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got != EncodeDataURI("image/png", pngData) {
		t.Error("Fetched image was not encoded inline")
	}

	_, err = f.Normalize(context.Background(), FromRef(server.URL+"/missing.png"))
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("Expected fetch failure to propagate, got %v", err)
	}
}

func TestNormalizeAbsolutePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room.png")
	if err := os.WriteFile(path, testPNG(t, 5, 4), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(time.Second)
	got, err := f.Normalize(context.Background(), FromRef(path))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("Unexpected data URI: %.40s", got)
	}

	_, err = f.Normalize(context.Background(), FromRef(filepath.Join(t.TempDir(), "nope.png")))
	if err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestNormalizeRejectsUnknownReference(t *testing.T) {
	f := NewFetcher(time.Second)
	if _, err := f.Normalize(context.Background(), FromRef("rugs/relative.jpg")); err == nil {
		t.Error("Expected error for relative reference")
	}
	if _, err := f.Normalize(context.Background(), Source{}); err == nil {
		t.Error("Expected error for empty source")
	}
}

func TestNormalizeRejectsNonImageDataURI(t *testing.T) {
	f := NewFetcher(time.Second)
	_, err := f.Normalize(context.Background(), FromRef("data:text/plain;base64,aGVsbG8="))
	if !errors.Is(err, ErrNotImage) {
		t.Errorf("Expected ErrNotImage, got %v", err)
	}
}
