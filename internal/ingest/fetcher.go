package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxImageBytes bounds any single fetched or uploaded image
const MaxImageBytes = 10 * 1024 * 1024

// Source is a user-supplied image: either raw file bytes or a string
// reference (data URI, URL, or absolute path).
type Source struct {
	File     []byte
	FileType string
	Ref      string
}

// FromFile builds a Source from uploaded file bytes
func FromFile(data []byte, contentType string) Source {
	return Source{File: data, FileType: contentType}
}

// FromRef builds a Source from a string reference
func FromRef(ref string) Source {
	return Source{Ref: ref}
}

// Empty reports whether the source carries nothing
func (s Source) Empty() bool {
	return len(s.File) == 0 && strings.TrimSpace(s.Ref) == ""
}

// Fetcher converts image sources into inline data URIs
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher creates a fetcher whose HTTP requests time out after timeout
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Normalize returns the inline data URI for src. Data URIs pass through
// unchanged; URLs and paths are read and encoded. Failures are returned,
// never swallowed.
func (f *Fetcher) Normalize(ctx context.Context, src Source) (string, error) {
	if len(src.File) > 0 {
		img, err := FromBytes(src.File, src.FileType)
		if err != nil {
			return "", err
		}
		return img.DataURI(), nil
	}

	ref := strings.TrimSpace(src.Ref)
	switch {
	case ref == "":
		return "", fmt.Errorf("no image provided")
	case IsDataURI(ref):
		img, err := ParseDataURI(ref)
		if err != nil {
			return "", err
		}
		if !strings.HasPrefix(strings.ToLower(img.MIMEType), "image/") {
			return "", fmt.Errorf("%w: declared type %s", ErrNotImage, img.MIMEType)
		}
		return ref, nil
	}

	img, err := f.Load(ctx, ref)
	if err != nil {
		return "", err
	}
	return img.DataURI(), nil
}

// Load reads the image behind a URL or path reference
func (f *Fetcher) Load(ctx context.Context, ref string) (Image, error) {
	if IsDataURI(ref) {
		return ParseDataURI(ref)
	}

	u, err := url.Parse(ref)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return f.download(ctx, ref)
		case "file":
			return readFile(u.Path)
		}
	}

	if filepath.IsAbs(ref) {
		return readFile(ref)
	}

	return Image{}, fmt.Errorf("unsupported image reference %q: expected data URI, http(s) URL, or absolute path", ref)
}

func (f *Fetcher) download(ctx context.Context, imageURL string) (Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return Image{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Image{}, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxImageBytes {
		return Image{}, fmt.Errorf("image too large (max %d bytes)", MaxImageBytes)
	}

	slog.Debug("Downloaded image", "url", imageURL, "bytes", len(data))

	// Servers often label images as octet-stream; only trust image/* labels.
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		contentType = ""
	}
	return FromBytes(data, contentType)
}

func readFile(path string) (Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	if info.Size() > MaxImageBytes {
		return Image{}, fmt.Errorf("image too large (max %d bytes)", MaxImageBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	return FromBytes(data, "")
}
