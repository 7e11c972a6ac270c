// Package ingest normalizes user-supplied images into inline data URIs for
// transport inside JSON request bodies.
package ingest

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/url"
	"strings"

	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned for content that is not an image. Callers drop such
// input without reporting anything further.
var ErrNotImage = errors.New("not an image")

// Image is an image held in memory together with its MIME type
type Image struct {
	MIMEType string
	Data     []byte
}

// FromBytes wraps raw bytes as an Image. The declared content type, when
// given, must be image/*; the bytes themselves must sniff as an image.
func FromBytes(data []byte, declaredType string) (Image, error) {
	if declaredType != "" && !strings.HasPrefix(strings.ToLower(declaredType), "image/") {
		return Image{}, fmt.Errorf("%w: declared type %s", ErrNotImage, declaredType)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty content", ErrNotImage)
	}

	sniffed := http.DetectContentType(data)
	if !strings.HasPrefix(sniffed, "image/") {
		return Image{}, fmt.Errorf("%w: detected %s", ErrNotImage, sniffed)
	}

	return Image{MIMEType: sniffed, Data: data}, nil
}

// DataURI encodes the image as a base64 data URI
func (i Image) DataURI() string {
	return EncodeDataURI(i.MIMEType, i.Data)
}

// Config decodes the image header for its pixel dimensions
func (i Image) Config() (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(i.Data))
	if err != nil {
		return image.Config{}, fmt.Errorf("failed to decode image header: %w", err)
	}
	return cfg, nil
}

// Decode decodes the full image
func (i Image) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(i.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// EncodeDataURI builds data:<mime>;base64,<payload>
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// IsDataURI reports whether s is already in inline form
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// ParseDataURI decodes a data URI into an Image
func ParseDataURI(s string) (Image, error) {
	if !IsDataURI(s) {
		return Image{}, errors.New("not a data URI")
	}

	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return Image{}, errors.New("malformed data URI: missing comma")
	}

	params := strings.Split(header, ";")
	mimeType := params[0]
	if mimeType == "" {
		mimeType = "text/plain"
	}
	isBase64 := false
	for _, p := range params[1:] {
		if p == "base64" {
			isBase64 = true
		}
	}

	var data []byte
	if isBase64 {
		decoded, err := decodeBase64(payload)
		if err != nil {
			return Image{}, fmt.Errorf("malformed data URI payload: %w", err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return Image{}, fmt.Errorf("malformed data URI payload: %w", err)
		}
		data = []byte(unescaped)
	}

	return Image{MIMEType: mimeType, Data: data}, nil
}

// WrapBase64 turns a bare base64 payload into a data URI, assuming JPEG when
// nothing better is known. Data URIs are returned unchanged.
func WrapBase64(s string) string {
	if IsDataURI(s) {
		return s
	}
	return "data:image/jpeg;base64," + s
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
