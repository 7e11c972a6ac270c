package providers

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when a provider lacks its credential
var ErrNotConfigured = errors.New("AI service not configured")

// ErrUnsupported is returned when a provider cannot perform an operation
var ErrUnsupported = errors.New("operation not supported by provider")

// Config represents one request to a multimodal provider
type Config struct {
	Model        string
	Temperature  float64
	SystemPrompt string
	Prompt       string
	// Images are inline data URIs, sent after the prompt in order.
	Images []string
}

// Generated is the output of an image-generation request
type Generated struct {
	// ImageURL is the generated image as a data URI (or a URL if the provider
	// hosts it). Empty when the model produced no image.
	ImageURL string
	Message  string
}

// Provider defines the interface for a vision-capable text provider
type Provider interface {
	ExtractText(ctx context.Context, config Config) (string, error)
}

// ImageGenerator defines the interface for a provider that can synthesize images
type ImageGenerator interface {
	GenerateImage(ctx context.Context, config Config) (*Generated, error)
}

// UpstreamError is a non-success reply from a provider
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// StatusCode extracts the upstream HTTP status from err, or 0.
func StatusCode(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}
