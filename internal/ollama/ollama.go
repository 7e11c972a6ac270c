package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/providers"
)

// Ollama is a provider for a local Ollama server. It only handles vision
// analysis; it cannot generate images.
type Ollama struct {
	URL        string
	HTTPClient *http.Client
}

// New returns a new Ollama provider
func New(url string, timeout time.Duration) *Ollama {
	if url == "" {
		url = "http://localhost:11434"
	}
	return &Ollama{
		URL:        strings.TrimSuffix(url, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// ExtractText extracts text from the given prompt and images using Ollama
func (o *Ollama) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	images := make([]string, 0, len(config.Images))
	for _, uri := range config.Images {
		img, err := ingest.ParseDataURI(uri)
		if err != nil {
			return "", fmt.Errorf("failed to decode image for Ollama: %w", err)
		}
		images = append(images, base64.StdEncoding.EncodeToString(img.Data))
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"model":  config.Model,
		"system": config.SystemPrompt,
		"prompt": config.Prompt,
		"images": images,
		"format": "json",
		"stream": false,
		"options": map[string]interface{}{
			"temperature": config.Temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.URL+"/api/generate", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &providers.UpstreamError{Provider: "ollama", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	return response.Response, nil
}

// GenerateImage is not available on Ollama
func (o *Ollama) GenerateImage(ctx context.Context, config providers.Config) (*providers.Generated, error) {
	return nil, fmt.Errorf("ollama: %w", providers.ErrUnsupported)
}
