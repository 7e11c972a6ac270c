// Package gateway talks to an OpenAI-compatible chat completions gateway
// that fronts multimodal models (vision analysis and image generation).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/threadline-rugs/roomview/internal/providers"
)

// DefaultURL is the hosted AI gateway endpoint
const DefaultURL = "https://ai.gateway.lovable.dev/v1/chat/completions"

// Gateway is a provider for an OpenAI-compatible AI gateway
type Gateway struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// New returns a new Gateway provider
func New(url, apiKey string, timeout time.Duration) *Gateway {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Gateway{
		URL:        url,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Modalities  []string  `json:"modalities,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
			Images  []struct {
				ImageURL imageURL `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

// ExtractText sends the prompt and images and returns the model's reply text
func (g *Gateway) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	resp, err := g.complete(ctx, config, nil)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from gateway")
	}
	return messageText(resp.Choices[0].Message.Content), nil
}

// GenerateImage requests image and text output and returns the first image
func (g *Gateway) GenerateImage(ctx context.Context, config providers.Config) (*providers.Generated, error) {
	resp, err := g.complete(ctx, config, []string{"image", "text"})
	if err != nil {
		return nil, err
	}

	out := &providers.Generated{}
	if len(resp.Choices) == 0 {
		return out, nil
	}
	msg := resp.Choices[0].Message
	out.Message = messageText(msg.Content)
	if len(msg.Images) > 0 {
		out.ImageURL = msg.Images[0].ImageURL.URL
	}
	return out, nil
}

func (g *Gateway) complete(ctx context.Context, config providers.Config, modalities []string) (*chatResponse, error) {
	if g.APIKey == "" {
		return nil, providers.ErrNotConfigured
	}

	var messages []message
	if config.SystemPrompt != "" {
		messages = append(messages, message{Role: "system", Content: config.SystemPrompt})
	}
	parts := []contentPart{{Type: "text", Text: config.Prompt}}
	for _, img := range config.Images {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: img}})
	}
	messages = append(messages, message{Role: "user", Content: parts})

	body := chatRequest{
		Model:      config.Model,
		Messages:   messages,
		Modalities: modalities,
	}
	if config.Temperature > 0 {
		body.Temperature = &config.Temperature
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &providers.UpstreamError{
			Provider:   "gateway",
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(errBody)),
		}
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return &response, nil
}

// messageText accepts either a plain string or an array of text parts
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err == nil {
		var b strings.Builder
		for _, p := range parts {
			if p.Type == "text" {
				b.WriteString(p.Text)
			}
		}
		return b.String()
	}
	return ""
}
