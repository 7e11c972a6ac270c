package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/providers"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Gemini is a provider for Google Gemini
type Gemini struct {
	APIKey string
}

// New returns a new Gemini provider
func New(apiKey string) *Gemini {
	return &Gemini{APIKey: apiKey}
}

// ExtractText runs a vision prompt and returns the reply text. Replies are
// requested as JSON.
func (g *Gemini) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	resp, err := g.generate(ctx, config, "application/json")
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return b.String(), nil
}

// GenerateImage asks an image-capable Gemini model for a picture and returns
// the first inline image as a data URI.
func (g *Gemini) GenerateImage(ctx context.Context, config providers.Config) (*providers.Generated, error) {
	resp, err := g.generate(ctx, config, "")
	if err != nil {
		return nil, err
	}

	out := &providers.Generated{}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out, nil
	}

	var msg strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			msg.WriteString(string(p))
		case genai.Blob:
			if out.ImageURL == "" && strings.HasPrefix(p.MIMEType, "image/") {
				out.ImageURL = ingest.EncodeDataURI(p.MIMEType, p.Data)
			}
		}
	}
	out.Message = msg.String()
	return out, nil
}

func (g *Gemini) generate(ctx context.Context, config providers.Config, responseMIMEType string) (*genai.GenerateContentResponse, error) {
	if g.APIKey == "" {
		return nil, providers.ErrNotConfigured
	}

	parts := []genai.Part{genai.Text(config.Prompt)}
	for _, uri := range config.Images {
		img, err := ingest.ParseDataURI(uri)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image for Gemini: %w", err)
		}
		format := strings.TrimPrefix(img.MIMEType, "image/")
		parts = append(parts, genai.ImageData(format, img.Data))
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(config.Model)
	if config.Temperature > 0 {
		model.SetTemperature(float32(config.Temperature))
	}
	if config.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(config.SystemPrompt))
	}
	if responseMIMEType != "" {
		model.ResponseMIMEType = responseMIMEType
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return nil, &providers.UpstreamError{Provider: "gemini", StatusCode: gerr.Code, Body: gerr.Message}
		}
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	return resp, nil
}
