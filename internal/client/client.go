package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/threadline-rugs/roomview/internal/models"
	"github.com/threadline-rugs/roomview/internal/providers"
	"github.com/threadline-rugs/roomview/internal/visualize"
)

// ViewInRoomPath is the endpoint path served by roomview serve
const ViewInRoomPath = "/api/view-in-room"

// Client calls a remote view-in-room endpoint
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for the server at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Visualize posts the request to the remote endpoint. Upstream rate-limit and
// quota replies keep their status so callers can map them like local errors.
func (c *Client) Visualize(ctx context.Context, req visualize.Request, report visualize.Reporter) (*models.VisualizationResult, error) {
	if report == nil {
		report = func(models.Stage) {}
	}

	body, err := json.Marshal(models.ViewInRoomRequest{
		RoomImageBase64: req.RoomImage,
		RugImageBase64:  req.RugImage,
		RugName:         req.RugName,
		RugDimensions:   req.RugDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+ViewInRoomPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	report(models.StageAnalyzingFloor)
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call view-in-room: %w", err)
	}
	defer resp.Body.Close()
	report(models.StageGeneratingShadows)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result models.VisualizationResult
	decodeErr := json.Unmarshal(data, &result)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if decodeErr == nil && result.Error != "" {
			msg = result.Error
		}
		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusPaymentRequired:
			return nil, &providers.UpstreamError{Provider: "view-in-room", StatusCode: resp.StatusCode, Body: msg}
		}
		return nil, errors.New(msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	report(models.StageCompositing)
	return &result, nil
}
