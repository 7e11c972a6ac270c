package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/models"
)

var errFileTooLarge = errors.New("file too large")

// imageRequest is the non-file part of an upload or session request
type imageRequest struct {
	ImageURL  string `json:"image_url"`
	RoomImage string `json:"room_image"`
	RugID     string `json:"rug_id"`
}

// readImageRequest reads a room image from either a multipart upload
// ("files" or "file") or a JSON body with image_url / room_image.
func (h *Handler) readImageRequest(w http.ResponseWriter, r *http.Request) (ingest.Source, imageRequest, error) {
	var req imageRequest
	r.Body = http.MaxBytesReader(w, r.Body, 2*h.maxUploadBytes)

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return ingest.Source{}, req, fmt.Errorf("Invalid JSON: %w", err)
		}
		ref := req.RoomImage
		if ref == "" {
			ref = req.ImageURL
		}
		if ref != "" && !ingest.IsDataURI(ref) && !isRemoteURL(ref) {
			return ingest.Source{}, req, fmt.Errorf("%w: expected a data URI or http(s) URL", ingest.ErrNotImage)
		}
		return ingest.FromRef(ref), req, nil
	}

	file, header, err := r.FormFile("files")
	if err != nil {
		file, header, err = r.FormFile("file")
		if err != nil {
			return ingest.Source{}, req, fmt.Errorf("Failed to read file: %w", err)
		}
	}
	defer file.Close()
	req.RugID = r.FormValue("rug_id")

	fileData, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return ingest.Source{}, req, fmt.Errorf("Failed to read file contents: %w", err)
	}
	if int64(len(fileData)) > h.maxUploadBytes {
		return ingest.Source{}, req, errFileTooLarge
	}

	slog.Debug("Received upload", "filename", header.Filename, "bytes", len(fileData))
	contentType := header.Header.Get("Content-Type")
	if contentType == "application/octet-stream" {
		contentType = ""
	}
	return ingest.FromFile(fileData, contentType), req, nil
}

func isRemoteURL(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// processImage normalizes src to a data URI and reads its dimensions
func (h *Handler) processImage(r *http.Request, src ingest.Source) (string, models.ImageItem, error) {
	dataURI, err := h.fetcher.Normalize(r.Context(), src)
	if err != nil {
		return "", models.ImageItem{}, err
	}

	img, err := ingest.ParseDataURI(dataURI)
	if err != nil {
		return "", models.ImageItem{}, err
	}

	item := models.ImageItem{MIMEType: img.MIMEType, Size: len(img.Data)}
	if cfg, err := img.Config(); err != nil {
		slog.Warn("Failed to get image dimensions", "error", err)
	} else {
		item.ImageWidth, item.ImageHeight = cfg.Width, cfg.Height
	}
	return dataURI, item, nil
}

// imageErrorStatus picks the response code for an ingestion failure
func imageErrorStatus(err error) int {
	switch {
	case errors.Is(err, ingest.ErrNotImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
