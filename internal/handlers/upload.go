package handlers

import (
	"errors"
	"net/http"

	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/models"
)

type uploadResponse struct {
	models.ImageItem
	DataURI string `json:"data_uri"`
}

// HandleUpload normalizes an uploaded or referenced room photo into an
// inline data URI. Anything that is not an image is refused.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	src, _, err := h.readImageRequest(w, r)
	if err != nil {
		h.writeError(w, err.Error(), imageErrorStatus(err))
		return
	}
	if src.Empty() {
		h.writeError(w, "image_url is required", http.StatusBadRequest)
		return
	}

	dataURI, item, err := h.processImage(r, src)
	if err != nil {
		if errors.Is(err, ingest.ErrNotImage) {
			h.writeError(w, "Unsupported file type: "+err.Error(), http.StatusUnsupportedMediaType)
			return
		}
		h.writeError(w, "Failed to process image: "+err.Error(), imageErrorStatus(err))
		return
	}

	h.writeJSON(w, uploadResponse{ImageItem: item, DataURI: dataURI})
}
