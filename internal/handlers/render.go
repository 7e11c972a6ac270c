package handlers

import (
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"

	"github.com/threadline-rugs/roomview/internal/canvas"
	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/models"
)

const defaultContainerWidth = 800

type renderRequest struct {
	SessionID      string                     `json:"session_id"`
	RoomImage      string                     `json:"room_image"`
	RugID          string                     `json:"rug_id"`
	RugImage       string                     `json:"rug_image"`
	ContainerWidth int                        `json:"container_width"`
	Transform      *models.PlacementTransform `json:"transform"`
}

// HandleRender places the rug on the room photo at the given pose and
// returns the exported PNG.
func (h *Handler) HandleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	r.Body = http.MaxBytesReader(w, r.Body, 4*h.maxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.SessionID != "" {
		session, ok := h.getSessionOrError(w, req.SessionID)
		if !ok {
			return
		}
		if req.RoomImage == "" {
			req.RoomImage = session.RoomDataURI
		}
		if req.RugID == "" && req.RugImage == "" {
			req.RugID = session.RugID
		}
	}
	if req.ContainerWidth <= 0 {
		req.ContainerWidth = defaultContainerWidth
	}

	if req.RoomImage == "" {
		h.writeError(w, "room_image is required", http.StatusBadRequest)
		return
	}
	rugRef := req.RugImage
	if rugRef == "" {
		rug, err := h.catalog.Get(req.RugID)
		if err != nil {
			h.writeError(w, fmt.Sprintf("Rug %q not found", req.RugID), http.StatusNotFound)
			return
		}
		if rugRef, err = h.catalog.ResolveImage(rug); err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
	} else if !ingest.IsDataURI(rugRef) && !isRemoteURL(rugRef) {
		h.writeError(w, "rug_image must be a data URI or http(s) URL", http.StatusBadRequest)
		return
	}

	bg, err := h.decodeImage(r, req.RoomImage)
	if err != nil {
		h.writeError(w, "Failed to load room image: "+err.Error(), imageErrorStatus(err))
		return
	}
	fg, err := h.decodeImage(r, rugRef)
	if err != nil {
		h.writeError(w, "Failed to load rug image: "+err.Error(), imageErrorStatus(err))
		return
	}

	c, err := canvas.New(bg, fg, req.ContainerWidth, req.Transform)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer c.Dispose()

	png, err := c.ExportRaster()
	if err != nil {
		h.writeError(w, "Failed to export image: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", canvas.ExportFileName))
	if _, err := w.Write(png); err != nil {
		slog.Error("Unable to write render", "err", err)
	}
}

func (h *Handler) decodeImage(r *http.Request, ref string) (image.Image, error) {
	img, err := h.fetcher.Load(r.Context(), ref)
	if err != nil {
		return nil, err
	}
	return img.Decode()
}
