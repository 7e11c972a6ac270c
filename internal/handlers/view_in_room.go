package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/threadline-rugs/roomview/internal/models"
	"github.com/threadline-rugs/roomview/internal/visualize"
)

type viewInRoomError struct {
	Error         string                `json:"error"`
	FloorAnalysis *models.FloorAnalysis `json:"floorAnalysis,omitempty"`
	AIMessage     string                `json:"aiMessage,omitempty"`
}

// HandleViewInRoom runs floor analysis and compositing for one room/rug pair
func (h *Handler) HandleViewInRoom(w http.ResponseWriter, r *http.Request) {
	var req models.ViewInRoomRequest
	r.Body = http.MaxBytesReader(w, r.Body, 4*h.maxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.visualizer.Visualize(r.Context(), visualize.RequestFrom(req), nil)
	if err != nil {
		code, msg := visualize.StatusFor(err)
		body := viewInRoomError{Error: msg}

		var noComposite *visualize.NoCompositeError
		if errors.As(err, &noComposite) {
			body.FloorAnalysis = noComposite.FloorAnalysis
			body.AIMessage = noComposite.AIMessage
		}

		if code >= http.StatusInternalServerError {
			slog.Error("View-in-room failed", "status", code, "error", err)
		} else {
			slog.Warn("View-in-room rejected", "status", code, "error", err)
		}
		h.writeJSONStatus(w, code, body)
		return
	}

	h.writeJSON(w, result)
}
