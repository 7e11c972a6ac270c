package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/threadline-rugs/roomview/internal/catalog"
)

func (h *Handler) HandleListRugs(w http.ResponseWriter, r *http.Request) {
	if style := r.URL.Query().Get("style"); style != "" {
		h.writeJSON(w, h.catalog.Filter(style))
		return
	}
	h.writeJSON(w, h.catalog.All())
}

func (h *Handler) HandleGetRug(w http.ResponseWriter, r *http.Request) {
	rug, err := h.catalog.Get(chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		h.writeError(w, "Rug not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, rug)
}
