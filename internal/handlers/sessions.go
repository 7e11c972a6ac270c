package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/threadline-rugs/roomview/internal/catalog"
	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/models"
	"github.com/threadline-rugs/roomview/internal/orchestrator"
	"github.com/threadline-rugs/roomview/internal/storage"
)

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionStore.GetAll()
	sessionList := make([]models.ViewInRoomSession, 0, len(sessions))
	for _, session := range sessions {
		sessionList = append(sessionList, session.Snapshot())
	}
	h.writeJSON(w, sessionList)
}

// HandleCreateSession stores the room photo, picks the rug and starts the
// first attempt in the background. Progress is read back through the
// session detail or its event stream.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	src, req, err := h.readImageRequest(w, r)
	if err != nil {
		h.writeError(w, err.Error(), imageErrorStatus(err))
		return
	}
	if src.Empty() {
		h.writeError(w, "room_image is required", http.StatusBadRequest)
		return
	}

	rug, err := h.catalog.Get(req.RugID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			h.writeError(w, fmt.Sprintf("Rug %q not found", req.RugID), http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	dataURI, item, err := h.processImage(r, src)
	if err != nil {
		h.writeError(w, "Failed to process image: "+err.Error(), imageErrorStatus(err))
		return
	}

	session := storage.NewSession(rug.ID, dataURI, item, h.visualizer,
		orchestrator.WithStageDelay(h.stageDelay),
		orchestrator.WithResolver(h.catalog.ResolveImage),
		orchestrator.WithNormalizer(h.fetcher),
	)
	h.sessionStore.Set(session.ID, session)
	slog.Info("Created session", "session", session.ID, "rug", rug.ID)

	h.startAttempt(session, rug)
	h.writeJSONStatus(w, http.StatusAccepted, session.Snapshot())
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	h.writeJSON(w, session.Snapshot())
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessionStore.Delete(chi.URLParam(r, "id")) {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResetSession abandons any running attempt and returns to idle
func (h *Handler) HandleResetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	session.Orchestrator().Reset()
	h.writeJSON(w, session.Snapshot())
}

// HandleProcessSession reruns the attempt, optionally with another rug
func (h *Handler) HandleProcessSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if session.Orchestrator().IsProcessing() {
		h.writeError(w, orchestrator.ErrBusy.Error(), http.StatusConflict)
		return
	}

	var body struct {
		RugID string `json:"rug_id"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	rugID := session.RugID
	if body.RugID != "" {
		rugID = body.RugID
	}

	rug, err := h.catalog.Get(rugID)
	if err != nil {
		h.writeError(w, fmt.Sprintf("Rug %q not found", rugID), http.StatusNotFound)
		return
	}

	h.startAttempt(session, rug)
	h.writeJSONStatus(w, http.StatusAccepted, session.Snapshot())
}

func (h *Handler) startAttempt(session *storage.Session, rug models.Rug) {
	room := ingest.FromRef(session.RoomDataURI)
	go func() {
		_, err := session.Orchestrator().ProcessViewInRoom(h.baseCtx, room, rug)
		if err != nil {
			slog.Warn("View-in-room attempt failed", "session", session.ID, "error", err)
		}
	}()
}

// HandleSessionEvents streams the session state as server-sent events until
// the attempt completes or fails.
func (h *Handler) HandleSessionEvents(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, cancel := session.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	snap := session.Snapshot()
	sendEvent(w, flusher, "state", snap)
	if finished(snap.Stage) && snap.Result != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case state, open := <-updates:
			if !open {
				return
			}
			sendEvent(w, flusher, "state", state)
			if finished(state.Stage) {
				return
			}
		}
	}
}

func finished(stage models.Stage) bool {
	return stage == models.StageComplete || stage == models.StageError
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("Unable to encode event", "err", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}

// HandleComposite serves the finished composite as a download
func (h *Handler) HandleComposite(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	result := session.Orchestrator().State().Result
	if result == nil || !result.Success || result.CompositeImageURL == "" {
		h.writeError(w, "Composite not available", http.StatusNotFound)
		return
	}

	if !ingest.IsDataURI(result.CompositeImageURL) {
		http.Redirect(w, r, result.CompositeImageURL, http.StatusFound)
		return
	}

	img, err := ingest.ParseDataURI(result.CompositeImageURL)
	if err != nil {
		h.writeError(w, "Failed to decode composite: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Disposition", `attachment; filename="view-in-room.png"`)
	if _, err := w.Write(img.Data); err != nil {
		slog.Error("Unable to write composite", "err", err)
	}
}
