package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/threadline-rugs/roomview/internal/catalog"
	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/storage"
	"github.com/threadline-rugs/roomview/internal/visualize"
)

// Options wires the handler's dependencies
type Options struct {
	Catalog        *catalog.Catalog
	Visualizer     visualize.Visualizer
	Fetcher        *ingest.Fetcher
	StageDelay     time.Duration
	MaxUploadBytes int64
	StaticDir      string
	// BaseContext bounds background attempts; it is cancelled on shutdown.
	BaseContext context.Context
}

type Handler struct {
	sessionStore   *storage.SessionStore
	catalog        *catalog.Catalog
	visualizer     visualize.Visualizer
	fetcher        *ingest.Fetcher
	stageDelay     time.Duration
	maxUploadBytes int64
	staticDir      string
	baseCtx        context.Context
}

func New(opts Options) *Handler {
	h := &Handler{
		sessionStore:   storage.New(),
		catalog:        opts.Catalog,
		visualizer:     opts.Visualizer,
		fetcher:        opts.Fetcher,
		stageDelay:     opts.StageDelay,
		maxUploadBytes: opts.MaxUploadBytes,
		staticDir:      opts.StaticDir,
		baseCtx:        opts.BaseContext,
	}
	if h.catalog == nil {
		h.catalog = catalog.Default("assets")
	}
	if h.visualizer == nil {
		h.visualizer = &visualize.Service{}
	}
	if h.fetcher == nil {
		h.fetcher = ingest.NewFetcher(0)
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = ingest.MaxImageBytes
	}
	if h.staticDir == "" {
		h.staticDir = "static"
	}
	if h.baseCtx == nil {
		h.baseCtx = context.Background()
	}
	return h
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Warn(message, "status", code)
	}
	h.writeJSONStatus(w, code, map[string]string{"error": message})
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*storage.Session, bool) {
	session, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}
