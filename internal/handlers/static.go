package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// HandleStatic serves the front end from the static directory, falling back
// to index.html for unknown paths.
func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	name = strings.TrimPrefix(name, "static/")

	// Prevent directory traversal attacks
	if strings.Contains(name, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	if name == "" {
		name = "index.html"
	}

	fullPath := filepath.Join(h.staticDir, filepath.FromSlash(name))
	if info, err := os.Stat(fullPath); err != nil || info.IsDir() {
		fullPath = filepath.Join(h.staticDir, "index.html")
		name = "index.html"
	}

	// Set appropriate content type based on file extension
	switch {
	case strings.HasSuffix(name, ".css"):
		w.Header().Set("Content-Type", "text/css")
	case strings.HasSuffix(name, ".js"):
		w.Header().Set("Content-Type", "application/javascript")
	case strings.HasSuffix(name, ".html"):
		w.Header().Set("Content-Type", "text/html")
	}

	http.ServeFile(w, r, fullPath)
}
