package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the HTTP router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/rugs", h.HandleListRugs)
		r.Get("/rugs/{id}", h.HandleGetRug)

		r.Post("/upload", h.HandleUpload)
		r.Post("/render", h.HandleRender)

		r.Group(func(r chi.Router) {
			r.Use(cors)
			r.Options("/view-in-room", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			r.Post("/view-in-room", h.HandleViewInRoom)
		})

		r.Get("/sessions", h.HandleListSessions)
		r.Post("/sessions", h.HandleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.HandleSessionDetail)
			r.Delete("/", h.HandleDeleteSession)
			r.Post("/reset", h.HandleResetSession)
			r.Post("/process", h.HandleProcessSession)
			r.Get("/events", h.HandleSessionEvents)
			r.Get("/composite", h.HandleComposite)
		})
	})

	r.Get("/*", h.HandleStatic)

	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		next.ServeHTTP(w, r)
	})
}
